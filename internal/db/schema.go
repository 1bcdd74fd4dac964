package db

import "strings"

// GetSchemaSQL returns the full schema as one script: every embedded
// migration concatenated in order.
//
// Repository tests build their in-memory databases from this so that test
// schemas cannot drift from the migrations that ship. Do not hardcode
// CREATE TABLE statements in test files.
func GetSchemaSQL() string {
	migrations, err := Migrations()
	if err != nil {
		panic(err)
	}

	var b strings.Builder
	for _, m := range migrations {
		b.WriteString(m.SQL)
		b.WriteString("\n")
	}
	return b.String()
}
