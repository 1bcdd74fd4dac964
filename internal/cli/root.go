package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/khal/internal/ctxutil"
	"github.com/example/khal/internal/models"
	"github.com/example/khal/internal/wire"
)

// ConfigureRoot adds the persistent backend flags to root and wires the
// singleton before any subcommand runs.
func ConfigureRoot(root *cobra.Command) {
	root.PersistentFlags().String("store", "", "Backend file (.xlsx selects the workbook backend)")
	root.PersistentFlags().String("backend", "", "Force the backend: sqlite or workbook")
	root.PersistentFlags().String("config-dir", "", "Directory holding .khal/config.yaml (default: current directory)")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		store, _ := cmd.Flags().GetString("store")
		backend, _ := cmd.Flags().GetString("backend")
		dir, _ := cmd.Flags().GetString("config-dir")
		wire.Configure(wire.Options{Dir: dir, StorePath: store, Backend: backend})
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return wire.Shutdown(cmd.Context())
	}
}

// commandContext returns a context carrying the acting user and a fresh
// operation id for log correlation.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	actor := ""
	if a, err := wire.Current(); err == nil {
		actor = a.Config.Actor
	}
	if actor == "" {
		if u, err := user.Current(); err == nil {
			actor = u.Username
		}
	}
	ctx = ctxutil.WithActor(ctx, actor)
	return ctxutil.WithOperationID(ctx, uuid.NewString())
}

// Hint returns a follow-up suggestion for well-known engine errors.
func Hint(err error) string {
	var depErr *models.DependencyError
	switch {
	case errors.Is(err, models.ErrConflict):
		return "Run 'khal state' to reload, then retry with the new --last-seen value"
	case errors.As(err, &depErr):
		return fmt.Sprintf("Complete %s first", strings.Join(depErr.Pending, ", "))
	case errors.Is(err, models.ErrStructure):
		return "Run 'khal normalize' to add the missing structure"
	case errors.Is(err, models.ErrNotFound):
		return "Check the id with 'khal state --json' or 'khal craft list'"
	}
	return ""
}

// Fatal prints err with its hint and exits non-zero.
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	if hint := Hint(err); hint != "" {
		fmt.Fprintln(os.Stderr, "Hint:", hint)
	}
	os.Exit(1)
}

func optString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func optFloat(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return &v
}

func optList(cmd *cobra.Command, name string) *[]string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	raw, _ := cmd.Flags().GetStringSlice(name)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return &out
}

func optStatus(cmd *cobra.Command) *models.Status {
	v := optString(cmd, "status")
	if v == nil {
		return nil
	}
	s := models.Status(enumValue(*v))
	return &s
}

// enumValue turns "in progress" or "in-progress" into IN_PROGRESS.
func enumValue(s string) string {
	s = strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))
	return strings.ToUpper(s)
}

func lastSeen(cmd *cobra.Command) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString("last-seen")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --last-seen %q: expected RFC3339 timestamp", raw)
	}
	return &t, nil
}

func addLastSeenFlag(cmd *cobra.Command) {
	cmd.Flags().String("last-seen", "", "Modification time of the backend when you last read it (RFC3339); rejects the write if it changed since")
}
