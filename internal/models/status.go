package models

import "strings"

// Status is the lifecycle state shared by affairs, interests and tasks.
type Status string

// Status constants
const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusParked     Status = "PARKED"
	StatusWaiting    Status = "WAITING"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusDone, StatusParked, StatusWaiting}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// NormalizeStatus maps free-form spreadsheet text onto a Status.
// Unknown or empty input becomes NOT_STARTED.
func NormalizeStatus(raw string) Status {
	key := strings.ToUpper(strings.Join(strings.Fields(raw), "_"))
	switch key {
	case "IN_PROGRESS", "INPROGRESS", "STARTED", "ACTIVE":
		return StatusInProgress
	case "DONE", "COMPLETED", "COMPLETE":
		return StatusDone
	case "PARKED", "ON_HOLD":
		return StatusParked
	case "WAITING", "BLOCKED":
		return StatusWaiting
	}
	return StatusNotStarted
}
