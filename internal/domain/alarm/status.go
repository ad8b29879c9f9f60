package alarm

import "strings"

// Status is the lifecycle state of the tracked alarm.
type Status string

const (
	// StatusNone means no alarm is tracked.
	StatusNone Status = "NONE"
	// StatusPending means a trigger was recorded and awaits confirmation.
	StatusPending Status = "PENDING"
	// StatusActive means the remote service created the alarm.
	StatusActive Status = "ACTIVE"
	// StatusClosed is a remote-reported label. The lifecycle never enters it.
	StatusClosed Status = "CLOSED"
	// StatusCanceled is a remote-reported label. The lifecycle never enters it.
	StatusCanceled Status = "CANCELED"
)

// IsLifecycle reports whether s is one of the states the lifecycle can hold.
func (s Status) IsLifecycle() bool {
	switch s {
	case StatusNone, StatusPending, StatusActive:
		return true
	default:
		return false
	}
}

// InFlight reports whether an incident is pending or active.
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusActive
}

// ParseStatus normalises a status string reported by the remote service.
// Empty input maps to StatusNone.
func ParseStatus(s string) Status {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return StatusNone
	}

	return Status(s)
}

// Last event types recorded on the session.
const (
	EventPending   = "alarm.status.pending"
	EventDiscarded = "alarm.status.discarded"
	EventCreated   = "alarm.status.created"
	EventClosed    = "alarm.closed"
	EventCanceled  = "alarm.status.canceled"
)
