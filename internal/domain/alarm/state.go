package alarm

import (
	"slices"
	"time"
)

// Actor identifies who requested a lifecycle operation.
type Actor struct {
	// Hostname is the machine the request came from.
	Hostname string
	// Username is the user or automation that issued it.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String renders the actor as user@host.
func (a *Actor) String() string {
	if a == nil {
		return ""
	}

	return a.Username + "@" + a.Hostname
}

// Sensor is a device whose state change can raise an alarm.
type Sensor struct {
	// EntityID is the sensor identifier, e.g. "binary_sensor.frontdoor".
	EntityID string
	// DeviceClass is the kind of device, e.g. "door" or "motion".
	DeviceClass string
	// Name is the human readable device name.
	Name string
}

// PendingContext is the uncommitted alarm awaiting confirmation.
type PendingContext struct {
	// ID is a local placeholder; it doubles as the idempotency key of the create call.
	ID string
	// Kind selects the remote contract used on confirmation.
	Kind Kind
	// Sensors are the sensors that tripped, in the order reported.
	Sensors []Sensor
	// SensorDeviceClass is the device class reported to the remote service.
	SensorDeviceClass string
	// SensorDeviceName is the device name reported to the remote service.
	SensorDeviceName string
	// CreatedAt is when the trigger was recorded.
	CreatedAt time.Time
}

// Clone returns a deep copy of the pending context.
func (p *PendingContext) Clone() *PendingContext {
	if p == nil {
		return nil
	}

	cloned := *p
	cloned.Sensors = slices.Clone(p.Sensors)

	return &cloned
}

// SensorIDs returns the entity ids of the triggering sensors.
func (p *PendingContext) SensorIDs() []string {
	if p == nil {
		return nil
	}

	ids := make([]string, 0, len(p.Sensors))
	for _, s := range p.Sensors {
		ids = append(ids, s.EntityID)
	}

	return ids
}

// Session is the single alarm tracked by an installation.
type Session struct {
	// AlarmID is the remote id. It is set iff Status is StatusActive.
	AlarmID string
	// Status is the lifecycle state.
	Status Status
	// Kind is the type of the tracked alarm, nil when none.
	Kind Kind
	// OwnerID is the remote owner of the alarm.
	OwnerID string
	// Message is the message returned by the remote create call.
	Message string
	// LastEventType is the last lifecycle or remote event seen.
	LastEventType string
	// RemoteStatus is the status label last reported by the remote service.
	// It is display only and never drives a transition.
	RemoteStatus string
	// CreatedContext is the pending context the alarm was created from.
	CreatedContext *PendingContext
	// UpdatedAt is when the session last changed.
	UpdatedAt time.Time
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{Status: StatusNone}
}

// Clone returns a copy of the session to avoid leaking internal references.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.CreatedContext = s.CreatedContext.Clone()

	return &cloned
}

// Consistent reports whether the session satisfies the lifecycle invariants.
func (s *Session) Consistent() bool {
	if !s.Status.IsLifecycle() {
		return false
	}

	return (s.AlarmID != "") == (s.Status == StatusActive)
}

// RemoteRecord is the server-side projection of an alarm.
type RemoteRecord struct {
	AlarmID   string
	Status    string
	OwnerID   string
	Message   string
	CreatedAt time.Time
}

// RemoteEvent is one event pushed by the remote service.
type RemoteEvent struct {
	AlarmID   string
	EventType string
}

// Alert is a standalone notification posted to the remote service.
type Alert struct {
	Type        string `json:"alert_type"`
	Description string `json:"alert_description"`
	Status      string `json:"status"`
}

// Transition is one audited change of the session.
type Transition struct {
	ID      int64
	From    Status
	To      Status
	AlarmID string
	Kind    string
	Event   string
	Actor   string
	At      time.Time
}
