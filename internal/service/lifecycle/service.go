package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/logger"
	repo "github.com/oshokin/alarm-coordinator/internal/repository/state"
)

// RemoteSecurityClient is the remote security service of record.
type RemoteSecurityClient interface {
	CreateAlarm(
		ctx context.Context,
		kind domain.Kind,
		idempotencyKey string,
		payload domain.CreatePayload,
	) (*domain.RemoteRecord, error)
	CancelAlarm(ctx context.Context, alarmID string) (*domain.RemoteRecord, error)
	GetAlarmStatus(ctx context.Context, alarmID string) (*domain.RemoteRecord, error)
	CreateEvent(ctx context.Context, alarmID string, payload domain.CreatePayload) error
	CreateAlert(ctx context.Context, alert domain.Alert) error
}

// Journal records committed transitions.
type Journal interface {
	Append(ctx context.Context, transition *domain.Transition) error
}

// Service coordinates the alarm lifecycle of one installation.
type Service struct {
	// remote is the remote security service.
	remote RemoteSecurityClient
	// store holds the session and pending slot.
	store *store
	// lock serialises lifecycle operations.
	lock *ticketLock
	// journal receives the audit trail, may be nil.
	journal Journal
	// sensors resolves sensor class and name, may be nil.
	sensors SensorDirectory
	// now returns the current time.
	now func() time.Time
	// newID generates pending placeholders.
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithJournal records every transition in j.
func WithJournal(j Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithSensorDirectory resolves trigger sensors through dir.
func WithSensorDirectory(dir SensorDirectory) Option {
	return func(s *Service) {
		s.sensors = dir
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates the lifecycle service and restores the persisted session.
func New(ctx context.Context, remote RemoteSecurityClient, repository repo.Repository, opts ...Option) (*Service, error) {
	st, err := newStore(ctx, repository)
	if err != nil {
		return nil, err
	}

	s := &Service{
		remote: remote,
		store:  st,
		lock:   newTicketLock(),
		now:    time.Now,
		newID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Session returns a copy of the tracked session without contacting the remote service.
func (s *Service) Session(context.Context) *domain.Session {
	session, _ := s.store.snapshot()

	return session
}

// Pending returns a copy of the pending slot, nil when empty.
func (s *Service) Pending(context.Context) *domain.PendingContext {
	_, pending := s.store.snapshot()

	return pending
}

// Subscribe registers fn to receive every committed session. fn runs while
// the lifecycle lock is held and must not call back into the Service.
func (s *Service) Subscribe(fn func(*domain.Session)) {
	s.store.subscribe(fn)
}

// TriggerSensorEvent records a pending alarm raised by sensors. It is a
// logged no-op while another alarm is pending or active.
func (s *Service) TriggerSensorEvent(
	ctx context.Context,
	sensors []domain.Sensor,
	kind domain.Kind,
) (*domain.Session, error) {
	if kind == nil {
		return nil, fmt.Errorf("%w: alarm type is required", domain.ErrValidation)
	}

	if err := s.lock.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.lock.release()

	current, _ := s.store.snapshot()
	if current.Status.InFlight() {
		logger.WarnKV(ctx, "Dropping trigger, an alarm is already in flight",
			"status", current.Status,
			"alarm_id", current.AlarmID,
			"kind", kind.Name(),
		)

		return current, nil
	}

	resolved, class, name := resolveSensors(s.sensors, sensors)
	now := s.now()

	pending := &domain.PendingContext{
		ID:                s.newID(),
		Kind:              kind,
		Sensors:           resolved,
		SensorDeviceClass: class,
		SensorDeviceName:  name,
		CreatedAt:         now,
	}

	next := &domain.Session{
		Status:        domain.StatusPending,
		Kind:          kind,
		LastEventType: domain.EventPending,
		RemoteStatus:  string(domain.StatusPending),
		UpdatedAt:     now,
	}

	s.commit(ctx, current, next, pending, domain.EventPending)

	logger.InfoKV(ctx, "Pending alarm recorded",
		"pending_id", pending.ID,
		"kind", kind.Name(),
		"sensors", pending.SensorIDs(),
		"sensor_device_class", class,
		"sensor_device_name", name,
	)

	return next.Clone(), nil
}

// ConfirmPending escalates the pending alarm to the remote service. Without
// a pending alarm it is a logged no-op. On remote failure the alarm stays
// pending and the error is returned; nothing is retried here beyond the
// client's own network retries.
func (s *Service) ConfirmPending(ctx context.Context) (*domain.Session, error) {
	if err := s.lock.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.lock.release()

	current, pending := s.store.snapshot()
	if pending == nil || current.Status != domain.StatusPending {
		logger.InfoKV(ctx, "Nothing to confirm",
			"status", current.Status,
			"error", domain.ErrInvariantViolation,
		)

		return current, nil
	}

	ctx = logger.WithKV(ctx, "pending_id", pending.ID, "kind", pending.Kind.Name())

	record, err := s.remote.CreateAlarm(ctx, pending.Kind, pending.ID, pending.Kind.Payload(pending))
	if err != nil {
		logger.ErrorKV(ctx, "Failed to create alarm", "error", err)

		return current, fmt.Errorf("confirm pending alarm: %w", err)
	}

	if record.AlarmID == "" {
		logger.ErrorKV(ctx, "Remote service returned no alarm id", "status", record.Status)

		return current, fmt.Errorf("confirm pending alarm: %w: response without alarm id", domain.ErrServer)
	}

	remoteStatus := record.Status
	if remoteStatus == "" {
		remoteStatus = string(domain.StatusActive)
	}

	next := &domain.Session{
		AlarmID:        record.AlarmID,
		Status:         domain.StatusActive,
		Kind:           pending.Kind,
		OwnerID:        record.OwnerID,
		Message:        record.Message,
		LastEventType:  domain.EventCreated,
		RemoteStatus:   remoteStatus,
		CreatedContext: pending,
		UpdatedAt:      s.now(),
	}

	s.commit(ctx, current, next, nil, domain.EventCreated)

	logger.InfoKV(ctx, "Alarm created", "alarm_id", next.AlarmID, "owner_id", next.OwnerID)

	return next.Clone(), nil
}

// Cancel discards a pending alarm locally, or cancels an active alarm on the
// remote service. An active alarm whose remote cancel fails stays active.
func (s *Service) Cancel(ctx context.Context) (*domain.Session, error) {
	if err := s.lock.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.lock.release()

	current, pending := s.store.snapshot()

	switch current.Status {
	case domain.StatusPending:
		next := &domain.Session{
			Status:    domain.StatusNone,
			UpdatedAt: s.now(),
		}

		s.commit(ctx, current, next, nil, domain.EventDiscarded)

		logger.InfoKV(ctx, "Pending alarm discarded", "pending_id", pendingID(pending))

		return next.Clone(), nil

	case domain.StatusActive:
		ctx = logger.WithKV(ctx, "alarm_id", current.AlarmID)

		record, err := s.remote.CancelAlarm(ctx, current.AlarmID)
		if err != nil {
			logger.ErrorKV(ctx, "Failed to cancel alarm", "error", err)

			return current, fmt.Errorf("cancel alarm: %w", err)
		}

		next := &domain.Session{
			Status:        domain.StatusNone,
			LastEventType: record.Status,
			RemoteStatus:  record.Status,
			UpdatedAt:     s.now(),
		}

		s.commit(ctx, current, next, nil, record.Status)

		logger.InfoKV(ctx, "Alarm canceled", "remote_status", record.Status)

		return next.Clone(), nil

	default:
		logger.InfoKV(ctx, "Nothing to cancel", "status", current.Status)

		return current, nil
	}
}

// GetStatus refreshes the remote status of an active alarm. The result only
// updates display fields; a remote "closed" does not end the session.
func (s *Service) GetStatus(ctx context.Context) (*domain.Session, error) {
	if err := s.lock.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.lock.release()

	current, _ := s.store.snapshot()
	if current.Status != domain.StatusActive {
		return current, nil
	}

	ctx = logger.WithKV(ctx, "alarm_id", current.AlarmID)

	record, err := s.remote.GetAlarmStatus(ctx, current.AlarmID)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to get alarm status", "error", err)

		return current, fmt.Errorf("get alarm status: %w", err)
	}

	eventType := statusEventType(record.Status)
	if record.Status == current.RemoteStatus && eventType == current.LastEventType {
		return current, nil
	}

	next := current.Clone()
	next.RemoteStatus = record.Status
	next.LastEventType = eventType
	next.UpdatedAt = s.now()

	s.commit(ctx, current, next, nil, eventType)

	logger.InfoKV(ctx, "Alarm status refreshed", "remote_status", record.Status)

	return next.Clone(), nil
}

// OnRemoteEvent applies an event pushed by the remote service. Events for
// another alarm, or received while no alarm is active, are ignored. Closed
// and canceled events only update the display status; the session stays
// active until it is canceled locally.
func (s *Service) OnRemoteEvent(ctx context.Context, event domain.RemoteEvent) (bool, error) {
	if err := s.lock.acquire(ctx); err != nil {
		return false, err
	}
	defer s.lock.release()

	current, _ := s.store.snapshot()
	if current.Status != domain.StatusActive || event.AlarmID == "" || event.AlarmID != current.AlarmID {
		logger.DebugKV(ctx, "Ignoring remote event",
			"event_alarm_id", event.AlarmID,
			"event_type", event.EventType,
			"tracked_alarm_id", current.AlarmID,
			"status", current.Status,
		)

		return false, nil
	}

	next := current.Clone()
	next.LastEventType = event.EventType
	next.UpdatedAt = s.now()

	switch event.EventType {
	case domain.EventClosed:
		next.RemoteStatus = string(domain.StatusClosed)
	case domain.EventCanceled:
		next.RemoteStatus = string(domain.StatusCanceled)
	}

	s.commit(ctx, current, next, nil, event.EventType)

	logger.InfoKV(ctx, "Remote event applied",
		"alarm_id", current.AlarmID,
		"event_type", event.EventType,
		"remote_status", next.RemoteStatus,
	)

	return true, nil
}

// CreateEvent reports another sensor event on the active alarm. Without an
// active alarm it is a logged no-op.
func (s *Service) CreateEvent(ctx context.Context, sensor domain.Sensor) error {
	if err := s.lock.acquire(ctx); err != nil {
		return err
	}
	defer s.lock.release()

	current, _ := s.store.snapshot()
	if current.Status != domain.StatusActive {
		logger.InfoKV(ctx, "No active alarm, event not sent", "entity_id", sensor.EntityID)

		return nil
	}

	_, class, name := resolveSensors(s.sensors, []domain.Sensor{sensor})
	if class == "" || name == "" {
		return fmt.Errorf("%w: sensor %q has no device class or name", domain.ErrValidation, sensor.EntityID)
	}

	payload := domain.CreatePayload{
		SensorDeviceClass: class,
		SensorDeviceName:  name,
	}

	if err := s.remote.CreateEvent(ctx, current.AlarmID, payload); err != nil {
		logger.ErrorKV(ctx, "Failed to create event", "alarm_id", current.AlarmID, "error", err)

		return fmt.Errorf("create event: %w", err)
	}

	logger.InfoKV(ctx, "Event sent", "alarm_id", current.AlarmID, "entity_id", sensor.EntityID)

	return nil
}

// CreateAlert posts a standalone alert. It never touches the session.
func (s *Service) CreateAlert(ctx context.Context, alert domain.Alert) error {
	alert.Type = strings.TrimSpace(alert.Type)
	if alert.Type == "" {
		return fmt.Errorf("%w: alert type is required", domain.ErrValidation)
	}

	if err := s.remote.CreateAlert(ctx, alert); err != nil {
		logger.ErrorKV(ctx, "Failed to create alert", "alert_type", alert.Type, "error", err)

		return fmt.Errorf("create alert: %w", err)
	}

	logger.InfoKV(ctx, "Alert sent", "alert_type", alert.Type, "status", alert.Status)

	return nil
}

// commit stores the new state and appends the transition to the journal.
func (s *Service) commit(
	ctx context.Context,
	from, to *domain.Session,
	pending *domain.PendingContext,
	event string,
) {
	// The remote side already changed; a caller giving up now must not
	// prevent the local record of it.
	ctx = context.WithoutCancel(ctx)

	s.store.commit(ctx, to, pending)

	if s.journal == nil {
		return
	}

	alarmID := to.AlarmID
	if alarmID == "" {
		alarmID = from.AlarmID
	}

	kind := domain.KindName(to.Kind)
	if kind == "" {
		kind = domain.KindName(from.Kind)
	}

	transition := &domain.Transition{
		From:    from.Status,
		To:      to.Status,
		AlarmID: alarmID,
		Kind:    kind,
		Event:   event,
		Actor:   ActorFromContext(ctx).String(),
		At:      to.UpdatedAt,
	}

	if err := s.journal.Append(ctx, transition); err != nil {
		logger.ErrorKV(ctx, "Failed to journal transition", "error", err)
	}
}

// statusEventType renders a polled remote status as an event type.
func statusEventType(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "alarm.status.unknown"
	}

	return "alarm.status." + status
}

func pendingID(p *domain.PendingContext) string {
	if p == nil {
		return ""
	}

	return p.ID
}
