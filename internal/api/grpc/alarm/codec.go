package alarm

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
)

// Message field names shared by the server and the client.
const (
	FieldActor            = "actor"
	FieldHostname         = "hostname"
	FieldUsername         = "username"
	FieldKind             = "kind"
	FieldSensors          = "sensors"
	FieldSensor           = "sensor"
	FieldEntityID         = "entity_id"
	FieldDeviceClass      = "device_class"
	FieldName             = "name"
	FieldCommand          = "command"
	FieldMode             = "mode"
	FieldSession          = "session"
	FieldAlarmID          = "alarm_id"
	FieldStatus           = "status"
	FieldOwnerID          = "owner_id"
	FieldMessage          = "message"
	FieldLastEventType    = "last_event_type"
	FieldRemoteStatus     = "remote_status"
	FieldUpdatedAt        = "updated_at"
	FieldAlertType        = "alert_type"
	FieldAlertDescription = "alert_description"
	FieldLimit            = "limit"
	FieldTransitions      = "transitions"
	FieldID               = "id"
	FieldFrom             = "from"
	FieldTo               = "to"
	FieldEvent            = "event"
	FieldAt               = "at"
)

// ActorToValue encodes an actor, nil stays nil.
func ActorToValue(actor *domain.Actor) any {
	if actor == nil {
		return nil
	}

	return map[string]any{
		FieldHostname: actor.Hostname,
		FieldUsername: actor.Username,
	}
}

// ActorFromStruct decodes the actor of a request, nil when absent.
func ActorFromStruct(req *structpb.Struct) *domain.Actor {
	v := req.GetFields()[FieldActor].GetStructValue()
	if v == nil {
		return nil
	}

	return &domain.Actor{
		Hostname: stringField(v, FieldHostname),
		Username: stringField(v, FieldUsername),
	}
}

// SensorToValue encodes a sensor.
func SensorToValue(s domain.Sensor) any {
	return map[string]any{
		FieldEntityID:    s.EntityID,
		FieldDeviceClass: s.DeviceClass,
		FieldName:        s.Name,
	}
}

// SensorFromStruct decodes a sensor.
func SensorFromStruct(st *structpb.Struct) domain.Sensor {
	return domain.Sensor{
		EntityID:    stringField(st, FieldEntityID),
		DeviceClass: stringField(st, FieldDeviceClass),
		Name:        stringField(st, FieldName),
	}
}

// SensorsToValue encodes a sensor list.
func SensorsToValue(sensors []domain.Sensor) []any {
	list := make([]any, 0, len(sensors))
	for _, s := range sensors {
		list = append(list, SensorToValue(s))
	}

	return list
}

// SensorsFromStruct decodes the sensor list of a request.
func SensorsFromStruct(req *structpb.Struct) []domain.Sensor {
	values := req.GetFields()[FieldSensors].GetListValue().GetValues()

	sensors := make([]domain.Sensor, 0, len(values))
	for _, v := range values {
		if st := v.GetStructValue(); st != nil {
			sensors = append(sensors, SensorFromStruct(st))
		}
	}

	return sensors
}

// SessionToValue encodes a session.
func SessionToValue(s *domain.Session) map[string]any {
	if s == nil {
		s = domain.NewSession()
	}

	m := map[string]any{
		FieldAlarmID:       s.AlarmID,
		FieldStatus:        string(s.Status),
		FieldKind:          domain.KindName(s.Kind),
		FieldOwnerID:       s.OwnerID,
		FieldMessage:       s.Message,
		FieldLastEventType: s.LastEventType,
		FieldRemoteStatus:  s.RemoteStatus,
	}

	if !s.UpdatedAt.IsZero() {
		m[FieldUpdatedAt] = s.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	return m
}

// SessionFromStruct decodes a session. Unknown kinds decode as nil.
func SessionFromStruct(st *structpb.Struct) *domain.Session {
	session := &domain.Session{
		AlarmID:       stringField(st, FieldAlarmID),
		Status:        domain.ParseStatus(stringField(st, FieldStatus)),
		OwnerID:       stringField(st, FieldOwnerID),
		Message:       stringField(st, FieldMessage),
		LastEventType: stringField(st, FieldLastEventType),
		RemoteStatus:  stringField(st, FieldRemoteStatus),
	}

	if kind, err := domain.ParseKind(stringField(st, FieldKind)); err == nil {
		session.Kind = kind
	}

	if ts := stringField(st, FieldUpdatedAt); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			session.UpdatedAt = t
		}
	}

	return session
}

// TransitionToValue encodes a journal entry.
func TransitionToValue(t *domain.Transition) map[string]any {
	return map[string]any{
		FieldID:      t.ID,
		FieldFrom:    string(t.From),
		FieldTo:      string(t.To),
		FieldAlarmID: t.AlarmID,
		FieldKind:    t.Kind,
		FieldEvent:   t.Event,
		FieldActor:   t.Actor,
		FieldAt:      t.At.UTC().Format(time.RFC3339Nano),
	}
}

// TransitionsFromStruct decodes a ListTransitions response.
func TransitionsFromStruct(st *structpb.Struct) []*domain.Transition {
	values := st.GetFields()[FieldTransitions].GetListValue().GetValues()

	transitions := make([]*domain.Transition, 0, len(values))

	for _, v := range values {
		item := v.GetStructValue()
		if item == nil {
			continue
		}

		at, _ := time.Parse(time.RFC3339Nano, stringField(item, FieldAt))

		transitions = append(transitions, &domain.Transition{
			ID:      int64(item.GetFields()[FieldID].GetNumberValue()),
			From:    domain.ParseStatus(stringField(item, FieldFrom)),
			To:      domain.ParseStatus(stringField(item, FieldTo)),
			AlarmID: stringField(item, FieldAlarmID),
			Kind:    stringField(item, FieldKind),
			Event:   stringField(item, FieldEvent),
			Actor:   stringField(item, FieldActor),
			At:      at,
		})
	}

	return transitions
}

// NewStruct builds a message from m, dropping nil values.
func NewStruct(m map[string]any) (*structpb.Struct, error) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}

	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	return st, nil
}

func stringField(st *structpb.Struct, key string) string {
	return st.GetFields()[key].GetStringValue()
}
