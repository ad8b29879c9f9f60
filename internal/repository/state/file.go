package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-coordinator/internal/config"
	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
)

// Snapshot is the persisted lifecycle state: the session and the pending slot.
type Snapshot struct {
	Session *domain.Session
	Pending *domain.PendingContext
}

// Repository defines persistence operations for the lifecycle state.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// FileRepository persists the snapshot to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu serialises access to the state file.
	mu sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st structpb.Struct
	if err = protojson.Unmarshal(contents, &st); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	snapshot, err := fromStruct(&st)
	if err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return snapshot, nil
}

// Save writes the snapshot to disk. The file is replaced atomically.
func (r *FileRepository) Save(_ context.Context, snapshot *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := toStruct(snapshot)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// toStruct converts the snapshot into a protobuf Struct.
func toStruct(snapshot *Snapshot) (*structpb.Struct, error) {
	session := domain.NewSession()
	if snapshot != nil && snapshot.Session != nil {
		session = snapshot.Session
	}

	fields := map[string]any{
		"alarm_id":        session.AlarmID,
		"status":          string(session.Status),
		"kind":            domain.KindName(session.Kind),
		"owner_id":        session.OwnerID,
		"message":         session.Message,
		"last_event_type": session.LastEventType,
		"remote_status":   session.RemoteStatus,
		"updated_at":      formatTime(session.UpdatedAt),
		"created_context": pendingToMap(session.CreatedContext),
		"pending":         nil,
	}

	if snapshot != nil {
		fields["pending"] = pendingToMap(snapshot.Pending)
	}

	return structpb.NewStruct(fields)
}

// fromStruct converts a protobuf Struct back into a snapshot.
func fromStruct(st *structpb.Struct) (*Snapshot, error) {
	f := st.GetFields()

	session := &domain.Session{
		AlarmID:       f["alarm_id"].GetStringValue(),
		Status:        domain.ParseStatus(f["status"].GetStringValue()),
		OwnerID:       f["owner_id"].GetStringValue(),
		Message:       f["message"].GetStringValue(),
		LastEventType: f["last_event_type"].GetStringValue(),
		RemoteStatus:  f["remote_status"].GetStringValue(),
		UpdatedAt:     parseTime(f["updated_at"].GetStringValue()),
	}

	if name := f["kind"].GetStringValue(); name != "" {
		kind, err := domain.ParseKind(name)
		if err != nil {
			return nil, err
		}

		session.Kind = kind
	}

	created, err := pendingFromStruct(f["created_context"].GetStructValue())
	if err != nil {
		return nil, err
	}

	session.CreatedContext = created

	pending, err := pendingFromStruct(f["pending"].GetStructValue())
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Session: session,
		Pending: pending,
	}, nil
}

func pendingToMap(p *domain.PendingContext) any {
	if p == nil {
		return nil
	}

	sensors := make([]any, 0, len(p.Sensors))
	for _, s := range p.Sensors {
		sensors = append(sensors, map[string]any{
			"entity_id":    s.EntityID,
			"device_class": s.DeviceClass,
			"name":         s.Name,
		})
	}

	return map[string]any{
		"id":                  p.ID,
		"kind":                domain.KindName(p.Kind),
		"sensors":             sensors,
		"sensor_device_class": p.SensorDeviceClass,
		"sensor_device_name":  p.SensorDeviceName,
		"created_at":          formatTime(p.CreatedAt),
	}
}

func pendingFromStruct(st *structpb.Struct) (*domain.PendingContext, error) {
	if st == nil {
		return nil, nil //nolint:nilnil // Absent pending context is not an error.
	}

	f := st.GetFields()

	kind, err := domain.ParseKind(f["kind"].GetStringValue())
	if err != nil {
		return nil, err
	}

	p := &domain.PendingContext{
		ID:                f["id"].GetStringValue(),
		Kind:              kind,
		SensorDeviceClass: f["sensor_device_class"].GetStringValue(),
		SensorDeviceName:  f["sensor_device_name"].GetStringValue(),
		CreatedAt:         parseTime(f["created_at"].GetStringValue()),
	}

	for _, v := range f["sensors"].GetListValue().GetValues() {
		sf := v.GetStructValue().GetFields()
		p.Sensors = append(p.Sensors, domain.Sensor{
			EntityID:    sf["entity_id"].GetStringValue(),
			DeviceClass: sf["device_class"].GetStringValue(),
			Name:        sf["name"].GetStringValue(),
		})
	}

	return p, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
