package lifecycle

import (
	"github.com/oshokin/alarm-coordinator/internal/config"
	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
)

// SensorDirectory resolves a sensor entity id to its device class and name.
type SensorDirectory interface {
	Lookup(entityID string) (domain.Sensor, bool)
}

// StaticDirectory is a SensorDirectory backed by a fixed list.
type StaticDirectory map[string]domain.Sensor

// NewStaticDirectory builds a directory from configured sensors.
func NewStaticDirectory(sensors []config.Sensor) StaticDirectory {
	dir := make(StaticDirectory, len(sensors))
	for _, s := range sensors {
		dir[s.EntityID] = domain.Sensor{
			EntityID:    s.EntityID,
			DeviceClass: s.DeviceClass,
			Name:        s.Name,
		}
	}

	return dir
}

// Lookup implements SensorDirectory.
func (d StaticDirectory) Lookup(entityID string) (domain.Sensor, bool) {
	s, ok := d[entityID]

	return s, ok
}

// resolveSensors fills missing class and name from the directory and
// returns the class and name of the alarm. The last sensor that knows a
// value wins.
func resolveSensors(dir SensorDirectory, sensors []domain.Sensor) ([]domain.Sensor, string, string) {
	resolved := make([]domain.Sensor, 0, len(sensors))

	var class, name string

	for _, s := range sensors {
		if dir != nil && (s.DeviceClass == "" || s.Name == "") {
			if known, ok := dir.Lookup(s.EntityID); ok {
				if s.DeviceClass == "" {
					s.DeviceClass = known.DeviceClass
				}

				if s.Name == "" {
					s.Name = known.Name
				}
			}
		}

		if s.DeviceClass != "" {
			class = s.DeviceClass
		}

		if s.Name != "" {
			name = s.Name
		}

		resolved = append(resolved, s)
	}

	return resolved, class, name
}
