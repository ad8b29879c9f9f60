package alarm

import (
	"fmt"
	"strings"
)

// Kind is the alarm type. The set of variants is closed: Security,
// Monitoring and MedicalAlert. Each one knows its remote create endpoint
// and how to shape its create payload.
type Kind interface {
	// Name is the wire name of the variant.
	Name() string
	// Endpoint is the create path relative to the remote base URL.
	Endpoint() string
	// Payload builds the create request body from the pending context.
	Payload(pending *PendingContext) CreatePayload

	isKind()
}

// CreatePayload is the body sent when an alarm is created remotely.
type CreatePayload struct {
	SensorDeviceClass string `json:"sensor_device_class"`
	SensorDeviceName  string `json:"sensor_device_name"`
}

// Wire names of the alarm kinds.
const (
	KindNameSecurity     = "security"
	KindNameMonitoring   = "monitoring"
	KindNameMedicalAlert = "medicalalert"
)

// Security is a burglary/intrusion alarm.
type Security struct{}

// Monitoring is a monitored-premises alarm.
type Monitoring struct{}

// MedicalAlert is a personal medical emergency.
type MedicalAlert struct{}

// Name implements Kind.
func (Security) Name() string { return KindNameSecurity }

// Endpoint implements Kind.
func (Security) Endpoint() string { return "createsecurityalarm" }

// Payload implements Kind. Security alarms fall back to a door sensor.
func (Security) Payload(pending *PendingContext) CreatePayload {
	return payloadWithDefaults(pending, "door", "frontdoor")
}

func (Security) isKind() {}

// Name implements Kind.
func (Monitoring) Name() string { return KindNameMonitoring }

// Endpoint implements Kind.
func (Monitoring) Endpoint() string { return "createmonitoringalarm" }

// Payload implements Kind.
func (Monitoring) Payload(pending *PendingContext) CreatePayload {
	return payloadWithDefaults(pending, "medical", "medical alert")
}

func (Monitoring) isKind() {}

// Name implements Kind.
func (MedicalAlert) Name() string { return KindNameMedicalAlert }

// Endpoint implements Kind.
func (MedicalAlert) Endpoint() string { return "createmedicalalarm" }

// Payload implements Kind. The medical contract always reports the
// pendant itself, whatever sensor tripped.
func (MedicalAlert) Payload(*PendingContext) CreatePayload {
	return CreatePayload{
		SensorDeviceClass: "medical",
		SensorDeviceName:  "medical alert",
	}
}

func (MedicalAlert) isKind() {}

func payloadWithDefaults(pending *PendingContext, class, name string) CreatePayload {
	payload := CreatePayload{
		SensorDeviceClass: class,
		SensorDeviceName:  name,
	}

	if pending == nil {
		return payload
	}

	if pending.SensorDeviceClass != "" {
		payload.SensorDeviceClass = pending.SensorDeviceClass
	}

	if pending.SensorDeviceName != "" {
		payload.SensorDeviceName = pending.SensorDeviceName
	}

	return payload
}

// ParseKind maps a wire name to its Kind. Matching ignores case and
// surrounding whitespace; "medical" and "med_alert" are accepted aliases.
//
//nolint:ireturn // Kind is a closed sum type.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case KindNameSecurity:
		return Security{}, nil
	case KindNameMonitoring:
		return Monitoring{}, nil
	case KindNameMedicalAlert, "medical", "med_alert":
		return MedicalAlert{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// KindName returns the wire name of k, or "" for nil.
func KindName(k Kind) string {
	if k == nil {
		return ""
	}

	return k.Name()
}
