package models

import "time"

// Event types recorded in the appliance history.
const (
	EventHumidifierOn    = "HUMIDIFIER_ON"
	EventHumidifierOff   = "HUMIDIFIER_OFF"
	EventWaterEmpty      = "WATER_EMPTY"
	EventWaterRefilled   = "WATER_REFILLED"
	EventDesiredHumidity = "DESIRED_HUMIDITY"
	EventModeChange      = "MODE_CHANGE"
	EventTelemetry       = "TELEMETRY"
	EventError           = "ERROR"
	EventShutdown        = "SHUTDOWN"
)

// Event is a single history entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

// EventTypes lists every type the history may hold.
var EventTypes = []string{
	EventHumidifierOn,
	EventHumidifierOff,
	EventWaterEmpty,
	EventWaterRefilled,
	EventDesiredHumidity,
	EventModeChange,
	EventTelemetry,
	EventError,
	EventShutdown,
}

// IsEventType reports whether s names a known event type.
func IsEventType(s string) bool {
	for _, t := range EventTypes {
		if t == s {
			return true
		}
	}
	return false
}
