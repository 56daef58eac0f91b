package models

import "fmt"

// Mode is the operator menu mode. It is process-local and never persisted.
type Mode int

const (
	ModeGeneralInfo Mode = iota
	ModeHumiditySet
	ModeSettings
	ModeWaterSet
)

func (m Mode) String() string {
	switch m {
	case ModeGeneralInfo:
		return "GENERAL_INFO"
	case ModeHumiditySet:
		return "HUMIDITY_SET"
	case ModeSettings:
		return "SETTINGS"
	case ModeWaterSet:
		return "WATER_SET"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText renders the mode by name in JSON payloads.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "GENERAL_INFO":
		*m = ModeGeneralInfo
	case "HUMIDITY_SET":
		*m = ModeHumiditySet
	case "SETTINGS":
		*m = ModeSettings
	case "WATER_SET":
		*m = ModeWaterSet
	default:
		return fmt.Errorf("unknown mode %q", string(b))
	}
	return nil
}

// Button identifies one of the two menu buttons.
type Button string

const (
	ButtonPrimary   Button = "primary"   // top button
	ButtonSecondary Button = "secondary" // bottom button
)

// ParseButton validates a button name coming from outside the process.
func ParseButton(s string) (Button, error) {
	switch Button(s) {
	case ButtonPrimary, ButtonSecondary:
		return Button(s), nil
	}
	return "", fmt.Errorf("unknown button %q: must be primary or secondary", s)
}
