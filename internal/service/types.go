package service

import (
	"time"

	"cheesecave/internal/models"
)

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "HUMIDIFIER_ON", "MODE_CHANGE", "ERROR", ...
}

// PressResult is what a remote button press did to the menu.
type PressResult struct {
	From     models.Mode     `json:"from"`
	To       models.Mode     `json:"to"`
	Snapshot models.Snapshot `json:"snapshot"`
}
