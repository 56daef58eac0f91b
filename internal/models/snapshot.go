package models

import "time"

// Snapshot is a read-only copy of the device state handed to renderers,
// the HTTP API and the websocket stream.
type Snapshot struct {
	Mode                   Mode       `json:"mode"`
	Temperature            float64    `json:"temperature_c"`
	Humidity               float64    `json:"humidity"`
	DesiredHumidity        float64    `json:"desired_humidity"`
	HasWater               bool       `json:"has_water"`
	WaterLevel             float64    `json:"water_level"`
	HeaterOn               bool       `json:"heater_on"`
	HumidifierOn           bool       `json:"humidifier_state"`
	HumidifierTurnedOnAt   *time.Time `json:"time_humidifier_turned_on,omitempty"`
	TotalHumidifierRunTime float64    `json:"total_humidifier_run_time"`
	TakenAt                time.Time  `json:"taken_at"`
}

// Operator is an account allowed to use the remote panel API.
type Operator struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
