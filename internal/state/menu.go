package state

import (
	"cheesecave/internal/document"
	"cheesecave/internal/models"
)

// Effect is what a button press did beyond (or instead of) moving the menu.
type Effect int

const (
	EffectNone Effect = iota
	EffectModeChanged
	EffectDesiredHumidity
	EffectWaterEmpty
	EffectWaterRefilled
	EffectShutdown
)

// Transition describes one menu step.
type Transition struct {
	Button          models.Button
	From, To        models.Mode
	Effect          Effect
	DesiredHumidity float64
}

// Press applies a button to the menu state machine:
//
//	mode          primary                  secondary
//	GENERAL_INFO  -> HUMIDITY_SET          -> SETTINGS
//	HUMIDITY_SET  desired humidity + 1     desired humidity - 1
//	SETTINGS      shutdown                 -> WATER_SET
//	WATER_SET     tank empty               tank refilled, run time reset
//
// The shutdown hook runs after all locks are released.
func (s *DeviceState) Press(b models.Button) Transition {
	if b == models.ButtonPrimary {
		return s.Primary()
	}
	return s.Secondary()
}

// Primary handles the top button.
func (s *DeviceState) Primary() Transition {
	s.mu.Lock()
	tr := Transition{Button: models.ButtonPrimary, From: s.mode, To: s.mode}
	var hook func()

	switch s.mode {
	case models.ModeGeneralInfo:
		s.mode = models.ModeHumiditySet
		tr.Effect = EffectModeChanged
	case models.ModeHumiditySet:
		tr.DesiredHumidity = s.stepDesiredHumidity(1)
		tr.Effect = EffectDesiredHumidity
	case models.ModeSettings:
		hook = s.shutdown
		tr.Effect = EffectShutdown
	case models.ModeWaterSet:
		s.doc.Set(KeyHasWater, false)
		tr.Effect = EffectWaterEmpty
	}
	tr.To = s.mode
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return tr
}

// Secondary handles the bottom button.
func (s *DeviceState) Secondary() Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr := Transition{Button: models.ButtonSecondary, From: s.mode}

	switch s.mode {
	case models.ModeGeneralInfo:
		s.mode = models.ModeSettings
		tr.Effect = EffectModeChanged
	case models.ModeHumiditySet:
		tr.DesiredHumidity = s.stepDesiredHumidity(-1)
		tr.Effect = EffectDesiredHumidity
	case models.ModeSettings:
		s.mode = models.ModeWaterSet
		tr.Effect = EffectModeChanged
	case models.ModeWaterSet:
		s.doc.Update(func(f document.Fields) {
			f[KeyHasWater] = true
			f[KeyTotalHumidifierRunTime] = 0.0
		})
		tr.Effect = EffectWaterRefilled
	}
	tr.To = s.mode
	return tr
}

func (s *DeviceState) stepDesiredHumidity(delta float64) float64 {
	var v float64
	s.doc.Update(func(f document.Fields) {
		cur, _ := f[KeyDesiredHumidity].(float64)
		v = clampHumidity(cur + delta)
		f[KeyDesiredHumidity] = v
	})
	return v
}
