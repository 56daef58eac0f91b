package state

import (
	"context"
	"math"
	"sync"
	"time"

	"cheesecave/internal/document"
	"cheesecave/internal/models"
	"cheesecave/internal/store"

	"github.com/jonboulle/clockwork"
)

// Device state keys.
const (
	KeyDesiredHumidity        = "desired_humidity"
	KeyHasWater               = "has_water"
	KeyHeaterState            = "heater_on"
	KeyHumidifierState        = "humidifier_state"
	KeyHumidifierTurnedOnAt   = "time_humidifier_turned_on"
	KeyTotalHumidifierRunTime = "total_humidifier_run_time"
	KeyHumidifierCapacity     = "humidifier_capacity_time_seconds"
)

// StateDefaults is the device state written when none is stored.
func StateDefaults() map[string]any {
	return map[string]any{
		KeyDesiredHumidity:        50,
		KeyHasWater:               true,
		KeyHeaterState:            false,
		KeyHumidifierState:        false,
		KeyHumidifierTurnedOnAt:   nil,
		KeyTotalHumidifierRunTime: 0,
		KeyHumidifierCapacity:     4 * 60 * 60,
	}
}

// Below this share of used capacity the tank reads as full.
const fullTankThreshold = 0.05

// DeviceState is the device state document plus the process-local menu
// mode and latest averaged measurement.
//
// Lock order is DeviceState.mu, then the document lock.
type DeviceState struct {
	doc   *document.Document
	clock clockwork.Clock

	mu          sync.Mutex
	mode        models.Mode
	temperature float64
	humidity    float64
	shutdown    func()
}

func LoadDeviceState(ctx context.Context, st store.Store, path string, clock clockwork.Clock, opts ...document.Option) (*DeviceState, error) {
	opts = append([]document.Option{document.WithClock(clock)}, opts...)
	doc, err := document.Load(ctx, st, path, StateDefaults(), opts...)
	if err != nil {
		return nil, err
	}
	return NewDeviceState(doc, clock), nil
}

func NewDeviceState(doc *document.Document, clock clockwork.Clock) *DeviceState {
	return &DeviceState{doc: doc, clock: clock, mode: models.ModeGeneralInfo}
}

func (s *DeviceState) Document() *document.Document { return s.doc }

// SetShutdownHook installs the action taken on primary in SETTINGS.
func (s *DeviceState) SetShutdownHook(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = fn
}

// OnChange registers fn to run after a remote edit replaced the document.
func (s *DeviceState) OnChange(fn func()) {
	s.doc.OnChange(fn)
}

func (s *DeviceState) DesiredHumidity() float64 { return s.doc.Float(KeyDesiredHumidity) }

// SetDesiredHumidity stores v clamped to [0, 100].
func (s *DeviceState) SetDesiredHumidity(v float64) {
	s.doc.Set(KeyDesiredHumidity, clampHumidity(v))
}

func (s *DeviceState) HasWater() bool { return s.doc.Bool(KeyHasWater) }

func (s *DeviceState) SetHasWater(v bool) { s.doc.Set(KeyHasWater, v) }

func (s *DeviceState) HeaterOn() bool { return s.doc.Bool(KeyHeaterState) }

func (s *DeviceState) SetHeaterOn(v bool) { s.doc.Set(KeyHeaterState, v) }

func (s *DeviceState) HumidifierOn() bool { return s.doc.Bool(KeyHumidifierState) }

// TotalHumidifierRunTime is the accumulated humidifier on-time in seconds
// since the tank was last refilled.
func (s *DeviceState) TotalHumidifierRunTime() float64 {
	return s.doc.Float(KeyTotalHumidifierRunTime)
}

// SetHumidifier records a humidifier switch. Turning on stamps the current
// time; turning off adds the elapsed on-time to the total and clears the
// stamp in the same critical section. Calls that do not change the state
// leave the accounting untouched. It reports whether the state changed.
func (s *DeviceState) SetHumidifier(on bool) bool {
	now := epochSeconds(s.clock.Now())
	changed := false
	s.doc.Update(func(f document.Fields) {
		if cur, _ := f[KeyHumidifierState].(bool); cur == on {
			return
		}
		changed = true
		f[KeyHumidifierState] = on
		if on {
			f[KeyHumidifierTurnedOnAt] = now
			return
		}
		if stamp, ok := f[KeyHumidifierTurnedOnAt].(float64); ok {
			total, _ := f[KeyTotalHumidifierRunTime].(float64)
			f[KeyTotalHumidifierRunTime] = total + math.Max(0, now-stamp)
		}
		f[KeyHumidifierTurnedOnAt] = nil
	})
	return changed
}

// WaterLevel is the estimated share of water left in the tank, in [0, 1].
func (s *DeviceState) WaterLevel() float64 {
	var level float64
	s.doc.View(func(f document.Fields) { level = waterLevel(f) })
	return level
}

func waterLevel(f document.Fields) float64 {
	total, _ := f[KeyTotalHumidifierRunTime].(float64)
	capacity, _ := f[KeyHumidifierCapacity].(float64)
	if capacity <= 0 {
		if total <= 0 {
			return 1
		}
		return 0
	}
	used := total / capacity
	if used < fullTankThreshold {
		return 1
	}
	return math.Max(0, math.Min(1, 1-used))
}

// SetMeasurement stores the latest window average.
func (s *DeviceState) SetMeasurement(temperature, humidity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature, s.humidity = temperature, humidity
}

func (s *DeviceState) Measurement() (temperature, humidity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature, s.humidity
}

func (s *DeviceState) Mode() models.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the menu mode and reports whether it changed.
func (s *DeviceState) SetMode(m models.Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == m {
		return false
	}
	s.mode = m
	return true
}

// Snapshot copies the whole state at the current time.
func (s *DeviceState) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := models.Snapshot{
		Mode:        s.mode,
		Temperature: s.temperature,
		Humidity:    s.humidity,
		TakenAt:     s.clock.Now(),
	}
	s.doc.View(func(f document.Fields) {
		snap.DesiredHumidity, _ = f[KeyDesiredHumidity].(float64)
		snap.HasWater, _ = f[KeyHasWater].(bool)
		snap.HeaterOn, _ = f[KeyHeaterState].(bool)
		snap.HumidifierOn, _ = f[KeyHumidifierState].(bool)
		snap.TotalHumidifierRunTime, _ = f[KeyTotalHumidifierRunTime].(float64)
		snap.WaterLevel = waterLevel(f)
		if stamp, ok := f[KeyHumidifierTurnedOnAt].(float64); ok {
			t := fromEpochSeconds(stamp)
			snap.HumidifierTurnedOnAt = &t
		}
	})
	return snap
}

func clampHumidity(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpochSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second)))
}
