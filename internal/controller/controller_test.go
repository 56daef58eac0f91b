package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cheesecave/internal/document"
	"cheesecave/internal/models"
	"cheesecave/internal/state"
	"cheesecave/internal/store/memory"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensor struct {
	mu       sync.Mutex
	readings []Sample
	err      error
	heater   []bool
}

func (s *fakeSensor) Read() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, 0, s.err
	}
	r := s.readings[0]
	if len(s.readings) > 1 {
		s.readings = s.readings[1:]
	}
	return r.Temperature, r.Humidity, nil
}

func (s *fakeSensor) SetHeater(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heater = append(s.heater, on)
	return nil
}

func (s *fakeSensor) set(r ...Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = r
}

func (s *fakeSensor) heaterCalls() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.heater...)
}

type fakeLine struct {
	mu     sync.Mutex
	pulses []int
	err    error
}

func (l *fakeLine) Pulse(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.pulses = append(l.pulses, n)
	return nil
}

func (l *fakeLine) calls() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.pulses...)
}

type fakeRenderer struct {
	mu    sync.Mutex
	snaps []models.Snapshot
}

func (r *fakeRenderer) Render(s models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
	return nil
}

func (r *fakeRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *fakeRenderer) last() models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

type fakeSink struct {
	mu    sync.Mutex
	types []string
}

func (s *fakeSink) Record(eventType, _ string, _ any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, eventType)
}

func (s *fakeSink) has(eventType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.types {
		if t == eventType {
			return true
		}
	}
	return false
}

type rig struct {
	fc       *clockwork.FakeClock
	st       *memory.Store
	cfg      *state.Configuration
	dev      *state.DeviceState
	sensor   *fakeSensor
	line     *fakeLine
	renderer *fakeRenderer
	sink     *fakeSink
	ctrl     *Controller
}

// newRig loads both documents on a fake clock. Every document and every
// controller task holds one timer, so a started rig has six waiters.
func newRig(t *testing.T, config map[string]any) *rig {
	t.Helper()
	r := &rig{
		fc:       clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
		st:       memory.New(),
		sensor:   &fakeSensor{readings: []Sample{{Temperature: 12, Humidity: 80}}},
		line:     &fakeLine{},
		renderer: &fakeRenderer{},
		sink:     &fakeSink{},
	}
	ctx := context.Background()
	var err error
	r.cfg, err = state.LoadConfiguration(ctx, r.st, state.ConfigPath, document.WithClock(r.fc))
	require.NoError(t, err)
	r.dev, err = state.LoadDeviceState(ctx, r.st, state.StatePath, r.fc)
	require.NoError(t, err)
	for k, v := range config {
		r.cfg.Document().Set(k, v)
	}

	r.ctrl = New(r.cfg, r.dev, Hardware{
		Sensors:    []Sensor{r.sensor},
		Humidifier: r.line,
		Renderers:  []Renderer{r.renderer},
	}, r.sink, nil, r.fc, nil)

	t.Cleanup(func() {
		r.ctrl.Stop()
		r.cfg.Document().Close()
		r.dev.Document().Close()
	})
	return r
}

func (r *rig) waitForTimers(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.fc.BlockUntilContext(ctx, n))
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestController_EndToEndHumidifierOn(t *testing.T) {
	r := newRig(t, map[string]any{
		state.KeySensors:             1,
		state.KeyHumidifierConnected: true,
	})
	r.sensor.set(Sample{Temperature: 20, Humidity: 40}, Sample{Temperature: 22, Humidity: 50})

	r.ctrl.Start()
	r.waitForTimers(t, 6)

	assert.Equal(t, []int{2}, r.line.calls(), "humidity below desired turns the humidifier on")
	assert.True(t, r.dev.HumidifierOn())
	assert.True(t, r.sink.has(models.EventHumidifierOn))

	r.fc.Advance(5 * time.Second)
	eventually(t, func() bool {
		temp, hum := r.dev.Measurement()
		return temp == 21 && hum == 45
	})

	// Still below desired and already on: no further pulses.
	r.waitForTimers(t, 6)
	r.fc.Advance(55 * time.Second)
	r.waitForTimers(t, 6)
	assert.Equal(t, []int{2}, r.line.calls())
}

func TestController_HumidifierOffWhenHumidEnough(t *testing.T) {
	r := newRig(t, map[string]any{
		state.KeySensors:                 1,
		state.KeyHumidifierConnected:     true,
		state.KeyHumidifierDecisionDelay: 10,
		state.KeyMeasurementDelay:        10,
		state.KeyDisplayUpdateDelay:      10,
	})
	r.sensor.set(Sample{Temperature: 12, Humidity: 30})
	r.ctrl.Start()
	require.Equal(t, []int{2}, r.line.calls())

	r.sensor.set(Sample{Temperature: 12, Humidity: 90})
	r.fc.Advance(2 * time.Minute)
	r.waitForTimers(t, 6)
	// Window of one sample: the next decision sees 90% and switches off.
	r.fc.Advance(10 * time.Second)
	eventually(t, func() bool { return !r.dev.HumidifierOn() })
	assert.Equal(t, []int{2, 1}, r.line.calls())
	assert.True(t, r.sink.has(models.EventHumidifierOff))
	assert.Greater(t, r.dev.TotalHumidifierRunTime(), 0.0)
}

func TestController_HumidifierNeedsWaterAndConnection(t *testing.T) {
	r := newRig(t, map[string]any{state.KeySensors: 1})
	r.sensor.set(Sample{Temperature: 12, Humidity: 10})
	r.ctrl.Start()
	assert.Empty(t, r.line.calls(), "not connected: no-op")

	r2 := newRig(t, map[string]any{state.KeySensors: 1, state.KeyHumidifierConnected: true})
	r2.sensor.set(Sample{Temperature: 12, Humidity: 10})
	r2.dev.SetHasWater(false)
	r2.ctrl.Start()
	assert.Empty(t, r2.line.calls(), "no water: stays off")
}

func TestController_PulseFailureKeepsState(t *testing.T) {
	r := newRig(t, map[string]any{state.KeySensors: 1, state.KeyHumidifierConnected: true})
	r.sensor.set(Sample{Temperature: 12, Humidity: 10})
	r.line.err = errors.New("gpio busy")
	r.ctrl.Start()

	assert.False(t, r.dev.HumidifierOn())
	assert.True(t, r.sink.has(models.EventError))
}

func TestController_HeaterCycle(t *testing.T) {
	r := newRig(t, map[string]any{state.KeySensors: 1})
	r.ctrl.Start()
	assert.Equal(t, []bool{true}, r.sensor.heaterCalls())
	assert.True(t, r.dev.HeaterOn())
	r.waitForTimers(t, 6)

	r.fc.Advance(time.Second)
	eventually(t, func() bool { return !r.dev.HeaterOn() })
	assert.Equal(t, []bool{true, false}, r.sensor.heaterCalls())

	r.waitForTimers(t, 6)
	r.fc.Advance(19 * time.Second)
	r.waitForTimers(t, 6)
	assert.False(t, r.dev.HeaterOn(), "off for heater_delay_seconds")
	r.fc.Advance(time.Second)
	eventually(t, func() bool { return r.dev.HeaterOn() })
}

func TestController_ZeroSensorsAveragesZero(t *testing.T) {
	r := newRig(t, nil)
	r.dev.SetMeasurement(5, 5)
	r.ctrl.Start()

	temp, hum := r.dev.Measurement()
	assert.Equal(t, 0.0, temp)
	assert.Equal(t, 0.0, hum)
	assert.Empty(t, r.sensor.heaterCalls(), "unconfigured sensors are left alone")
}

func TestController_FailedSensorsSkipSample(t *testing.T) {
	r := newRig(t, map[string]any{state.KeySensors: 1})
	r.sensor.set(Sample{Temperature: 14, Humidity: 70})
	r.ctrl.Start()
	r.waitForTimers(t, 6)

	r.sensor.mu.Lock()
	r.sensor.err = errors.New("crc mismatch")
	r.sensor.mu.Unlock()
	r.fc.Advance(5 * time.Second)
	r.waitForTimers(t, 6)

	temp, hum := r.dev.Measurement()
	assert.Equal(t, 14.0, temp)
	assert.Equal(t, 70.0, hum)
	r.ctrl.mu.Lock()
	assert.Equal(t, 1, r.ctrl.window.Len())
	r.ctrl.mu.Unlock()
}

func TestController_ButtonDebouncesRefreshAndReturnsToGeneralInfo(t *testing.T) {
	r := newRig(t, nil)
	r.ctrl.Start()
	require.Equal(t, 1, r.renderer.count())
	r.waitForTimers(t, 6)

	tr := r.ctrl.Press(models.ButtonPrimary)
	assert.Equal(t, models.ModeHumiditySet, tr.To)
	assert.True(t, r.sink.has(models.EventModeChange))
	// The idle-return timer joins the six.
	r.waitForTimers(t, 7)
	assert.Equal(t, 1, r.renderer.count(), "press does not render synchronously")

	r.fc.Advance(3 * time.Second)
	eventually(t, func() bool { return r.renderer.count() == 2 })
	assert.Equal(t, models.ModeHumiditySet, r.renderer.last().Mode)

	r.waitForTimers(t, 7)
	r.fc.Advance(17 * time.Second)
	eventually(t, func() bool { return r.dev.Mode() == models.ModeGeneralInfo })
	eventually(t, func() bool { return r.renderer.count() == 3 })
	assert.Equal(t, models.ModeGeneralInfo, r.renderer.last().Mode)
}

func TestController_PressRearmsIdleTimer(t *testing.T) {
	r := newRig(t, nil)
	r.ctrl.Start()
	r.waitForTimers(t, 6)

	r.ctrl.Press(models.ButtonPrimary)
	r.waitForTimers(t, 7)
	r.fc.Advance(15 * time.Second)
	r.waitForTimers(t, 7)

	r.ctrl.Press(models.ButtonPrimary)
	r.waitForTimers(t, 7)
	r.fc.Advance(15 * time.Second)
	r.waitForTimers(t, 7)
	assert.Equal(t, models.ModeHumiditySet, r.dev.Mode(), "second press restarted the idle countdown")
	assert.Equal(t, 51.0, r.dev.DesiredHumidity())
	assert.True(t, r.sink.has(models.EventDesiredHumidity))
}

func TestController_TelemetryRecordedOnRefresh(t *testing.T) {
	r := newRig(t, nil)
	r.ctrl.Start()
	assert.True(t, r.sink.has(models.EventTelemetry))
}

func TestController_RemoteEditRefreshesDisplay(t *testing.T) {
	r := newRig(t, nil)
	r.ctrl.Start()
	require.Equal(t, 1, r.renderer.count())
	r.waitForTimers(t, 6)

	fields := r.dev.Document().Snapshot()
	fields[state.KeyDesiredHumidity] = 72.0
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	require.NoError(t, r.st.Put(context.Background(), state.StatePath, raw))
	eventually(t, func() bool { return r.dev.DesiredHumidity() == 72 })

	r.waitForTimers(t, 6)
	r.fc.Advance(3 * time.Second)
	eventually(t, func() bool { return r.renderer.count() == 2 })
	assert.Equal(t, 72.0, r.renderer.last().DesiredHumidity)
}
