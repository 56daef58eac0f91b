package state

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"cheesecave/internal/document"
	"cheesecave/internal/models"
	"cheesecave/internal/store/memory"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeviceState(t *testing.T) (*DeviceState, *clockwork.FakeClock, *memory.Store) {
	t.Helper()
	st := memory.New()
	fc := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s, err := LoadDeviceState(context.Background(), st, StatePath, fc)
	require.NoError(t, err)
	t.Cleanup(s.Document().Close)
	return s, fc, st
}

func newConfiguration(t *testing.T, st *memory.Store) *Configuration {
	t.Helper()
	c, err := LoadConfiguration(context.Background(), st, ConfigPath, document.WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)
	t.Cleanup(c.Document().Close)
	return c
}

func TestConfiguration_Defaults(t *testing.T) {
	c := newConfiguration(t, memory.New())

	assert.Equal(t, 0, c.Sensors())
	assert.False(t, c.HumidifierConnected())
	assert.Equal(t, 20*time.Second, c.MenuReturnDelay())
	assert.Equal(t, 5*time.Second, c.SensorDelay())
	assert.Equal(t, 60*time.Second, c.DisplayUpdateDelay())
	assert.Equal(t, 3*time.Second, c.DisplayUpdateInputDelay())
	assert.Equal(t, time.Second, c.HeaterOn())
	assert.Equal(t, 20*time.Second, c.HeaterDelay())
	assert.Equal(t, 5*time.Second, c.MeasurementDelay())
	assert.Equal(t, 60*time.Second, c.HumidifierDecisionDelay())
	assert.Equal(t, 300*time.Second, c.StoreDelay())
}

func TestConfiguration_ReadsLiveValues(t *testing.T) {
	c := newConfiguration(t, memory.New())

	c.Document().Set(KeyHeaterOn, 2.5)
	c.Document().Set(KeySensors, 3)
	c.Document().Set(KeyMeasurementDelay, 0)
	c.Document().Set(KeyHeaterDelay, -4)

	assert.Equal(t, 2500*time.Millisecond, c.HeaterOn())
	assert.Equal(t, 3, c.Sensors())
	assert.Equal(t, 5*time.Second, c.MeasurementDelay(), "non-positive delay falls back to default")
	assert.Equal(t, 20*time.Second, c.HeaterDelay())
}

func TestDesiredHumidity_StaysInRange(t *testing.T) {
	s, _, _ := newDeviceState(t)
	s.SetMode(models.ModeHumiditySet)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		if r.Intn(3) == 0 {
			s.Secondary()
		} else {
			s.Primary()
		}
		v := s.DesiredHumidity()
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 100.0)
	}
	assert.Equal(t, models.ModeHumiditySet, s.Mode())

	s.SetDesiredHumidity(140)
	assert.Equal(t, 100.0, s.DesiredHumidity())
	s.SetDesiredHumidity(-3)
	assert.Equal(t, 0.0, s.DesiredHumidity())
}

func TestHumidifier_Accounting(t *testing.T) {
	s, fc, _ := newDeviceState(t)

	assert.True(t, s.SetHumidifier(true))
	on := s.Snapshot()
	require.NotNil(t, on.HumidifierTurnedOnAt)
	assert.True(t, on.HumidifierTurnedOnAt.Equal(fc.Now()))

	fc.Advance(90 * time.Second)
	assert.False(t, s.SetHumidifier(true), "redundant on keeps the original stamp")
	assert.True(t, s.Snapshot().HumidifierTurnedOnAt.Equal(on.TakenAt))

	fc.Advance(30 * time.Second)
	assert.True(t, s.SetHumidifier(false))
	off := s.Snapshot()
	assert.Nil(t, off.HumidifierTurnedOnAt)
	assert.False(t, off.HumidifierOn)
	assert.InDelta(t, 120.0, s.TotalHumidifierRunTime(), 1e-6)

	fc.Advance(time.Hour)
	assert.False(t, s.SetHumidifier(false), "double off adds nothing")
	assert.InDelta(t, 120.0, s.TotalHumidifierRunTime(), 1e-6)
}

func TestWaterLevel(t *testing.T) {
	s, _, _ := newDeviceState(t)
	doc := s.Document()

	assert.Equal(t, 1.0, s.WaterLevel())

	doc.Set(KeyTotalHumidifierRunTime, 0.04*14400)
	assert.Equal(t, 1.0, s.WaterLevel(), "under five percent used reads as full")

	doc.Set(KeyTotalHumidifierRunTime, 3600)
	assert.InDelta(t, 0.75, s.WaterLevel(), 1e-9)

	doc.Set(KeyTotalHumidifierRunTime, 20000)
	assert.Equal(t, 0.0, s.WaterLevel())

	doc.Set(KeyHumidifierCapacity, 0)
	assert.Equal(t, 0.0, s.WaterLevel())
	doc.Set(KeyTotalHumidifierRunTime, 0)
	assert.Equal(t, 1.0, s.WaterLevel())

	doc.Set(KeyHumidifierCapacity, 14400)
	doc.Set(KeyTotalHumidifierRunTime, 10000)
	s.SetMode(models.ModeWaterSet)
	tr := s.Secondary()
	assert.Equal(t, EffectWaterRefilled, tr.Effect)
	assert.Equal(t, 1.0, s.WaterLevel())
	assert.True(t, s.HasWater())
}

func TestMenu_Trace(t *testing.T) {
	s, _, _ := newDeviceState(t)

	tr := s.Primary()
	assert.Equal(t, Transition{Button: models.ButtonPrimary, From: models.ModeGeneralInfo, To: models.ModeHumiditySet, Effect: EffectModeChanged}, tr)

	tr = s.Primary()
	assert.Equal(t, EffectDesiredHumidity, tr.Effect)
	assert.Equal(t, 51.0, tr.DesiredHumidity)
	assert.Equal(t, models.ModeHumiditySet, s.Mode())

	tr = s.Secondary()
	assert.Equal(t, 50.0, s.DesiredHumidity())
	assert.Equal(t, models.ModeHumiditySet, tr.To)
}

func TestMenu_SettingsAndWater(t *testing.T) {
	s, _, _ := newDeviceState(t)
	shutdowns := 0
	s.SetShutdownHook(func() {
		// The hook may read state without deadlocking.
		_ = s.Mode()
		shutdowns++
	})

	assert.Equal(t, models.ModeSettings, s.Secondary().To)

	tr := s.Primary()
	assert.Equal(t, EffectShutdown, tr.Effect)
	assert.Equal(t, 1, shutdowns)
	assert.Equal(t, models.ModeSettings, s.Mode())

	assert.Equal(t, models.ModeWaterSet, s.Secondary().To)

	tr = s.Press(models.ButtonPrimary)
	assert.Equal(t, EffectWaterEmpty, tr.Effect)
	assert.False(t, s.HasWater())
	assert.Equal(t, models.ModeWaterSet, s.Mode())
}

func TestMenu_ShutdownWithoutHook(t *testing.T) {
	s, _, _ := newDeviceState(t)
	s.SetMode(models.ModeSettings)
	assert.Equal(t, EffectShutdown, s.Primary().Effect)
}

func TestSnapshot_IncludesMeasurement(t *testing.T) {
	s, fc, _ := newDeviceState(t)
	s.SetMeasurement(12.5, 83)
	s.SetHeaterOn(true)

	snap := s.Snapshot()
	assert.Equal(t, 12.5, snap.Temperature)
	assert.Equal(t, 83.0, snap.Humidity)
	assert.True(t, snap.HeaterOn)
	assert.Equal(t, 50.0, snap.DesiredHumidity)
	assert.True(t, snap.TakenAt.Equal(fc.Now()))
}

func TestDeviceState_MeasurementIsNotStored(t *testing.T) {
	s, _, st := newDeviceState(t)
	s.SetMeasurement(12.5, 83)
	require.NoError(t, s.Document().Flush(context.Background()))

	raw, _, err := st.Get(context.Background(), StatePath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "temperature")
}
