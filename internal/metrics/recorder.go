// Package metrics exports controller and replication metrics to Prometheus.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"cheesecave/internal/models"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cheesecave"

type Recorder struct {
	once sync.Once
	reg  *prom.Registry

	temperature     prom.Gauge
	humidity        prom.Gauge
	desiredHumidity prom.Gauge
	waterLevel      prom.Gauge
	heaterOn        prom.Gauge
	humidifierOn    prom.Gauge
	switches        *prom.CounterVec
	sensorErrors    *prom.CounterVec
	buttonPresses   *prom.CounterVec
	refreshes       prom.Counter
	docWrites       *prom.CounterVec
	remoteChanges   *prom.CounterVec
	reconnects      *prom.CounterVec
}

// NewRecorder builds the metrics and registers them on reg, or on a fresh
// registry when reg is nil.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{reg: reg}
	r.once.Do(func() {
		gauge := func(name, help string) prom.Gauge {
			return prom.NewGauge(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help})
		}
		counter := func(name, help string, labels ...string) *prom.CounterVec {
			return prom.NewCounterVec(prom.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
		}

		r.temperature = gauge("temperature_celsius", "Averaged temperature over the measurement window")
		r.humidity = gauge("humidity_percent", "Averaged relative humidity over the measurement window")
		r.desiredHumidity = gauge("desired_humidity_percent", "Target relative humidity")
		r.waterLevel = gauge("water_level_ratio", "Estimated water left in the humidifier tank")
		r.heaterOn = gauge("sensor_heater_on", "Whether the sensor heaters are running")
		r.humidifierOn = gauge("humidifier_on", "Whether the humidifier is running")
		r.switches = counter("humidifier_switches_total", "Humidifier switches by resulting state", "state")
		r.sensorErrors = counter("sensor_read_errors_total", "Failed sensor reads", "sensor")
		r.buttonPresses = counter("button_presses_total", "Menu button presses", "button")
		r.refreshes = prom.NewCounter(prom.CounterOpts{Namespace: namespace, Name: "display_refreshes_total", Help: "Display refreshes"})
		r.docWrites = counter("document_writes_total", "Document writes to the store by result", "path", "result")
		r.remoteChanges = counter("document_remote_changes_total", "Remote edits applied to a document", "path")
		r.reconnects = counter("watch_reconnects_total", "Watch resubscription attempts", "path")

		reg.MustRegister(
			r.temperature, r.humidity, r.desiredHumidity, r.waterLevel, r.heaterOn, r.humidifierOn,
			r.switches, r.sensorErrors, r.buttonPresses, r.refreshes,
			r.docWrites, r.remoteChanges, r.reconnects,
		)
	})
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prom.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (r *Recorder) Measurement(temperature, humidity float64) {
	if r == nil {
		return
	}
	r.temperature.Set(temperature)
	r.humidity.Set(humidity)
}

func (r *Recorder) SensorError(sensor int) {
	if r == nil {
		return
	}
	r.sensorErrors.WithLabelValues(strconv.Itoa(sensor)).Inc()
}

func (r *Recorder) Heater(on bool) {
	if r == nil {
		return
	}
	r.heaterOn.Set(boolValue(on))
}

func (r *Recorder) Humidifier(on bool) {
	if r == nil {
		return
	}
	r.humidifierOn.Set(boolValue(on))
	state := "off"
	if on {
		state = "on"
	}
	r.switches.WithLabelValues(state).Inc()
}

func (r *Recorder) ButtonPress(b models.Button) {
	if r == nil {
		return
	}
	r.buttonPresses.WithLabelValues(string(b)).Inc()
}

func (r *Recorder) Refresh(snap models.Snapshot) {
	if r == nil {
		return
	}
	r.refreshes.Inc()
	r.desiredHumidity.Set(snap.DesiredHumidity)
	r.waterLevel.Set(snap.WaterLevel)
	r.humidifierOn.Set(boolValue(snap.HumidifierOn))
	r.heaterOn.Set(boolValue(snap.HeaterOn))
}

func (r *Recorder) DocumentWrite(path string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failed"
	}
	r.docWrites.WithLabelValues(path, result).Inc()
}

func (r *Recorder) DocumentRemoteChange(path string) {
	if r == nil {
		return
	}
	r.remoteChanges.WithLabelValues(path).Inc()
}

func (r *Recorder) WatchReconnect(path string) {
	if r == nil {
		return
	}
	r.reconnects.WithLabelValues(path).Inc()
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
