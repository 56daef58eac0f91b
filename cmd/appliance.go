package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"cheesecave/internal/config"
	"cheesecave/internal/controller"
	"cheesecave/internal/document"
	"cheesecave/internal/handlers"
	"cheesecave/internal/logger"
	"cheesecave/internal/metrics"
	"cheesecave/internal/models"
	"cheesecave/internal/repository"
	repodb "cheesecave/internal/repository/db"
	"cheesecave/internal/scheduler"
	"cheesecave/internal/server"
	"cheesecave/internal/service"
	"cheesecave/internal/state"
	"cheesecave/internal/telemetry"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	flushTimeout    = 10 * time.Second
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
)

// devices is what run and emulate plug into the shared appliance wiring.
type devices struct {
	// build opens the sensors and humidifier line once the configuration
	// document is loaded.
	build func(cfg *state.Configuration) (controller.Hardware, func() error, error)
	// buttons feeds physical presses until ctx is done. Optional.
	buttons func(ctx context.Context, press func(models.Button))
	// renderer is the local panel.
	renderer controller.Renderer
	// powerOff runs when the operator chose shutdown from the menu.
	powerOff func() error
}

// runAppliance wires documents, controller, history and the optional HTTP
// and MQTT surfaces, then blocks until ctx is done or the operator shuts the
// appliance down from the menu.
func runAppliance(ctx context.Context, opts *rootOptions, dev devices) error {
	s := opts.settings
	log := opts.log
	clock := clockwork.NewRealClock()

	if err := s.ValidateHTTP(); err != nil {
		return err
	}
	if w := config.Watch(opts.v, func(e fsnotify.Event, fresh config.Settings) {
		log.SetLevel(fresh.LogLevel)
		log.Infow("config_reloaded", "file", e.Name, "op", e.Op.String(), "log_level", log.Level())
	}); w {
		log.Infow("config_watch_started", "file", opts.v.ConfigFileUsed())
	}

	db, err := repodb.InitDB(s.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("sqlite_close_failed", "err", cerr)
		}
	}()
	repos := repository.NewRepository(db)

	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	st, closeStore, err := openStore(ctx, s.Store, db)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			log.Errorw("store_close_failed", "err", cerr)
		}
	}()
	log.Infow("store_connected", "backend", s.Store.Backend)

	docOpts := []document.Option{
		document.WithClock(clock),
		document.WithLogger(log),
		document.WithRecorder(rec),
		document.WithTimeout(s.Store.Timeout),
	}
	cfg, err := state.LoadConfiguration(ctx, st, s.Store.ConfigKey, docOpts...)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer cfg.Document().Close()
	devState, err := state.LoadDeviceState(ctx, st, s.Store.StateKey, clock, docOpts...)
	if err != nil {
		return fmt.Errorf("load device state: %w", err)
	}
	defer devState.Document().Close()

	// History outlives the control loop so the last events get written.
	eventsCtx, stopEvents := context.WithCancel(context.WithoutCancel(ctx))
	events := service.NewEventLogService(repos.EventRepo, clock, log)
	var eventsWG sync.WaitGroup
	eventsWG.Add(1)
	go func() {
		defer eventsWG.Done()
		events.Run(eventsCtx)
	}()
	defer func() {
		stopEvents()
		eventsWG.Wait()
	}()

	hw, closeHW, err := dev.build(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeHW(); cerr != nil {
			log.Errorw("hardware_close_failed", "err", cerr)
		}
	}()
	hw.Renderers = append(hw.Renderers, dev.renderer)

	if s.MQTT.Broker != "" {
		pub, err := telemetry.Connect(s.MQTT.Broker, s.MQTT.ClientID, s.MQTT.Topic, log)
		if err != nil {
			log.Warnw("mqtt_disabled", "broker", s.MQTT.Broker, "err", err)
		} else {
			defer pub.Close()
			hw.Renderers = append(hw.Renderers, pub)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var powerOff atomic.Bool
	devState.SetShutdownHook(func() {
		events.Record(models.EventShutdown, "shutdown requested from the menu", nil)
		powerOff.Store(true)
		cancel()
	})

	ctrl := controller.New(cfg, devState, hw, events, rec, clock, log)
	ctrl.Start()
	log.Infow("controller_started",
		"sensors", len(hw.Sensors),
		"humidifier_connected", cfg.HumidifierConnected(),
		"desired_humidity", devState.DesiredHumidity())

	hk, err := startHousekeeping(clock, log, events, s.DB.Retention)
	if err != nil {
		ctrl.Stop()
		return err
	}

	var srv *server.Server
	if s.HTTP.Enabled {
		svc := service.NewService(repos, ctrl, events, service.AuthConfig{
			SigningKey: s.Auth.SigningKey,
			TokenTTL:   s.Auth.TokenTTL,
		})
		srv = runHTTPServer(s.HTTP.Port, handlers.NewHandler(svc, rec.Handler(), log), log, cancel)
	}

	if dev.buttons != nil {
		go dev.buttons(ctx, func(b models.Button) { ctrl.Press(b) })
	}

	<-ctx.Done()
	log.Infow("shutting_down", "power_off", powerOff.Load())

	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(sctx); err != nil {
			log.Errorw("http_shutdown_failed", "err", err)
		}
		scancel()
	}
	if err := hk.Stop(); err != nil {
		log.Errorw("housekeeping_stop_failed", "err", err)
	}
	ctrl.Stop()
	flushDocuments(log, cfg.Document(), devState.Document())

	if powerOff.Load() && dev.powerOff != nil {
		stopEvents()
		eventsWG.Wait()
		if err := dev.powerOff(); err != nil {
			return fmt.Errorf("power off: %w", err)
		}
	}
	return nil
}

func startHousekeeping(clock clockwork.Clock, log *logger.Logger, events *service.EventLogService, retention time.Duration) (*scheduler.Housekeeping, error) {
	hk, err := scheduler.NewHousekeeping(clock, log.Named("housekeeping"))
	if err != nil {
		return nil, err
	}
	if _, err := hk.Every("event_retention", pruneInterval, func(ctx context.Context) error {
		_, err := events.Prune(ctx, retention)
		return err
	}); err != nil {
		return nil, err
	}
	hk.Start()
	return hk, nil
}

// flushDocuments writes pending local changes so a restart resumes from
// them.
func flushDocuments(log *logger.Logger, docs ...*document.Document) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for _, d := range docs {
		if err := d.Flush(ctx); err != nil {
			log.Errorw("document_flush_failed", "path", d.Path(), "err", err)
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine. A listen
// failure stops the appliance.
func runHTTPServer(port string, h *handlers.Handler, log *logger.Logger, stop context.CancelFunc) *server.Server {
	srv := &server.Server{}
	go func() {
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, h.InitRoutes()); err != nil {
			log.Errorw("http_server_failed", "err", err)
			stop()
		}
	}()
	return srv
}

// systemPowerOff halts the host.
func systemPowerOff() error {
	out, err := exec.Command("shutdown", "-h", "now").CombinedOutput()
	if err != nil {
		return errors.Join(err, fmt.Errorf("shutdown: %s", out))
	}
	return nil
}
