package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cheesecave/internal/display"
	"cheesecave/internal/logger"
	"cheesecave/internal/models"
	"cheesecave/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12

	// The controller measures every few seconds and redraws every minute,
	// so polling faster than a second only repeats the same frame.
	defaultPollInterval = time.Second
	maxPollInterval     = time.Minute
)

const (
	frameSnapshot = "snapshot"
	frameOffline  = "offline"
)

type wsEnvelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// wsSnapshot carries the panel text next to the raw values so a remote
// viewer can mirror the physical display.
type wsSnapshot struct {
	models.Snapshot
	Panel display.Panel `json:"panel"`
}

// The stream is read-only; any origin on the local network may watch it.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// snapshotStream pushes a frame whenever the cave state differs from the
// last one sent.
type snapshotStream struct {
	conn     *websocket.Conn
	monitor  service.Monitoring
	log      *logger.Logger
	last     models.Snapshot
	sent     bool
	offline  bool
	interval time.Duration
}

func (h *Handler) wsConnect(c *gin.Context) {
	interval := pollInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	s := &snapshotStream{conn: conn, monitor: h.services.Monitoring, log: h.log, interval: interval}
	s.run(c.Request.Context())
}

func (s *snapshotStream) run(ctx context.Context) {
	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go s.drain(done)

	if err := s.push(ctx); err != nil {
		s.logInfo("ws_initial_push_failed", err)
		return
	}

	poll := time.NewTicker(s.interval)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logInfo("ws_ping_failed", err)
				return
			}
		case <-poll.C:
			if err := s.push(ctx); err != nil {
				s.logInfo("ws_push_failed", err)
				return
			}
		}
	}
}

// push sends the current snapshot unless nothing changed since the last
// frame. An offline appliance is reported once and the stream stays open
// so the viewer recovers when the controller comes back.
func (s *snapshotStream) push(ctx context.Context) error {
	snap, err := s.monitor.GetState(ctx)
	if errors.Is(err, service.ErrApplianceOffline) && s.sent {
		if s.offline {
			return nil
		}
		s.offline = true
		return s.write(wsEnvelope{Type: frameOffline, Error: err.Error()})
	}
	if err != nil {
		return err
	}

	if s.sent && !s.offline && sameReading(s.last, snap) {
		return nil
	}
	if err := s.write(wsEnvelope{Type: frameSnapshot, Data: wsSnapshot{Snapshot: snap, Panel: display.Compose(snap)}}); err != nil {
		return err
	}
	s.last, s.sent, s.offline = snap, true, false
	return nil
}

func (s *snapshotStream) write(env wsEnvelope) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

// drain reads control frames until the peer goes away.
func (s *snapshotStream) drain(done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.logInfo("ws_read_closed", err)
			return
		}
	}
}

func (s *snapshotStream) logInfo(msg string, err error) {
	if s.log != nil {
		s.log.Infow(msg, "err", err)
	}
}

// sameReading compares everything but the capture time.
func sameReading(a, b models.Snapshot) bool {
	if (a.HumidifierTurnedOnAt == nil) != (b.HumidifierTurnedOnAt == nil) {
		return false
	}
	if a.HumidifierTurnedOnAt != nil && !a.HumidifierTurnedOnAt.Equal(*b.HumidifierTurnedOnAt) {
		return false
	}
	a.TakenAt, b.TakenAt = time.Time{}, time.Time{}
	a.HumidifierTurnedOnAt, b.HumidifierTurnedOnAt = nil, nil
	return a == b
}

// pollInterval reads ?interval=2s or ?interval_ms=2000; out-of-range values
// fall back to the default.
func pollInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxPollInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && time.Duration(v)*time.Millisecond <= maxPollInterval {
			return time.Duration(v) * time.Millisecond
		}
	}
	return defaultPollInterval
}
