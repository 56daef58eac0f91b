package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"cheesecave/internal/logger"
	"cheesecave/internal/models"
	"cheesecave/internal/repository"

	"github.com/jonboulle/clockwork"
)

const (
	eventQueueSize = 256
	drainTimeout   = 5 * time.Second
)

// EventLogService records appliance events into the history and serves
// filtered reads. Record never blocks: the control loop hands events to a
// queue that Run writes out.
type EventLogService struct {
	eventRepo repository.EventRepo
	clock     clockwork.Clock
	log       *logger.Logger
	queue     chan models.Event
}

func NewEventLogService(eventRepo repository.EventRepo, clock clockwork.Clock, log *logger.Logger) *EventLogService {
	if log == nil {
		log = logger.Nop()
	}
	return &EventLogService{
		eventRepo: eventRepo,
		clock:     clock,
		log:       log.Named("eventlog"),
		queue:     make(chan models.Event, eventQueueSize),
	}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// Record queues an event. A full queue drops the event with a warning.
func (s *EventLogService) Record(typ, description string, metadata any) {
	e := models.Event{
		OccurredAt:  s.clock.Now().UTC(),
		Type:        typ,
		Description: description,
		Metadata:    metadata,
	}
	select {
	case s.queue <- e:
	default:
		s.log.Warnw("event_dropped", "type", typ, "description", description)
	}
}

// Run writes queued events until ctx is done, then drains what is left.
func (s *EventLogService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx))
			return
		case e := <-s.queue:
			s.write(ctx, e)
		}
	}
}

func (s *EventLogService) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-s.queue:
			s.write(ctx, e)
		default:
			return
		}
	}
}

func (s *EventLogService) write(ctx context.Context, e models.Event) {
	if err := s.eventRepo.Append(ctx, e); err != nil {
		s.log.Errorw("event_append_failed", "type", e.Type, "err", err)
	}
}

// Prune deletes events older than retention. A non-positive retention keeps
// everything.
func (s *EventLogService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-retention)
	n, err := s.eventRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Infow("events_pruned", "deleted", n, "cutoff", cutoff.UTC())
	}
	return n, nil
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.Event, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}
