package hardware

import (
	"context"
	"sync"
	"testing"
	"time"

	"cheesecave/internal/models"

	"github.com/jonboulle/clockwork"
)

type recordingPin struct {
	mu    sync.Mutex
	edges []string
}

func (p *recordingPin) High() { p.mu.Lock(); p.edges = append(p.edges, "H"); p.mu.Unlock() }
func (p *recordingPin) Low()  { p.mu.Lock(); p.edges = append(p.edges, "L"); p.mu.Unlock() }

func TestHumidifier_Pulse(t *testing.T) {
	pin := &recordingPin{}
	h := newHumidifier(pin, clockwork.NewRealClock())
	h.hold, h.gap = time.Millisecond, time.Millisecond

	if err := h.Pulse(2); err != nil {
		t.Fatalf("Pulse: %v", err)
	}
	if got := len(pin.edges); got != 4 {
		t.Fatalf("expected 4 edges, got %d (%v)", got, pin.edges)
	}
	for i, want := range []string{"H", "L", "H", "L"} {
		if pin.edges[i] != want {
			t.Fatalf("edge %d = %s, want %s", i, pin.edges[i], want)
		}
	}
}

type scriptedEdges struct {
	mu      sync.Mutex
	pending int
}

func (p *scriptedEdges) EdgeDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == 0 {
		return false
	}
	p.pending--
	return true
}

func (p *scriptedEdges) fire() {
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()
}

func TestButtons_DebounceAndDispatch(t *testing.T) {
	fc := clockwork.NewFakeClock()
	top, bottom := &scriptedEdges{}, &scriptedEdges{}
	b := newButtons(map[models.Button]edgePin{
		models.ButtonPrimary:   top,
		models.ButtonSecondary: bottom,
	}, fc)

	pressed := make(chan models.Button, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Watch(ctx, func(btn models.Button) { pressed <- btn })
		close(done)
	}()

	tick := func(d time.Duration) {
		t.Helper()
		bctx, bcancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer bcancel()
		if err := fc.BlockUntilContext(bctx, 1); err != nil {
			t.Fatalf("ticker not armed: %v", err)
		}
		fc.Advance(d)
	}
	expect := func(want models.Button) {
		t.Helper()
		select {
		case got := <-pressed:
			if got != want {
				t.Fatalf("pressed %s, want %s", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no press for %s", want)
		}
	}

	top.fire()
	tick(buttonPoll)
	expect(models.ButtonPrimary)

	// A bounce 10ms later is swallowed; the edge is consumed anyway.
	top.fire()
	tick(buttonPoll)

	bottom.fire()
	tick(buttonPoll)
	expect(models.ButtonSecondary)

	top.fire()
	tick(buttonDebounce)
	expect(models.ButtonPrimary)

	cancel()
	<-done
	select {
	case got := <-pressed:
		t.Fatalf("unexpected press %s", got)
	default:
	}
}
