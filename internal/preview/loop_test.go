package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tetherview/tetherview/internal/client"
	"github.com/tetherview/tetherview/internal/config"
	"github.com/tetherview/tetherview/internal/hub"
	"github.com/tetherview/tetherview/internal/logging"
)

// scriptSource answers LiveFrame from a queue of results. A nil error
// writes "frame-<n>" where n counts calls from 1.
type scriptSource struct {
	mu    sync.Mutex
	calls int
	fail  map[int]error
	gate  map[int]chan struct{}
}

func (s *scriptSource) LiveFrame(ctx context.Context, w io.Writer) (string, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	err := s.fail[n]
	gate := s.gate[n]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	fmt.Fprintf(w, "frame-%d", n)
	return "image/jpeg", nil
}

func (s *scriptSource) Snapshot(ctx context.Context) (*client.SnapshotResult, error) {
	return &client.SnapshotResult{Success: true, URL: "/snap.jpg"}, nil
}

func (s *scriptSource) AutoFocus(ctx context.Context) (*client.Result, error) {
	return nil, errors.New("not supported")
}

// recordingDisplay copies what it is shown.
type recordingDisplay struct {
	mu      sync.Mutex
	shown   []string
	frames  []*Frame
	cleared int
}

func (d *recordingDisplay) Show(f *Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, string(f.Bytes()))
	d.frames = append(d.frames, f)
}

func (d *recordingDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared++
}

func (d *recordingDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shown)
}

func testConfig() config.PreviewConfig {
	return config.PreviewConfig{
		Interval:         10 * time.Millisecond,
		FailureThreshold: 3,
		BackoffMax:       80 * time.Millisecond,
		MaxInFlight:      2,
	}
}

func newTestLoop(src Source) (*Loop, *recordingDisplay, *hub.Hub) {
	h := hub.New(logging.Discard())
	l := NewLoop(src, h, testConfig(), logging.Discard())
	d := &recordingDisplay{}
	l.Bind(d)
	return l, d, h
}

func TestStartWithoutDisplayIsNoop(t *testing.T) {
	l := NewLoop(&scriptSource{}, hub.New(logging.Discard()), testConfig(), logging.Discard())
	if l.Start() {
		t.Fatal("Start without display should not start")
	}
	if l.State() != Idle {
		t.Errorf("state = %v, want idle", l.State())
	}
}

func TestStartIsIdempotent(t *testing.T) {
	l, _, _ := newTestLoop(&scriptSource{})
	_, gen, _, ok := l.begin()
	if !ok {
		t.Fatal("first begin failed")
	}
	if _, _, _, ok := l.begin(); ok {
		t.Error("second begin should be a no-op")
	}
	if l.gen != gen {
		t.Errorf("gen moved to %d", l.gen)
	}
	l.Stop()
}

func TestStopOnIdleIsNoop(t *testing.T) {
	l, d, h := newTestLoop(&scriptSource{})
	events := 0
	for _, n := range []string{hub.Degraded, hub.Recovered, hub.Disconnected} {
		h.Subscribe(n, func(hub.Event) { events++ })
	}

	l.Stop()
	l.Stop()

	if d.cleared != 0 || events != 0 {
		t.Errorf("cleared = %d, events = %d, want 0", d.cleared, events)
	}
}

func TestFailedTickKeepsPreviousFrame(t *testing.T) {
	src := &scriptSource{fail: map[int]error{3: errors.New("connection reset")}}
	l, d, _ := newTestLoop(src)
	ctx, gen, _, _ := l.begin()

	var held []*Frame
	for tick := 1; tick <= 5; tick++ {
		l.cycle(ctx, gen)
		held = append(held, l.slot.Current())
	}

	if want := []string{"frame-1", "frame-2", "frame-4", "frame-5"}; !reflect.DeepEqual(d.shown, want) {
		t.Fatalf("shown = %v, want %v", d.shown, want)
	}
	if held[2] != held[1] {
		t.Error("tick 3 replaced the displayed frame")
	}
	for i, f := range d.frames[:3] {
		if !f.Released() {
			t.Errorf("frame %d not released after replacement", i)
		}
	}
	if cur := l.slot.Current(); cur != d.frames[3] || cur.Released() {
		t.Error("latest frame should be held and live")
	}

	l.Stop()
	if !d.frames[3].Released() {
		t.Error("Stop did not release the held frame")
	}
	if d.cleared != 1 {
		t.Errorf("cleared = %d, want 1", d.cleared)
	}
}

func TestLateResultAfterRestartIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	src := &scriptSource{gate: map[int]chan struct{}{1: gate}}
	l, d, _ := newTestLoop(src)

	ctx1, gen1, _, _ := l.begin()
	done := make(chan struct{})
	go func() {
		l.cycle(ctx1, gen1)
		close(done)
	}()

	// Wait until the first fetch is in flight.
	for {
		src.mu.Lock()
		n := src.calls
		src.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	l.Stop()
	ctx2, gen2, _, ok := l.begin()
	if !ok {
		t.Fatal("restart failed")
	}
	l.cycle(ctx2, gen2)

	close(gate)
	<-done

	if want := []string{"frame-2"}; !reflect.DeepEqual(d.shown, want) {
		t.Errorf("shown = %v, want %v", d.shown, want)
	}
	if cur := l.slot.Current(); cur == nil || string(cur.Bytes()) != "frame-2" {
		t.Error("late frame replaced the current one")
	}
	l.Stop()
}

func TestOlderSequenceIsDiscarded(t *testing.T) {
	l, d, _ := newTestLoop(&scriptSource{})
	_, gen, _, _ := l.begin()

	newer := newFrame(getBuffer(), "image/jpeg", gen, 5, time.Now())
	older := newFrame(getBuffer(), "image/jpeg", gen, 4, time.Now())
	l.apply(newer)
	l.apply(older)

	if d.count() != 1 || d.frames[0] != newer {
		t.Errorf("shown %d frames, want only the newer one", d.count())
	}
	if !older.Released() {
		t.Error("discarded frame not released")
	}
	l.Stop()
}

func TestDegradedAndRecovered(t *testing.T) {
	fail := map[int]error{}
	for i := 1; i <= 4; i++ {
		fail[i] = errors.New("timeout")
	}
	src := &scriptSource{fail: fail}
	l, _, h := newTestLoop(src)

	var events []hub.Event
	h.Subscribe(hub.Degraded, func(e hub.Event) { events = append(events, e) })
	h.Subscribe(hub.Recovered, func(e hub.Event) { events = append(events, e) })

	ctx, gen, _, _ := l.begin()
	base := l.cfg.Interval

	l.cycle(ctx, gen)
	l.cycle(ctx, gen)
	if len(events) != 0 || l.nextDelay() != base {
		t.Fatalf("below threshold: events = %v, delay = %v", events, l.nextDelay())
	}

	l.cycle(ctx, gen)
	if len(events) != 1 || events[0].Name != hub.Degraded || events[0].Payload != 3 {
		t.Fatalf("events = %+v, want degraded(3)", events)
	}
	if got := l.nextDelay(); got != 2*base {
		t.Errorf("delay = %v, want %v", got, 2*base)
	}

	l.cycle(ctx, gen)
	if len(events) != 1 {
		t.Errorf("degraded emitted again: %+v", events)
	}
	if got := l.nextDelay(); got != 4*base {
		t.Errorf("delay = %v, want %v", got, 4*base)
	}

	l.cycle(ctx, gen)
	if len(events) != 2 || events[1].Name != hub.Recovered {
		t.Fatalf("events = %+v, want recovered", events)
	}
	if st := l.Stats(); st.Degraded || st.Failures != 0 || st.Delay != base {
		t.Errorf("stats after recovery = %+v", st)
	}
	l.Stop()
}

func TestFailureAfterStopIsIgnored(t *testing.T) {
	src := &scriptSource{fail: map[int]error{1: context.Canceled}}
	l, _, _ := newTestLoop(src)
	ctx, gen, _, _ := l.begin()
	l.Stop()

	l.fail(gen, errors.New("late"))
	l.cycle(ctx, gen)

	if st := l.Stats(); st.Failures != 0 {
		t.Errorf("failures = %d, want 0", st.Failures)
	}
}

func TestHealthDelayIsCapped(t *testing.T) {
	h := health{threshold: 1}
	for i := 0; i < 100; i++ {
		h.recordFailure(errors.New("x"), time.Now())
	}
	if got := h.delay(100*time.Millisecond, 5*time.Second); got != 5*time.Second {
		t.Errorf("delay = %v, want cap", got)
	}
}

func TestRunAgainstHTTPDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") == "" {
			t.Error("missing cache-busting parameter")
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	c := client.NewHTTPClient(srv.URL, "", time.Second)
	l, d, _ := newTestLoop(c)

	if !l.Start() {
		t.Fatal("Start failed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for d.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	l.Stop()
	l.Wait()

	if d.count() < 3 {
		t.Fatalf("shown %d frames, want at least 3", d.count())
	}
	shown := d.count()
	time.Sleep(30 * time.Millisecond)
	if d.count() != shown {
		t.Error("frames shown after Stop returned")
	}
	if l.State() != Idle || l.slot.Current() != nil {
		t.Error("loop not idle and empty after Stop")
	}
}

func TestBindNilStops(t *testing.T) {
	l, d, _ := newTestLoop(&scriptSource{})
	l.begin()
	l.Bind(nil)
	if l.State() != Idle || d.cleared != 1 {
		t.Errorf("state = %v, cleared = %d", l.State(), d.cleared)
	}
	if l.Start() {
		t.Error("Start with nil display should be a no-op")
	}
}

func TestAuxiliaryCommands(t *testing.T) {
	l, _, _ := newTestLoop(&scriptSource{})
	if url, ok := l.Snapshot(context.Background()); !ok || url != "/snap.jpg" {
		t.Errorf("Snapshot = %q, %v", url, ok)
	}
	if l.AutoFocus(context.Background()) {
		t.Error("AutoFocus should report failure")
	}
}

func TestMultiDisplay(t *testing.T) {
	a, b := &recordingDisplay{}, &recordingDisplay{}
	m := MultiDisplay{a, b}
	f := newFrame(getBuffer(), "", 1, 1, time.Now())
	m.Show(f)
	m.Clear()
	if a.count() != 1 || b.count() != 1 || a.cleared != 1 || b.cleared != 1 {
		t.Error("MultiDisplay did not reach every display")
	}
}
