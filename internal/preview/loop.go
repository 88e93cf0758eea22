// Package preview approximates live view by fetching still frames from the
// device on a fixed cadence.
package preview

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tetherview/tetherview/internal/client"
	"github.com/tetherview/tetherview/internal/config"
	"github.com/tetherview/tetherview/internal/hub"
	"golang.org/x/time/rate"
)

// Source is the subset of the device client the loop uses.
type Source interface {
	LiveFrame(ctx context.Context, w io.Writer) (string, error)
	Snapshot(ctx context.Context) (*client.SnapshotResult, error)
	AutoFocus(ctx context.Context) (*client.Result, error)
}

// Display shows frames. Show is called with the loop's lock held and must
// not keep f or its bytes after returning, nor call back into the loop.
type Display interface {
	Show(f *Frame)
	Clear()
}

// MultiDisplay fans frames out to several displays in order.
type MultiDisplay []Display

func (m MultiDisplay) Show(f *Frame) {
	for _, d := range m {
		d.Show(f)
	}
}

func (m MultiDisplay) Clear() {
	for _, d := range m {
		d.Clear()
	}
}

// State is the loop's lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Stats is a point-in-time view of the loop for status displays.
type Stats struct {
	State    State
	Seq      uint64
	Failures int
	Degraded bool
	LastErr  string
	Delay    time.Duration
}

// Loop fetches frames while running. Each run has a generation and each
// cycle a sequence number; a fetched frame is shown only if its generation
// is current and its sequence is newer than the frame on display.
type Loop struct {
	src    Source
	hub    *hub.Hub
	cfg    config.PreviewConfig
	logger *log.Logger
	now    func() time.Time

	warn rate.Sometimes

	mu      sync.Mutex
	display Display
	state   State
	gen     uint64
	seq     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	slot    Slot
	health  health
}

// NewLoop returns an idle Loop that fetches frames from src.
func NewLoop(src Source, h *hub.Hub, cfg config.PreviewConfig, logger *log.Logger) *Loop {
	return &Loop{
		src:    src,
		hub:    h,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		warn:   rate.Sometimes{First: 3, Interval: 10 * time.Second},
		health: health{threshold: cfg.FailureThreshold},
	}
}

// Bind sets the display target. Binding nil stops a running loop.
func (l *Loop) Bind(d Display) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d == nil {
		l.stopLocked()
	}
	l.display = d
}

// Start begins fetching. It is a no-op when already running or when no
// display is bound, and reports whether a new run started.
func (l *Loop) Start() bool {
	ctx, gen, done, ok := l.begin()
	if !ok {
		return false
	}
	go func() {
		defer close(done)
		l.run(ctx, gen)
	}()
	return true
}

func (l *Loop) begin() (context.Context, uint64, chan struct{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Running || l.display == nil {
		return nil, 0, nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.gen++
	l.state = Running
	l.cancel = cancel
	l.done = make(chan struct{})
	l.health.reset()
	l.logger.Info("preview started", "gen", l.gen, "interval", l.cfg.Interval)
	return ctx, l.gen, l.done, true
}

// Stop cancels the schedule, clears the display and releases the current
// frame. Stopping an idle loop does nothing.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Loop) stopLocked() {
	if l.state == Idle {
		return
	}
	l.state = Idle
	l.gen++
	l.cancel()
	l.cancel = nil
	l.slot.Clear()
	if l.display != nil {
		l.display.Clear()
	}
	l.health.reset()
	l.logger.Info("preview stopped")
}

// Wait blocks until the scheduler goroutine of the last run has exited.
func (l *Loop) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns the lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stats returns the current counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		State:    l.state,
		Seq:      l.slot.Seq(),
		Failures: l.health.failures,
		Degraded: l.health.degraded,
		LastErr:  l.health.lastErr,
		Delay:    l.health.delay(l.cfg.Interval, l.cfg.BackoffMax),
	}
}

// run schedules cycles until ctx is cancelled. Up to MaxInFlight fetches
// may overlap; a tick that finds them all busy is skipped.
func (l *Loop) run(ctx context.Context, gen uint64) {
	slots := make(chan struct{}, max(l.cfg.MaxInFlight, 1))
	timer := time.NewTimer(0)
	defer timer.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		select {
		case slots <- struct{}{}:
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-slots }()
				l.cycle(ctx, gen)
			}()
		default:
			l.logger.Debug("tick skipped, fetches in flight", "gen", gen)
		}

		timer.Reset(l.nextDelay())
	}
}

func (l *Loop) nextDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.health.delay(l.cfg.Interval, l.cfg.BackoffMax)
}

// cycle performs one fetch and applies its result.
func (l *Loop) cycle(ctx context.Context, gen uint64) {
	seq, ok := l.nextSeq(gen)
	if !ok {
		return
	}

	buf := getBuffer()
	ct, err := l.src.LiveFrame(ctx, buf)
	if err != nil {
		putBuffer(buf)
		l.fail(gen, err)
		return
	}
	l.apply(newFrame(buf, ct, gen, seq, l.now()))
}

func (l *Loop) nextSeq(gen uint64) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || l.state != Running {
		return 0, false
	}
	l.seq++
	return l.seq, true
}

func (l *Loop) apply(f *Frame) {
	l.mu.Lock()
	if f.Gen != l.gen || l.state != Running || f.Seq <= l.slot.Seq() {
		l.mu.Unlock()
		l.logger.Debug("discarding stale frame", "gen", f.Gen, "seq", f.Seq)
		f.release()
		return
	}
	l.slot.Replace(f)
	l.display.Show(f)
	recovered := l.health.recordSuccess()
	l.mu.Unlock()

	if recovered {
		l.logger.Info("preview recovered", "seq", f.Seq)
		l.hub.Emit(hub.Recovered, nil)
	}
}

func (l *Loop) fail(gen uint64, err error) {
	l.mu.Lock()
	if gen != l.gen || l.state != Running {
		l.mu.Unlock()
		return
	}
	degraded := l.health.recordFailure(err, l.now())
	failures := l.health.failures
	l.mu.Unlock()

	l.warn.Do(func() {
		l.logger.Warn("preview fetch failed", "err", err, "failures", failures)
	})
	if degraded {
		l.logger.Warn("preview degraded", "failures", failures)
		l.hub.Emit(hub.Degraded, failures)
	}
}

// Snapshot asks the device for a still. Failures are logged only.
func (l *Loop) Snapshot(ctx context.Context) (string, bool) {
	res, err := l.src.Snapshot(ctx)
	if err != nil {
		l.logger.Warn("snapshot failed", "err", err)
		return "", false
	}
	if !res.Success {
		l.logger.Warn("snapshot refused", "message", res.Message)
		return "", false
	}
	l.logger.Info("snapshot", "url", res.URL)
	return res.URL, true
}

// AutoFocus triggers the device's autofocus. Failures are logged only.
func (l *Loop) AutoFocus(ctx context.Context) bool {
	res, err := l.src.AutoFocus(ctx)
	if err != nil {
		l.logger.Warn("autofocus failed", "err", err)
		return false
	}
	if !res.Success {
		l.logger.Warn("autofocus refused", "message", res.Message)
		return false
	}
	return true
}
