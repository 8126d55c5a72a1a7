package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keytally/keytally/internal/storage"
)

// ErrPermissionDenied is returned by Start when the OS has not granted the
// capture permission. The caller should trigger the permission request and
// retry once the user has granted it.
var ErrPermissionDenied = errors.New("capture: input monitoring permission not granted")

// State is the capture session lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options tunes session behavior. Zero values take the defaults.
type Options struct {
	QueueSize       int           // append queue bound, default 256
	RefreshInterval time.Duration // counter reconcile period, default 60s
	Retention       time.Duration // event age limit, default 7 days
	SweepInterval   time.Duration // retention sweep period, default 6h
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 60 * time.Second
	}
	if o.Retention <= 0 {
		o.Retention = 7 * 24 * time.Hour
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 6 * time.Hour
	}
	return o
}

// Session owns the capture lifecycle: it starts and stops the event source,
// runs every raw event through the policy, forwards accepted events to the
// store via the append writer, and keeps today's counters reconciled with
// the store.
type Session struct {
	source KeyEventSource
	store  storage.Store
	policy *Policy
	perm   PermissionProbe
	log    *zap.Logger
	opts   Options

	mu             sync.Mutex
	state          State
	todayKeys      int64
	todayShortcuts int64

	writer *appendWriter
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession wires an explicitly constructed session. perm may be nil to
// skip the permission precondition (tests, platforms without one).
func NewSession(source KeyEventSource, store storage.Store, policy *Policy, perm PermissionProbe, log *zap.Logger, opts Options) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		source: source,
		store:  store,
		policy: policy,
		perm:   perm,
		log:    log,
		opts:   opts.withDefaults(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TodayKeystrokes returns the in-memory count of today's recorded events.
func (s *Session) TodayKeystrokes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.todayKeys
}

// TodayShortcuts returns the in-memory count of today's shortcut events.
func (s *Session) TodayShortcuts() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.todayShortcuts
}

// Start checks the capture permission, starts the event source, and spawns
// the pipeline goroutines. Calling Start on a running or starting session
// is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning || s.state == StateStarting || s.state == StatePaused {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	if s.perm != nil && !s.perm.Granted() {
		s.setState(StateStopped)
		return ErrPermissionDenied
	}

	runCtx, cancel := context.WithCancel(ctx)

	if err := s.source.Start(runCtx); err != nil {
		cancel()
		s.setState(StateStopped)
		return fmt.Errorf("start event source: %w", err)
	}

	s.writer = newAppendWriter(s.store, s.opts.QueueSize, s.log, s.recordWritten)
	s.writer.Start()
	s.cancel = cancel

	s.setState(StateRunning)
	s.log.Info("capture started",
		zap.Duration("retention", s.opts.Retention),
		zap.Int("queue_size", s.opts.QueueSize))

	// Seed the counters and apply retention once before the tickers take over.
	s.RefreshStats(runCtx)
	s.sweep(runCtx)

	s.wg.Add(2)
	go s.eventLoop(runCtx)
	go s.maintenanceLoop(runCtx)

	return nil
}

// Pause suppresses event recording without tearing down the hook.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}
	s.source.Pause()
	s.state = StatePaused
	s.log.Info("capture paused")
}

// Resume re-enables event recording after Pause.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return
	}
	s.source.Resume()
	s.state = StateRunning
	s.log.Info("capture resumed")
}

// Stop tears down the event source and drains the append queue. In-flight
// appends complete; no new events are produced after Stop returns. Stop on
// an already-stopped session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == StateStopped || s.state == StateStarting {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	s.mu.Unlock()

	s.cancel()
	err := s.source.Stop()
	s.wg.Wait()
	s.writer.Close()

	s.log.Info("capture stopped")
	if err != nil {
		return fmt.Errorf("stop event source: %w", err)
	}
	return nil
}

// eventLoop consumes raw events from the source until it closes or the
// session context is canceled.
func (s *Session) eventLoop(ctx context.Context) {
	defer s.wg.Done()
	events := s.source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-events:
			if !ok {
				return
			}
			s.handle(raw)
		}
	}
}

// handle runs one raw event through the policy and enqueues it for append.
// Failures never propagate; the capture loop outlives any single event.
func (s *Session) handle(raw RawEvent) {
	s.mu.Lock()
	running := s.state == StateRunning
	s.mu.Unlock()
	if !running {
		// Covers sources whose pause toggle is advisory.
		return
	}

	event, ok := s.policy.Evaluate(raw)
	if !ok {
		return
	}

	s.writer.Enqueue(event)
}

// recordWritten bumps the live counters after the corresponding append
// succeeded. A failed append leaves them untouched.
func (s *Session) recordWritten(event *storage.KeyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todayKeys++
	if event.IsShortcut {
		s.todayShortcuts++
	}
}

// maintenanceLoop reconciles counters and applies retention on timers.
func (s *Session) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	refresh := time.NewTicker(s.opts.RefreshInterval)
	defer refresh.Stop()
	sweep := time.NewTicker(s.opts.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			s.RefreshStats(ctx)
		case <-sweep.C:
			s.sweep(ctx)
		}
	}
}

// RefreshStats overwrites the in-memory counters from the store. It is the
// source of truth after a day rollover and reconciles any drift from
// dropped or failed appends.
func (s *Session) RefreshStats(ctx context.Context) {
	start, end := s.store.DayRange(time.Now())

	total, err := s.store.CountInRange(ctx, start, end, nil)
	if err != nil {
		s.log.Error("refresh keystroke count failed", zap.Error(err))
		return
	}

	onlyShortcuts := true
	shortcuts, err := s.store.CountInRange(ctx, start, end, &onlyShortcuts)
	if err != nil {
		s.log.Error("refresh shortcut count failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.todayKeys = total
	s.todayShortcuts = shortcuts
	s.mu.Unlock()
}

// sweep deletes events older than the retention period. Fire-and-forget:
// failures are logged, never surfaced to the capture path.
func (s *Session) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.opts.Retention)
	n, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("retention sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("retention sweep", zap.Int64("deleted", n))
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
