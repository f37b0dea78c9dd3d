// Package poller tracks submissions by fetching them on a fixed interval
// until the judge reports a terminal verdict.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/model"
	"webcoder/pkg/errors"
	"webcoder/pkg/utils/contextkey"
	"webcoder/pkg/utils/logger"

	"go.uber.org/zap"
)

const DefaultInterval = 3 * time.Second

// Fetcher reads the current state of a submission.
type Fetcher interface {
	GetSubmission(ctx context.Context, id model.SubmissionID) (model.SubmissionDetail, error)
}

// ExpectedTestsFunc returns the number of test cases the judge should run
// for a submission, or zero when unknown.
type ExpectedTestsFunc func(ctx context.Context, detail model.SubmissionDetail) int

// Config bounds a poll loop. Zero MaxAttempts or MaxDuration means no limit.
type Config struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"maxAttempts"`
	MaxDuration time.Duration `yaml:"maxDuration"`
}

// Option configures a Poller.
type Option func(*Poller)

func WithScheduler(s Scheduler) Option {
	return func(p *Poller) {
		if s != nil {
			p.sched = s
		}
	}
}

func WithAggregator(a *aggregate.Aggregator) Option {
	return func(p *Poller) {
		if a != nil {
			p.agg = a
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

func WithExpectedTests(fn ExpectedTestsFunc) Option {
	return func(p *Poller) {
		p.expected = fn
	}
}

// Poller owns every active poll loop.
type Poller struct {
	fetcher  Fetcher
	cfg      Config
	sched    Scheduler
	agg      *aggregate.Aggregator
	now      func() time.Time
	expected ExpectedTestsFunc

	mu     sync.Mutex
	active map[model.SubmissionID]*Handle
	closed bool
	wg     sync.WaitGroup
}

func New(fetcher Fetcher, cfg Config, opts ...Option) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	p := &Poller{
		fetcher: fetcher,
		cfg:     cfg,
		sched:   TickerScheduler{},
		now:     time.Now,
		active:  make(map[model.SubmissionID]*Handle),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.agg == nil {
		p.agg = aggregate.New(aggregate.Options{Clock: p.now})
	}
	return p
}

// Start begins polling id. The first fetch is issued immediately. If id is
// already being polled the existing handle is returned and the new callbacks
// are ignored.
//
// Callbacks run on a poller goroutine, one at a time per handle. They must
// not call Cancel on their own handle.
func (p *Poller) Start(ctx context.Context, id model.SubmissionID, onUpdate func(aggregate.Snapshot), onError func(error)) *Handle {
	if onUpdate == nil {
		onUpdate = func(aggregate.Snapshot) {}
	}
	if onError == nil {
		onError = func(error) {}
	}

	p.mu.Lock()
	if h, ok := p.active[id]; ok {
		p.mu.Unlock()
		logger.Debug(ctx, "poll already active", zap.String("submission_id", id.String()))
		return h
	}
	h := &Handle{
		id:       id,
		p:        p,
		ctx:      context.WithValue(ctx, contextkey.SubmissionID, id.String()),
		onUpdate: onUpdate,
		onError:  onError,
		started:  p.now(),
		done:     make(chan struct{}),
	}
	if p.closed {
		p.mu.Unlock()
		h.stopEarly(errors.New(errors.PollCanceled).WithMessage("poller closed"))
		return h
	}
	if err := context.Cause(ctx); err != nil {
		p.mu.Unlock()
		h.stopEarly(errors.Wrap(err, errors.PollCanceled))
		return h
	}
	p.active[id] = h
	p.mu.Unlock()

	h.deliverMu.Lock()
	h.task = p.sched.Every(p.cfg.Interval, h.fire)
	h.stopCtx = context.AfterFunc(ctx, h.Cancel)
	h.deliverMu.Unlock()

	logger.Info(h.ctx, "poll started", zap.Duration("interval", p.cfg.Interval))
	h.fire()
	return h
}

// Cancel stops h. Equivalent to h.Cancel().
func (p *Poller) Cancel(h *Handle) {
	if h != nil {
		h.Cancel()
	}
}

// Active reports whether id is currently being polled.
func (p *Poller) Active(id model.SubmissionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[id]
	return ok
}

// Close cancels every active poll and waits for outstanding fetches to
// return. Later calls to Start yield handles that are already stopped.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	handles := make([]*Handle, 0, len(p.active))
	for _, h := range p.active {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	p.wg.Wait()
}

func (p *Poller) release(h *Handle) {
	p.mu.Lock()
	if cur, ok := p.active[h.id]; ok && cur == h {
		delete(p.active, h.id)
	}
	p.mu.Unlock()
}

func (p *Poller) budgetExceeded(h *Handle, attempts int) bool {
	if p.cfg.MaxAttempts > 0 && attempts >= p.cfg.MaxAttempts {
		return true
	}
	if p.cfg.MaxDuration > 0 && p.now().Sub(h.started) >= p.cfg.MaxDuration {
		return true
	}
	return false
}

// Handle is one active poll loop.
type Handle struct {
	id       model.SubmissionID
	p        *Poller
	ctx      context.Context
	onUpdate func(aggregate.Snapshot)
	onError  func(error)
	started  time.Time

	inFlight atomic.Bool
	stopped  atomic.Bool
	attempts atomic.Int64

	// deliverMu serializes callback delivery against stop.
	deliverMu sync.Mutex
	task      Task
	stopCtx   func() bool
	prev      *aggregate.Snapshot
	done      chan struct{}

	errMu sync.Mutex
	err   error
}

func (h *Handle) ID() model.SubmissionID { return h.id }

// Done is closed once the poll has stopped for any reason.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Attempts is the number of fetches issued so far.
func (h *Handle) Attempts() int { return int(h.attempts.Load()) }

// Err returns why the poll stopped: nil after a terminal verdict, a
// PollCanceled error after Cancel, or the error that ended the loop.
// It returns nil while the poll is running.
func (h *Handle) Err() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	return h.err
}

// stopEarly marks a handle that never started as stopped with cause.
func (h *Handle) stopEarly(cause error) {
	h.stopped.Store(true)
	h.err = cause
	close(h.done)
}

// Cancel stops the schedule and discards any response still in flight.
// No callback runs after Cancel returns.
func (h *Handle) Cancel() {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	cause := errors.New(errors.PollCanceled)
	if err := context.Cause(h.ctx); err != nil {
		cause = errors.Wrap(err, errors.PollCanceled)
	}
	if h.stopLocked(cause) {
		logger.Info(h.ctx, "poll canceled", zap.Int("attempts", h.Attempts()))
	}
}

func (h *Handle) fire() {
	if h.stopped.Load() {
		return
	}
	if !h.inFlight.CompareAndSwap(false, true) {
		logger.Warn(h.ctx, "previous fetch still in flight, skipping tick")
		return
	}
	if h.Attempts() > 0 && h.p.budgetExceeded(h, h.Attempts()) {
		h.inFlight.Store(false)
		h.deliverMu.Lock()
		h.timeoutLocked()
		h.deliverMu.Unlock()
		return
	}

	h.p.mu.Lock()
	if h.p.closed {
		h.p.mu.Unlock()
		h.inFlight.Store(false)
		return
	}
	h.p.wg.Add(1)
	h.p.mu.Unlock()

	attempt := int(h.attempts.Add(1))
	go func() {
		defer h.p.wg.Done()
		defer h.inFlight.Store(false)
		h.fetch(attempt)
	}()
}

func (h *Handle) fetch(attempt int) {
	// The request outlives Cancel; its response is simply dropped.
	ctx := context.WithoutCancel(h.ctx)
	logger.Debug(ctx, "poll attempt", zap.Int("attempt", attempt))

	detail, err := h.p.fetcher.GetSubmission(ctx, h.id)
	expected := 0
	if err == nil && h.p.expected != nil {
		expected = h.p.expected(ctx, detail)
	}

	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	if h.stopped.Load() {
		logger.Debug(ctx, "discarding response after stop", zap.Int("attempt", attempt))
		return
	}

	if err != nil {
		h.onError(err)
		if errors.IsTransient(err) {
			logger.Warn(ctx, "transient poll failure", zap.Int("attempt", attempt), zap.Error(err))
			if h.p.budgetExceeded(h, attempt) {
				h.timeoutLocked()
			}
			return
		}
		logger.Info(ctx, "poll stopped on error",
			zap.Int("attempt", attempt),
			zap.String("kind", errors.KindOf(err).String()),
			zap.Error(err))
		h.stopLocked(err)
		return
	}

	snap := h.p.agg.Build(aggregate.Input{
		Detail:        detail,
		Previous:      h.prev,
		ExpectedTests: expected,
		Attempt:       attempt,
	})
	h.prev = &snap
	h.onUpdate(snap)

	if snap.IsTerminal {
		if snap.UnknownVerdict {
			logger.Warn(ctx, "judge returned unrecognized verdict", zap.String("verdict", snap.RawVerdict))
		}
		logger.Info(ctx, "poll finished",
			zap.Int("attempts", attempt),
			zap.String("verdict", snap.DisplayVerdict))
		h.stopLocked(nil)
		return
	}
	if h.p.budgetExceeded(h, attempt) {
		h.timeoutLocked()
	}
}

func (h *Handle) timeoutLocked() {
	if h.stopped.Load() {
		return
	}
	err := errors.New(errors.PollTimeout).
		WithDetail("submission_id", h.id.String()).
		WithDetail("attempts", h.Attempts())
	h.onError(err)
	logger.Info(h.ctx, "poll budget exhausted", zap.Int("attempts", h.Attempts()))
	h.stopLocked(err)
}

// stopLocked must be called with deliverMu held. It reports whether this
// call performed the stop.
func (h *Handle) stopLocked(cause error) bool {
	if !h.stopped.CompareAndSwap(false, true) {
		return false
	}
	h.errMu.Lock()
	h.err = cause
	h.errMu.Unlock()
	if h.task != nil {
		h.task.Stop()
	}
	if h.stopCtx != nil {
		h.stopCtx()
	}
	h.p.release(h)
	close(h.done)
	return true
}
