// Package service drives submissions from creation to a final verdict.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/model"
	"webcoder/internal/judge/poller"
	"webcoder/internal/submit/repository"
	appErr "webcoder/pkg/errors"
	"webcoder/pkg/utils/logger"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrentWatches = 8

// SubmissionClient is the part of the judge API the tracker needs.
type SubmissionClient interface {
	CreateSubmission(ctx context.Context, in model.SubmitInput) (model.Submission, error)
	GetSubmission(ctx context.Context, id model.SubmissionID) (model.SubmissionDetail, error)
}

// TimeoutConfig holds timeout settings for external calls.
type TimeoutConfig struct {
	Cache time.Duration
}

// Config holds tracker dependencies and settings.
type Config struct {
	Client        SubmissionClient
	Poller        *poller.Poller
	Snapshots     repository.SnapshotRepository
	Aggregator    *aggregate.Aggregator
	ExpectedTests poller.ExpectedTestsFunc

	MaxConcurrentWatches int
	Timeouts             TimeoutConfig
}

// Tracker submits solutions and follows them to a final verdict.
type Tracker struct {
	client        SubmissionClient
	poller        *poller.Poller
	snapshots     repository.SnapshotRepository
	agg           *aggregate.Aggregator
	expectedTests poller.ExpectedTestsFunc

	maxWatches int
	timeouts   TimeoutConfig
}

// NewTracker creates a tracker.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("submission client is required")
	}
	if cfg.Poller == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if cfg.Snapshots == nil {
		return nil, fmt.Errorf("snapshot repository is required")
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = aggregate.New(aggregate.Options{})
	}
	if cfg.MaxConcurrentWatches <= 0 {
		cfg.MaxConcurrentWatches = defaultMaxConcurrentWatches
	}
	return &Tracker{
		client:        cfg.Client,
		poller:        cfg.Poller,
		snapshots:     cfg.Snapshots,
		agg:           cfg.Aggregator,
		expectedTests: cfg.ExpectedTests,
		maxWatches:    cfg.MaxConcurrentWatches,
		timeouts:      cfg.Timeouts,
	}, nil
}

// EventType names what happened to a tracked submission.
type EventType string

const (
	EventUpdate EventType = "update"
	EventError  EventType = "error"
)

// Event is delivered to watchers. For errors, Snapshot is the last
// known-good snapshot, or nil when none was ever fetched.
type Event struct {
	Type         EventType
	SubmissionID model.SubmissionID
	Snapshot     *aggregate.Snapshot
	Err          error
}

// Submit creates a submission and records its initial snapshot.
func (t *Tracker) Submit(ctx context.Context, in model.SubmitInput) (model.Submission, error) {
	sub, err := t.client.CreateSubmission(ctx, in)
	if err != nil {
		return sub, err
	}
	snap := t.agg.Build(aggregate.Input{Detail: model.SubmissionDetail{Submission: sub}})
	t.save(ctx, snap)
	return sub, nil
}

// Status fetches a submission once. On failure the stored snapshot, if
// any, is returned together with the error.
func (t *Tracker) Status(ctx context.Context, id model.SubmissionID) (aggregate.Snapshot, error) {
	prev, havePrev := t.load(ctx, id)

	detail, err := t.client.GetSubmission(ctx, id)
	if err != nil {
		if havePrev {
			return prev, err
		}
		return aggregate.Snapshot{}, err
	}

	in := aggregate.Input{Detail: detail}
	if havePrev {
		in.Previous = &prev
		in.Attempt = prev.Attempt
	}
	in.Attempt++
	if t.expectedTests != nil {
		in.ExpectedTests = t.expectedTests(ctx, detail)
	}
	snap := t.agg.Build(in)
	t.save(ctx, snap)
	return snap, nil
}

// Watch polls id until it reaches a terminal verdict, a terminal error, or
// ctx is done. fn runs on a poller goroutine, one event at a time for this
// id. The returned error is nil after a terminal verdict.
func (t *Tracker) Watch(ctx context.Context, id model.SubmissionID, fn func(Event)) error {
	if fn == nil {
		fn = func(Event) {}
	}
	var (
		mu   sync.Mutex
		last *aggregate.Snapshot
	)
	if prev, ok := t.load(ctx, id); ok {
		last = &prev
	}

	h := t.poller.Start(ctx, id,
		func(snap aggregate.Snapshot) {
			t.save(ctx, snap)
			mu.Lock()
			s := snap
			last = &s
			mu.Unlock()
			fn(Event{Type: EventUpdate, SubmissionID: id, Snapshot: &s})
		},
		func(err error) {
			mu.Lock()
			s := last
			mu.Unlock()
			fn(Event{Type: EventError, SubmissionID: id, Snapshot: s, Err: err})
		})

	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel()
	}
	return h.Err()
}

// WatchAll watches every id concurrently and returns the combined errors of
// the watches that did not end on a terminal verdict. Canceling ctx stops
// all of them. fn may be called from several goroutines at once.
func (t *Tracker) WatchAll(ctx context.Context, ids []model.SubmissionID, fn func(Event)) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(t.maxWatches)
	for _, id := range dedupe(ids) {
		g.Go(func() error {
			if err := t.Watch(ctx, id, fn); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("submission %s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// History returns the stored snapshots of recently tracked submissions,
// newest first.
func (t *Tracker) History(ctx context.Context, limit int) ([]aggregate.Snapshot, error) {
	ids, err := t.snapshots.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]aggregate.Snapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := t.load(ctx, id); ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

// Close stops every active watch.
func (t *Tracker) Close() {
	t.poller.Close()
}

func (t *Tracker) save(ctx context.Context, snap aggregate.Snapshot) {
	// A snapshot that arrived is kept even if the caller is going away.
	ctxCache := withTimeout(context.WithoutCancel(ctx), t.timeouts.Cache)
	defer ctxCache.cancel()
	if err := t.snapshots.Save(ctxCache.ctx, snap); err != nil {
		logger.Warn(ctx, "store snapshot failed",
			zap.String("submission_id", snap.SubmissionID.String()),
			zap.Error(err))
	}
}

func (t *Tracker) load(ctx context.Context, id model.SubmissionID) (aggregate.Snapshot, bool) {
	ctxCache := withTimeout(ctx, t.timeouts.Cache)
	defer ctxCache.cancel()
	snap, ok, err := t.snapshots.Get(ctxCache.ctx, id)
	if err != nil {
		logger.Warn(ctx, "load snapshot failed", zap.String("submission_id", id.String()), zap.Error(err))
		return aggregate.Snapshot{}, false
	}
	return snap, ok
}

func dedupe(ids []model.SubmissionID) []model.SubmissionID {
	seen := make(map[model.SubmissionID]struct{}, len(ids))
	out := make([]model.SubmissionID, 0, len(ids))
	for _, id := range ids {
		if id.Empty() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// IsCanceled reports whether err means the watch was stopped by the caller.
func IsCanceled(err error) bool {
	return appErr.KindOf(err) == appErr.KindCanceled
}

type timeoutCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func withTimeout(ctx context.Context, timeout time.Duration) timeoutCtx {
	if timeout <= 0 {
		return timeoutCtx{ctx: ctx, cancel: func() {}}
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx{ctx: ctxTimeout, cancel: cancel}
}
