package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"webcoder/internal/common/cache"
	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/model"
	"webcoder/pkg/errors"
)

const (
	defaultSnapshotTTL     = 24 * time.Hour
	defaultRecentLimit     = 50
	snapshotCacheKeyPrefix = "snapshot:"
	recentSubmissionsKey   = "submissions:recent"
)

// SnapshotRepository keeps the last known-good snapshot of each tracked
// submission.
type SnapshotRepository interface {
	Save(ctx context.Context, snap aggregate.Snapshot) error
	// Get returns false when no snapshot is stored for id.
	Get(ctx context.Context, id model.SubmissionID) (aggregate.Snapshot, bool, error)
	// Recent lists tracked submission ids, newest first.
	Recent(ctx context.Context, limit int) ([]model.SubmissionID, error)
}

// CacheSnapshotRepository stores snapshots as JSON in a cache.Cache.
type CacheSnapshotRepository struct {
	cache       cache.Cache
	ttl         time.Duration
	recentLimit int
}

// NewSnapshotRepository creates a snapshot repository with the default TTL.
func NewSnapshotRepository(cacheClient cache.Cache) *CacheSnapshotRepository {
	return NewSnapshotRepositoryWithTTL(cacheClient, defaultSnapshotTTL)
}

// NewSnapshotRepositoryWithTTL creates a snapshot repository with custom TTL.
func NewSnapshotRepositoryWithTTL(cacheClient cache.Cache, ttl time.Duration) *CacheSnapshotRepository {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &CacheSnapshotRepository{cache: cacheClient, ttl: ttl, recentLimit: defaultRecentLimit}
}

func snapshotKey(id model.SubmissionID) string {
	return snapshotCacheKeyPrefix + id.String()
}

// Save stores snap. The first save of a submission also records it in the
// recent list.
func (r *CacheSnapshotRepository) Save(ctx context.Context, snap aggregate.Snapshot) error {
	if snap.SubmissionID.Empty() {
		return errors.ValidationError("submission_id", "required")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrapf(err, errors.InternalServerError, "encode snapshot failed")
	}

	key := snapshotKey(snap.SubmissionID)
	existing, err := r.cache.Exists(ctx, key)
	if err != nil {
		return errors.Wrap(fmt.Errorf("check snapshot failed: %w", err), errors.CacheError)
	}
	if err := r.cache.Set(ctx, key, string(data), r.ttl); err != nil {
		return errors.Wrap(fmt.Errorf("store snapshot failed: %w", err), errors.CacheError)
	}
	if existing == 0 {
		if err := r.cache.LPush(ctx, recentSubmissionsKey, snap.SubmissionID.String()); err != nil {
			return errors.Wrap(fmt.Errorf("record recent submission failed: %w", err), errors.CacheError)
		}
		if err := r.cache.LTrim(ctx, recentSubmissionsKey, 0, int64(r.recentLimit-1)); err != nil {
			return errors.Wrap(fmt.Errorf("trim recent submissions failed: %w", err), errors.CacheError)
		}
	}
	return nil
}

func (r *CacheSnapshotRepository) Get(ctx context.Context, id model.SubmissionID) (aggregate.Snapshot, bool, error) {
	var snap aggregate.Snapshot
	raw, err := r.cache.Get(ctx, snapshotKey(id))
	if err != nil {
		return snap, false, errors.Wrap(fmt.Errorf("load snapshot failed: %w", err), errors.CacheError)
	}
	if raw == "" {
		return snap, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return snap, false, errors.Wrapf(err, errors.DecodeFailed, "decode snapshot failed")
	}
	return snap, true, nil
}

func (r *CacheSnapshotRepository) Recent(ctx context.Context, limit int) ([]model.SubmissionID, error) {
	if limit <= 0 || limit > r.recentLimit {
		limit = r.recentLimit
	}
	values, err := r.cache.LRange(ctx, recentSubmissionsKey, 0, int64(limit-1))
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("list recent submissions failed: %w", err), errors.CacheError)
	}
	ids := make([]model.SubmissionID, 0, len(values))
	for _, v := range values {
		ids = append(ids, model.SubmissionID(v))
	}
	return ids, nil
}
