package service

import (
	"context"
	"encoding/json"
	"time"

	"webcoder/internal/common/cache"
	"webcoder/internal/judge/model"
	pkgerrors "webcoder/pkg/errors"
	"webcoder/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultProblemCacheTTL      = 10 * time.Minute
	defaultProblemCacheEmptyTTL = time.Minute
	problemCacheKeyPrefix       = "problem:"
)

// ProblemSource is the remote problem read model.
type ProblemSource interface {
	GetProblem(ctx context.Context, id model.ProblemID) (model.Problem, error)
}

// Catalog serves problem reads through a cache. Missing problems are cached
// briefly so repeated lookups do not hit the API.
type Catalog struct {
	source   ProblemSource
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewCatalog creates a Catalog. A nil cache disables caching.
func NewCatalog(source ProblemSource, cacheClient cache.Cache, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = defaultProblemCacheTTL
	}
	return &Catalog{source: source, cache: cacheClient, ttl: ttl, emptyTTL: defaultProblemCacheEmptyTTL}
}

// GetProblem returns the problem with id, or a ProblemNotFound error.
func (c *Catalog) GetProblem(ctx context.Context, id model.ProblemID) (model.Problem, error) {
	if id.Empty() {
		return model.Problem{}, pkgerrors.ValidationError("problem_id", "required")
	}
	if c.cache == nil {
		return c.source.GetProblem(ctx, id)
	}

	p, err := cache.GetWithCached(ctx, c.cache, problemCacheKeyPrefix+id.String(), c.ttl, c.emptyTTL,
		func(p model.Problem) bool { return p.ID.Empty() },
		marshalProblem,
		unmarshalProblem,
		func(ctx context.Context) (model.Problem, error) {
			p, err := c.source.GetProblem(ctx, id)
			if pkgerrors.KindOf(err) == pkgerrors.KindNotFound {
				return model.Problem{}, nil
			}
			return p, err
		})
	if err != nil {
		return model.Problem{}, err
	}
	if p.ID.Empty() {
		return model.Problem{}, pkgerrors.New(pkgerrors.ProblemNotFound).WithDetail("problem_id", id.String())
	}
	return p, nil
}

// ExpectedTests returns the number of test cases of the submission's
// problem, or zero when the problem cannot be read.
func (c *Catalog) ExpectedTests(ctx context.Context, detail model.SubmissionDetail) int {
	if detail.Problem.ID.Empty() {
		return 0
	}
	p, err := c.GetProblem(ctx, detail.Problem.ID)
	if err != nil {
		logger.Debug(ctx, "expected test count unavailable",
			zap.String("problem_id", detail.Problem.ID.String()),
			zap.Error(err))
		return 0
	}
	return len(p.TestCases)
}

// Invalidate drops the cached copy of a problem.
func (c *Catalog) Invalidate(ctx context.Context, id model.ProblemID) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Del(ctx, problemCacheKeyPrefix+id.String())
}

func marshalProblem(p model.Problem) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalProblem(raw string) (model.Problem, error) {
	var p model.Problem
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}
