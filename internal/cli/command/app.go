package command

import (
	"context"

	"webcoder/internal/cli/render"
	"webcoder/internal/cli/state"
	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/client"
	"webcoder/internal/judge/model"
	"webcoder/internal/submit/service"
)

// AuthAPI is the token and profile part of the judge API.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (client.TokenPair, error)
	Refresh(ctx context.Context, refresh string) (client.TokenPair, error)
	Me(ctx context.Context) (client.Profile, error)
}

// ProblemAPI reads problems.
type ProblemAPI interface {
	GetProblem(ctx context.Context, id model.ProblemID) (model.Problem, error)
	ListProblems(ctx context.Context) ([]model.Problem, error)
}

// Tracker submits and follows submissions.
type Tracker interface {
	Submit(ctx context.Context, in model.SubmitInput) (model.Submission, error)
	Status(ctx context.Context, id model.SubmissionID) (aggregate.Snapshot, error)
	Watch(ctx context.Context, id model.SubmissionID, fn func(service.Event)) error
	WatchAll(ctx context.Context, ids []model.SubmissionID, fn func(service.Event)) error
	History(ctx context.Context, limit int) ([]aggregate.Snapshot, error)
}

// App is what command handlers run against.
type App struct {
	Auth     AuthAPI
	Problems ProblemAPI
	Tracker  Tracker
	Session  *state.Store
	Out      *render.Renderer
}

// Catalog pairs a cached single-problem read with the uncached list.
type Catalog struct {
	Get interface {
		GetProblem(ctx context.Context, id model.ProblemID) (model.Problem, error)
	}
	List interface {
		ListProblems(ctx context.Context) ([]model.Problem, error)
	}
}

func (c Catalog) GetProblem(ctx context.Context, id model.ProblemID) (model.Problem, error) {
	return c.Get.GetProblem(ctx, id)
}

func (c Catalog) ListProblems(ctx context.Context) ([]model.Problem, error) {
	return c.List.ListProblems(ctx)
}
