package command

import (
	"context"
	"fmt"

	"webcoder/internal/judge/model"
	"webcoder/internal/submit/service"
	"webcoder/pkg/errors"

	"go.uber.org/multierr"
)

const defaultHistoryLimit = 20

func runLogin(ctx context.Context, app *App, params Params) error {
	username := params.Get("username")
	pair, err := app.Auth.Login(ctx, username, params.Get("password"))
	if err != nil {
		return err
	}
	if err := app.Session.SetTokens(pair.Access, pair.Refresh); err != nil {
		return fmt.Errorf("save token state failed: %w", err)
	}
	if err := app.Session.SetUsername(username); err != nil {
		return fmt.Errorf("save token state failed: %w", err)
	}
	app.Out.Line("logged in as %s", username)
	return nil
}

func runRefresh(ctx context.Context, app *App, _ Params) error {
	pair, err := app.Auth.Refresh(ctx, app.Session.RefreshToken())
	if err != nil {
		return err
	}
	if err := app.Session.SetTokens(pair.Access, pair.Refresh); err != nil {
		return fmt.Errorf("save token state failed: %w", err)
	}
	app.Out.Line("token refreshed")
	return nil
}

func runLogout(_ context.Context, app *App, _ Params) error {
	if err := app.Session.Clear(); err != nil {
		return err
	}
	app.Out.Line("logged out")
	return nil
}

func runMe(ctx context.Context, app *App, _ Params) error {
	profile, err := app.Auth.Me(ctx)
	if err != nil {
		return err
	}
	if len(profile.Raw) > 0 {
		app.Out.JSON(profile.Raw)
		return nil
	}
	app.Out.JSON(profile)
	return nil
}

func runProblemGet(ctx context.Context, app *App, params Params) error {
	p, err := app.Problems.GetProblem(ctx, model.ProblemID(params.Get("id")))
	if err != nil {
		return err
	}
	if asJSON(params) {
		app.Out.JSON(p)
		return nil
	}
	app.Out.Problem(p)
	return nil
}

func runProblemList(ctx context.Context, app *App, params Params) error {
	list, err := app.Problems.ListProblems(ctx)
	if err != nil {
		return err
	}
	if asJSON(params) {
		app.Out.JSON(list)
		return nil
	}
	app.Out.Problems(list)
	return nil
}

func runSubmitCreate(ctx context.Context, app *App, params Params) error {
	code := params.Get("code")
	if code == "" {
		var err error
		code, err = ReadFile(params.Get("source_file"))
		if err != nil {
			return errors.Wrap(err, errors.InvalidParams).WithDetail("source_file", params.Get("source_file"))
		}
	}
	sub, err := app.Tracker.Submit(ctx, model.SubmitInput{
		ProblemID: model.ProblemID(params.Get("problem_id")),
		Language:  params.Get("language"),
		Code:      code,
	})
	if err != nil {
		return err
	}
	app.Out.Line("submission %s created (%s)", sub.ID, sub.Verdict.Classification().Verdict.Label())
	if watch, _ := ParseBool(params.Get("watch")); watch {
		return watchOne(ctx, app, sub.ID)
	}
	return nil
}

func runSubmitStatus(ctx context.Context, app *App, params Params) error {
	snap, err := app.Tracker.Status(ctx, model.SubmissionID(params.Get("id")))
	if err != nil {
		if !snap.SubmissionID.Empty() {
			app.Out.Failure(snap.SubmissionID, &snap, err)
			return nil
		}
		return err
	}
	if asJSON(params) {
		app.Out.JSON(snap)
		return nil
	}
	app.Out.Snapshot(snap)
	return nil
}

func runSubmitWatch(ctx context.Context, app *App, params Params) error {
	raw := ParseStringList(params.Get("id"))
	if len(raw) == 1 {
		return watchOne(ctx, app, model.SubmissionID(raw[0]))
	}
	ids := make([]model.SubmissionID, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, model.SubmissionID(id))
	}
	err := app.Tracker.WatchAll(ctx, ids, eventPrinter(app))
	return watchResult(app, err)
}

func runSubmitHistory(ctx context.Context, app *App, params Params) error {
	limit := defaultHistoryLimit
	if v := params.Get("limit"); v != "" {
		n, err := ParseInt(v)
		if err != nil {
			return errors.Wrap(err, errors.InvalidParams).WithDetail("limit", v)
		}
		if n <= 0 {
			return errors.ValidationError("limit", "must be positive")
		}
		limit = n
	}
	list, err := app.Tracker.History(ctx, limit)
	if err != nil {
		return err
	}
	app.Out.History(list)
	return nil
}

func watchOne(ctx context.Context, app *App, id model.SubmissionID) error {
	return watchResult(app, app.Tracker.Watch(ctx, id, eventPrinter(app)))
}

func eventPrinter(app *App) func(service.Event) {
	return func(ev service.Event) {
		switch ev.Type {
		case service.EventUpdate:
			app.Out.Update(*ev.Snapshot)
		case service.EventError:
			app.Out.Failure(ev.SubmissionID, ev.Snapshot, ev.Err)
		}
	}
}

// watchResult reports how a watch ended. Failures were already printed as
// events, so they are not returned again.
func watchResult(app *App, err error) error {
	if err == nil {
		return nil
	}
	var failed int
	for _, e := range multierr.Errors(err) {
		if !service.IsCanceled(e) {
			failed++
		}
	}
	if failed == 0 {
		app.Out.Line("stopped watching")
		return nil
	}
	app.Out.Line("%d watch(es) ended without a verdict", failed)
	return nil
}

func asJSON(params Params) bool {
	v, _ := ParseBool(params.Get("json"))
	return v
}
