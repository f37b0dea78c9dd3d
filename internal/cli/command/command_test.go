package command

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"webcoder/internal/cli/render"
	"webcoder/internal/cli/state"
	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/client"
	"webcoder/internal/judge/model"
	"webcoder/internal/judge/verdict"
	"webcoder/internal/submit/service"
	"webcoder/internal/testutil"
	"webcoder/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

type fakeAuth struct {
	refreshed int
	pair      client.TokenPair
	err       error
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (client.TokenPair, error) {
	if password != "secret" {
		return client.TokenPair{}, errors.New(errors.InvalidCredentials)
	}
	return f.pair, nil
}

func (f *fakeAuth) Refresh(ctx context.Context, refresh string) (client.TokenPair, error) {
	f.refreshed++
	if f.err != nil {
		return client.TokenPair{}, f.err
	}
	return f.pair, nil
}

func (f *fakeAuth) Me(ctx context.Context) (client.Profile, error) {
	return client.Profile{ID: 1, Username: "demo"}, nil
}

type fakeProblems struct{}

func (fakeProblems) GetProblem(ctx context.Context, id model.ProblemID) (model.Problem, error) {
	if id != "5" {
		return model.Problem{}, errors.New(errors.ProblemNotFound)
	}
	return model.Problem{ID: "5", TitleI18n: map[string]string{"en": "Sum"}}, nil
}

func (fakeProblems) ListProblems(ctx context.Context) ([]model.Problem, error) {
	return []model.Problem{{ID: "5", TitleI18n: map[string]string{"en": "Sum"}}}, nil
}

type fakeTracker struct {
	submitted []model.SubmitInput
	watched   []model.SubmissionID
	watchErr  error
	status    aggregate.Snapshot
	statusErr error
}

func (f *fakeTracker) Submit(ctx context.Context, in model.SubmitInput) (model.Submission, error) {
	f.submitted = append(f.submitted, in)
	return model.Submission{ID: "42", Verdict: verdict.NewReported("PENDING")}, nil
}

func (f *fakeTracker) Status(ctx context.Context, id model.SubmissionID) (aggregate.Snapshot, error) {
	return f.status, f.statusErr
}

func (f *fakeTracker) Watch(ctx context.Context, id model.SubmissionID, fn func(service.Event)) error {
	f.watched = append(f.watched, id)
	snap := aggregate.Snapshot{SubmissionID: id, Verdict: verdict.Accepted, DisplayVerdict: "Accepted", IsTerminal: true}
	fn(service.Event{Type: service.EventUpdate, SubmissionID: id, Snapshot: &snap})
	return f.watchErr
}

func (f *fakeTracker) WatchAll(ctx context.Context, ids []model.SubmissionID, fn func(service.Event)) error {
	for _, id := range ids {
		_ = f.Watch(ctx, id, fn)
	}
	return f.watchErr
}

func (f *fakeTracker) History(ctx context.Context, limit int) ([]aggregate.Snapshot, error) {
	return nil, nil
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func newApp(t *testing.T) (*App, *bytes.Buffer, *fakeAuth, *fakeTracker) {
	t.Helper()
	var buf bytes.Buffer
	auth := &fakeAuth{pair: client.TokenPair{Access: signed(t, time.Now().Add(time.Hour)), Refresh: "r2"}}
	tracker := &fakeTracker{}
	app := &App{
		Auth:     auth,
		Problems: fakeProblems{},
		Tracker:  tracker,
		Session:  state.NewStore(filepath.Join(t.TempDir(), "state.json"), state.TokenState{}),
		Out:      render.New(&buf, render.Options{NoColor: true}),
	}
	return app, &buf, auth, tracker
}

func run(t *testing.T, app *App, key string, args ...string) error {
	t.Helper()
	cmd, ok := Registry()[key]
	if !ok {
		t.Fatalf("unknown command %q", key)
	}
	params, err := ParseArgs(args)
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	return Execute(context.Background(), app, cmd, params)
}

func TestRegistryCoversCommands(t *testing.T) {
	reg := Registry()
	for _, key := range []string{
		"user login", "user refresh", "user logout", "user me",
		"problem get", "problem list",
		"submit create", "submit status", "submit watch", "submit history",
	} {
		cmd, ok := reg[key]
		testutil.AssertTrue(t, ok, key)
		testutil.AssertTrue(t, cmd.Run != nil, key+" has a handler")
	}
	sorted := Sorted(reg)
	testutil.AssertEqual(t, sorted[0].Key(), "problem get")
}

func TestParseArgs(t *testing.T) {
	params, err := ParseArgs([]string{"Problem_ID=5", "code=a=b"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	testutil.AssertEqual(t, params.Get("problem_id"), "5")
	testutil.AssertEqual(t, params.Get("code"), "a=b")

	_, err = ParseArgs([]string{"novalue"})
	testutil.AssertTrue(t, err != nil, "bare token rejected")
}

func TestMissingHonorsAlternatives(t *testing.T) {
	cmd := Registry()["submit create"]
	params := Params{"problem_id": "5", "language": "python3"}
	missing := Missing(cmd, params)
	testutil.AssertEqual(t, len(missing), 1)
	testutil.AssertEqual(t, missing[0].Name, "source_file")

	params.Set("code", "print(1)")
	testutil.AssertEqual(t, len(Missing(cmd, params)), 0)
}

func TestLoginStoresTokens(t *testing.T) {
	app, buf, _, _ := newApp(t)

	err := run(t, app, "user login", "u=demo", "password=secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	testutil.AssertEqual(t, app.Session.State().Username, "demo")
	testutil.AssertEqual(t, app.Session.RefreshToken(), "r2")
	testutil.AssertTrue(t, strings.Contains(buf.String(), "logged in as demo"), "login message")

	err = run(t, app, "user login", "username=demo", "password=wrong")
	testutil.AssertEqual(t, errors.GetCode(err), errors.InvalidCredentials)
}

func TestLogoutClearsSession(t *testing.T) {
	app, _, _, _ := newApp(t)
	_ = app.Session.SetTokens("a", "r")
	if err := run(t, app, "user logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	testutil.AssertEqual(t, app.Session.Token(), "")
}

func TestAuthRequired(t *testing.T) {
	app, _, _, _ := newApp(t)
	err := run(t, app, "user me")
	testutil.AssertEqual(t, errors.GetCode(err), errors.TokenMissing)
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	app, _, auth, _ := newApp(t)
	_ = app.Session.SetTokens(signed(t, time.Now().Add(-time.Minute)), "r1")

	if err := run(t, app, "user me"); err != nil {
		t.Fatalf("me: %v", err)
	}
	testutil.AssertEqual(t, auth.refreshed, 1)
	testutil.AssertEqual(t, app.Session.RefreshToken(), "r2")

	auth.err = errors.New(errors.Unauthorized)
	_ = app.Session.SetTokens(signed(t, time.Now().Add(-time.Minute)), "r1")
	err := run(t, app, "user me")
	testutil.AssertEqual(t, errors.GetCode(err), errors.TokenExpired)
}

func TestSubmitCreateReadsFileAndWatches(t *testing.T) {
	app, buf, _, tracker := newApp(t)
	_ = app.Session.SetTokens("opaque", "")
	src := filepath.Join(t.TempDir(), "main.py")
	if err := os.WriteFile(src, []byte("print(1)"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	err := run(t, app, "submit create", "problem=5", "lang=python3", "file="+src, "watch=true")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	testutil.AssertEqual(t, len(tracker.submitted), 1)
	testutil.AssertEqual(t, tracker.submitted[0].Code, "print(1)")
	testutil.AssertEqual(t, tracker.watched, []model.SubmissionID{"42"})
	out := buf.String()
	testutil.AssertTrue(t, strings.Contains(out, "submission 42 created (Pending)"), "created line")
	testutil.AssertTrue(t, strings.Contains(out, "Submission 42  Accepted"), "final snapshot")
}

func TestSubmitCreateRejectsBadInput(t *testing.T) {
	app, _, _, _ := newApp(t)
	_ = app.Session.SetTokens("opaque", "")

	err := run(t, app, "submit create", "problem_id=5", "language=c")
	testutil.AssertEqual(t, errors.GetCode(err), errors.ValidationFailed)

	err = run(t, app, "submit create", "problem_id=5", "language=c", "code=x", "watch=maybe")
	testutil.AssertEqual(t, errors.GetCode(err), errors.InvalidParams)

	err = run(t, app, "submit create", "problem_id=5", "language=c", "source_file=/does/not/exist")
	testutil.AssertEqual(t, errors.GetCode(err), errors.InvalidParams)
}

func TestSubmitStatusShowsLastKnownOnFailure(t *testing.T) {
	app, buf, _, tracker := newApp(t)
	_ = app.Session.SetTokens("opaque", "")
	tracker.status = aggregate.Snapshot{SubmissionID: "7", Verdict: verdict.Running, DisplayVerdict: "judging", Attempt: 3}
	tracker.statusErr = errors.NetworkError(fmt.Errorf("connection refused"))

	if err := run(t, app, "submit status", "id=7"); err != nil {
		t.Fatalf("status: %v", err)
	}
	testutil.AssertTrue(t, strings.Contains(buf.String(), "last known: judging (poll #3"), "last snapshot shown")
}

func TestSubmitWatchMany(t *testing.T) {
	app, buf, _, tracker := newApp(t)
	_ = app.Session.SetTokens("opaque", "")
	tracker.watchErr = fmt.Errorf("submission 2: %w", errors.New(errors.PollCanceled))

	if err := run(t, app, "submit watch", "ids=1,2"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	testutil.AssertEqual(t, tracker.watched, []model.SubmissionID{"1", "2"})
	testutil.AssertTrue(t, strings.Contains(buf.String(), "stopped watching"), "cancellation reported")
}

func TestProblemCommands(t *testing.T) {
	app, buf, _, _ := newApp(t)
	if err := run(t, app, "problem get", "id=5"); err != nil {
		t.Fatalf("get: %v", err)
	}
	testutil.AssertTrue(t, strings.Contains(buf.String(), "Problem 5  Sum"), "problem shown")

	err := run(t, app, "problem get", "id=6")
	testutil.AssertEqual(t, errors.GetCode(err), errors.ProblemNotFound)

	buf.Reset()
	if err := run(t, app, "problem list", "json=true"); err != nil {
		t.Fatalf("list: %v", err)
	}
	testutil.AssertTrue(t, strings.Contains(buf.String(), `"id":5`), "json list")
}

func TestSubmitHistoryRejectsBadLimit(t *testing.T) {
	app, _, _, _ := newApp(t)
	_ = app.Session.SetTokens("opaque", "")

	err := run(t, app, "submit history", "limit=abc")
	testutil.AssertEqual(t, errors.GetCode(err), errors.InvalidParams)

	err = run(t, app, "submit history", "limit=0")
	testutil.AssertEqual(t, errors.GetCode(err), errors.ValidationFailed)

	if err := run(t, app, "submit history", "limit=5"); err != nil {
		t.Fatalf("history: %v", err)
	}
}
