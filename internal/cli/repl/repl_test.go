package repl

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"webcoder/internal/cli/command"
	"webcoder/internal/cli/config"
	"webcoder/internal/cli/render"
	"webcoder/internal/cli/state"
	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/client"
	"webcoder/internal/judge/model"
	"webcoder/internal/submit/service"
	"webcoder/internal/testutil"

	"github.com/chzyer/readline"
)

type scriptReader struct {
	lines     []string
	passwords []string
	prompts   []string
}

func (r *scriptReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	if line == "^C" {
		return "", readline.ErrInterrupt
	}
	return line, nil
}

func (r *scriptReader) ReadPassword(prompt string) ([]byte, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.passwords) == 0 {
		return nil, io.EOF
	}
	pw := r.passwords[0]
	r.passwords = r.passwords[1:]
	return []byte(pw), nil
}

func (r *scriptReader) SetPrompt(prompt string) { r.prompts = append(r.prompts, prompt) }
func (r *scriptReader) Close() error            { return nil }

type fakeEndpoint struct {
	base    string
	timeout time.Duration
}

func (e *fakeEndpoint) BaseURL() string                  { return e.base }
func (e *fakeEndpoint) SetBaseURL(baseURL string)        { e.base = strings.TrimRight(baseURL, "/") }
func (e *fakeEndpoint) SetTimeout(timeout time.Duration) { e.timeout = timeout }

type fakeAuth struct {
	gotUser, gotPass string
}

func (a *fakeAuth) Login(ctx context.Context, username, password string) (client.TokenPair, error) {
	a.gotUser, a.gotPass = username, password
	return client.TokenPair{Access: "access-token-value", Refresh: "refresh"}, nil
}

func (a *fakeAuth) Refresh(ctx context.Context, refresh string) (client.TokenPair, error) {
	return client.TokenPair{Access: "next"}, nil
}

func (a *fakeAuth) Me(ctx context.Context) (client.Profile, error) {
	return client.Profile{Username: a.gotUser}, nil
}

func newSession(t *testing.T, lines ...string) (*Session, *scriptReader, *bytes.Buffer, *fakeEndpoint, *fakeAuth) {
	t.Helper()
	var buf bytes.Buffer
	reader := &scriptReader{lines: lines}
	auth := &fakeAuth{}
	app := &command.App{
		Auth:    auth,
		Session: state.NewStore(filepath.Join(t.TempDir(), "state.json"), state.TokenState{}),
		Out:     render.New(&buf, render.Options{NoColor: true}),
	}
	endpoint := &fakeEndpoint{base: config.DefaultBaseURL}
	s := New(reader, app, command.Registry(), endpoint, config.Default())
	return s, reader, &buf, endpoint, auth
}

func TestRunSystemCommands(t *testing.T) {
	s, _, buf, endpoint, _ := newSession(t,
		"help",
		"set base http://judge.test/api/v1/",
		"set timeout 3s",
		"set timeout nope",
		"set token abcdefghijklmnopqrstuvwxyz",
		"show token",
		"show config",
		"exit",
		"help",
	)
	s.Run(context.Background())

	out := buf.String()
	testutil.AssertTrue(t, strings.Contains(out, "submit watch"), "help lists commands")
	testutil.AssertEqual(t, endpoint.base, "http://judge.test/api/v1")
	testutil.AssertEqual(t, endpoint.timeout, 3*time.Second)
	testutil.AssertTrue(t, strings.Contains(out, "invalid duration: nope"), "bad duration rejected")
	testutil.AssertTrue(t, strings.Contains(out, "token: abcdef...wxyz"), "token masked")
	testutil.AssertTrue(t, strings.Contains(out, "baseURL: http://judge.test/api/v1"), "config reflects set base")
	testutil.AssertTrue(t, strings.HasSuffix(out, "bye\n"), "exit stops the loop")
}

func TestRunPromptsForMissingFields(t *testing.T) {
	s, reader, buf, _, auth := newSession(t, "user login", "demo", "user me")
	reader.passwords = []string{"secret"}
	s.Run(context.Background())

	testutil.AssertEqual(t, auth.gotUser, "demo")
	testutil.AssertEqual(t, auth.gotPass, "secret")
	testutil.AssertTrue(t, strings.Contains(buf.String(), "logged in as demo"), "login succeeded")
	testutil.AssertTrue(t, strings.Contains(buf.String(), `"username":"demo"`), "me rendered")
	testutil.AssertEqual(t, s.app.Session.Token(), "access-token-value")
}

func TestRunReportsErrorsAndContinues(t *testing.T) {
	s, _, buf, _, _ := newSession(t, "^C", "bogus", "nope nope", "user me", `user login "unterminated`, "show nothing")
	s.Run(context.Background())

	out := buf.String()
	testutil.AssertTrue(t, strings.Contains(out, "invalid command"), "single token rejected")
	testutil.AssertTrue(t, strings.Contains(out, "unknown command: nope nope"), "unknown command")
	testutil.AssertTrue(t, strings.Contains(out, "Not logged in"), "auth required")
	testutil.AssertTrue(t, strings.Contains(out, "parse command failed"), "shlex error")
	testutil.AssertTrue(t, strings.Contains(out, "usage: show token|config"), "show usage")
}

type fakeTracker struct {
	command.Tracker
	watchCtx context.Context
}

func (f *fakeTracker) Watch(ctx context.Context, id model.SubmissionID, fn func(service.Event)) error {
	f.watchCtx = ctx
	return nil
}

func (f *fakeTracker) History(ctx context.Context, limit int) ([]aggregate.Snapshot, error) {
	return nil, nil
}

func TestWatchCommandsGetInterruptScope(t *testing.T) {
	s, _, _, _, _ := newSession(t)
	tracker := &fakeTracker{}
	s.app.Tracker = tracker
	_ = s.app.Session.SetTokens("opaque", "")
	scoped := 0
	s.interrupt = func(ctx context.Context) (context.Context, context.CancelFunc) {
		scoped++
		return context.WithCancel(ctx)
	}

	if err := s.handleCommand(context.Background(), "submit history"); err != nil {
		t.Fatalf("history: %v", err)
	}
	testutil.AssertEqual(t, scoped, 0)

	if err := s.handleCommand(context.Background(), "submit watch id=7"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	testutil.AssertEqual(t, scoped, 1)
	testutil.AssertTrue(t, tracker.watchCtx.Err() != nil, "interrupt scope released after the watch")
}

func TestCompleterIncludesCommands(t *testing.T) {
	c := completer(command.Registry())
	tree := c.Tree("")
	testutil.AssertTrue(t, strings.Contains(tree, "submit"), "service listed")
	testutil.AssertTrue(t, strings.Contains(tree, "problem_id="), "field listed")
}
