package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"webcoder/internal/common/cache"
	"webcoder/internal/judge/aggregate"
	"webcoder/internal/judge/model"
	"webcoder/internal/judge/poller"
	"webcoder/internal/judge/verdict"
	"webcoder/internal/submit/repository"
	"webcoder/internal/testutil"
	appErr "webcoder/pkg/errors"
)

type reply struct {
	verdict string
	err     error
}

type fakeClient struct {
	mu      sync.Mutex
	replies map[model.SubmissionID][]reply
	calls   map[model.SubmissionID]int
	created []model.SubmitInput
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		replies: map[model.SubmissionID][]reply{},
		calls:   map[model.SubmissionID]int{},
	}
}

func (f *fakeClient) script(id model.SubmissionID, replies ...reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[id] = replies
}

func (f *fakeClient) CreateSubmission(ctx context.Context, in model.SubmitInput) (model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return model.Submission{
		ID:       model.SubmissionID(fmt.Sprint(100 + len(f.created))),
		Problem:  model.ProblemRef{ID: in.ProblemID},
		Language: in.Language,
		Code:     in.Code,
		Verdict:  verdict.NewReported("PENDING"),
	}, nil
}

func (f *fakeClient) GetSubmission(ctx context.Context, id model.SubmissionID) (model.SubmissionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	script := f.replies[id]
	if len(script) == 0 {
		return model.SubmissionDetail{}, appErr.New(appErr.SubmissionNotFound)
	}
	i := f.calls[id]
	f.calls[id]++
	if i >= len(script) {
		i = len(script) - 1
	}
	r := script[i]
	if r.err != nil {
		return model.SubmissionDetail{}, r.err
	}
	return model.SubmissionDetail{Submission: model.Submission{ID: id, Verdict: verdict.NewReported(r.verdict)}}, nil
}

type events struct {
	mu  sync.Mutex
	all []Event
}

func (e *events) add(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) list() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.all...)
}

func newTracker(t *testing.T, client SubmissionClient) (*Tracker, *repository.CacheSnapshotRepository) {
	t.Helper()
	p := poller.New(client, poller.Config{Interval: 5 * time.Millisecond})
	repo := repository.NewSnapshotRepository(cache.NewMemoryCache())
	tr, err := NewTracker(Config{Client: client, Poller: p, Snapshots: repo})
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	t.Cleanup(tr.Close)
	return tr, repo
}

func TestNewTrackerRequiresDependencies(t *testing.T) {
	if _, err := NewTracker(Config{}); err == nil {
		t.Fatal("expected error without client")
	}
	if _, err := NewTracker(Config{Client: newFakeClient()}); err == nil {
		t.Fatal("expected error without poller")
	}
}

func TestWatchToTerminal(t *testing.T) {
	client := newFakeClient()
	client.script("1", reply{verdict: "PENDING"}, reply{verdict: "RUNNING"}, reply{verdict: "AC"})
	tr, repo := newTracker(t, client)
	var got events

	err := tr.Watch(context.Background(), "1", got.add)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	evs := got.list()
	testutil.AssertEqual(t, len(evs), 3)
	for _, ev := range evs {
		testutil.AssertEqual(t, ev.Type, EventUpdate)
	}
	testutil.AssertTrue(t, evs[2].Snapshot.IsTerminal, "last event is terminal")

	stored, ok, _ := repo.Get(context.Background(), "1")
	testutil.AssertTrue(t, ok, "snapshot stored")
	testutil.AssertEqual(t, stored.Verdict, verdict.Accepted)
}

func TestWatchErrorCarriesLastKnownGood(t *testing.T) {
	client := newFakeClient()
	client.script("1",
		reply{verdict: "RUNNING"},
		reply{err: appErr.NetworkError(fmt.Errorf("connection reset"))},
		reply{verdict: "WA"},
	)
	tr, _ := newTracker(t, client)
	var got events

	if err := tr.Watch(context.Background(), "1", got.add); err != nil {
		t.Fatalf("watch: %v", err)
	}
	evs := got.list()
	testutil.AssertEqual(t, len(evs), 3)
	testutil.AssertEqual(t, evs[1].Type, EventError)
	testutil.AssertTrue(t, appErr.IsTransient(evs[1].Err), "network error reported")
	testutil.AssertTrue(t, evs[1].Snapshot != nil, "error carries the last snapshot")
	testutil.AssertEqual(t, evs[1].Snapshot.Verdict, verdict.Running)
	testutil.AssertEqual(t, evs[2].Snapshot.Verdict, verdict.WrongAnswer)
}

func TestWatchStopsOnTerminalError(t *testing.T) {
	client := newFakeClient()
	tr, _ := newTracker(t, client)
	var got events

	err := tr.Watch(context.Background(), "404", got.add)
	testutil.AssertEqual(t, appErr.KindOf(err), appErr.KindNotFound)
	evs := got.list()
	testutil.AssertEqual(t, len(evs), 1)
	testutil.AssertTrue(t, evs[0].Snapshot == nil, "no snapshot was ever fetched")
}

func TestWatchCanceledByContext(t *testing.T) {
	client := newFakeClient()
	client.script("1", reply{verdict: "RUNNING"})
	tr, _ := newTracker(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan struct{})
	var once sync.Once
	go func() {
		<-first
		cancel()
	}()

	err := tr.Watch(ctx, "1", func(Event) { once.Do(func() { close(first) }) })
	testutil.AssertTrue(t, IsCanceled(err), "watch reports cancellation")
}

func TestWatchAll(t *testing.T) {
	client := newFakeClient()
	client.script("1", reply{verdict: "RUNNING"}, reply{verdict: "AC"})
	client.script("2", reply{verdict: "CE"})
	tr, _ := newTracker(t, client)
	var got events

	err := tr.WatchAll(context.Background(), []model.SubmissionID{"1", "2", "1", "3"}, got.add)
	if err == nil {
		t.Fatal("expected error for the missing submission")
	}
	testutil.AssertTrue(t, strings.Contains(err.Error(), "submission 3"), "error names the failing id")
	testutil.AssertFalse(t, strings.Contains(err.Error(), "submission 1"), "finished ids are not errors")

	terminal := map[model.SubmissionID]bool{}
	for _, ev := range got.list() {
		if ev.Type == EventUpdate && ev.Snapshot.IsTerminal {
			terminal[ev.SubmissionID] = true
		}
	}
	testutil.AssertTrue(t, terminal["1"], "submission 1 finished")
	testutil.AssertTrue(t, terminal["2"], "submission 2 finished")
}

func TestStatusFallsBackToStoredSnapshot(t *testing.T) {
	client := newFakeClient()
	client.script("1", reply{verdict: "RUNNING"}, reply{err: appErr.NetworkError(fmt.Errorf("timeout"))})
	tr, _ := newTracker(t, client)
	ctx := context.Background()

	snap, err := tr.Status(ctx, "1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	testutil.AssertEqual(t, snap.Attempt, 1)

	snap, err = tr.Status(ctx, "1")
	testutil.AssertTrue(t, appErr.IsTransient(err), "error is returned")
	testutil.AssertEqual(t, snap.Verdict, verdict.Running)
}

func TestSubmitAndHistory(t *testing.T) {
	client := newFakeClient()
	tr, _ := newTracker(t, client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := tr.Submit(ctx, model.SubmitInput{ProblemID: "5", Language: "python3", Code: "print(1)"}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	history, err := tr.History(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	testutil.AssertEqual(t, len(history), 2)
	testutil.AssertEqual(t, history[0].SubmissionID, model.SubmissionID("102"))
	testutil.AssertEqual(t, history[0].Outcome, aggregate.OutcomeInProgress)
	testutil.AssertEqual(t, history[0].DisplayVerdict, "judging")
}
