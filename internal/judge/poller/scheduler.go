package poller

import (
	"sync"
	"time"
)

// Task is a running periodic schedule.
type Task interface {
	// Stop ends the schedule. It is safe to call more than once.
	Stop()
}

// Scheduler invokes fn once per interval until the returned Task is stopped.
// fn must not block; the first call happens one interval after Every.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Task
}

// TickerScheduler drives tasks with time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func()) Task {
	t := &tickerTask{
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type tickerTask struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (t *tickerTask) run(fn func()) {
	for {
		select {
		case <-t.stop:
			return
		case <-t.ticker.C:
			select {
			case <-t.stop:
				return
			default:
			}
			fn()
		}
	}
}

func (t *tickerTask) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
	})
}

// ManualScheduler fires tasks only when told to. It is meant for tests.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*ManualTask
}

// ManualTask is a task created by ManualScheduler.
type ManualTask struct {
	Interval time.Duration
	fn       func()
	mu       sync.Mutex
	stopped  bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) Every(interval time.Duration, fn func()) Task {
	t := &ManualTask{Interval: interval, fn: fn}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return t
}

// Fire runs one tick of every task that has not been stopped.
func (s *ManualScheduler) Fire() {
	for _, t := range s.Tasks() {
		t.fire()
	}
}

// Tasks returns every task created so far, stopped ones included.
func (s *ManualScheduler) Tasks() []*ManualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ManualTask, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Active counts tasks that have not been stopped.
func (s *ManualScheduler) Active() int {
	n := 0
	for _, t := range s.Tasks() {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

func (t *ManualTask) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if !stopped {
		t.fn()
	}
}

func (t *ManualTask) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *ManualTask) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
