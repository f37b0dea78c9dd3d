// Package aggregate turns raw judge records into presentation-ready snapshots.
package aggregate

import (
	"sort"
	"time"

	"webcoder/internal/judge/model"
	"webcoder/internal/judge/verdict"
)

const (
	DefaultOutputLimit = 200
	TruncationMarker   = "..."
	judgingLabel       = "judging"
)

// Outcome classifies a run as a whole.
type Outcome string

const (
	OutcomeInProgress  Outcome = "in_progress"
	OutcomeComplete    Outcome = "complete"
	OutcomePartial     Outcome = "partial"
	OutcomeNotExecuted Outcome = "not_executed"
	OutcomeJudgeError  Outcome = "judge_error"
)

// Snapshot is the aggregated view of one submission at one point in time.
type Snapshot struct {
	SubmissionID     model.SubmissionID `json:"submission_id"`
	ProblemID        model.ProblemID    `json:"problem_id"`
	ProblemTitle     string             `json:"problem_title,omitempty"`
	Language         string             `json:"language"`
	Code             string             `json:"code,omitempty"`
	SubmissionTime   time.Time          `json:"submission_time"`
	Verdict          verdict.Verdict    `json:"verdict"`
	RawVerdict       string             `json:"raw_verdict"`
	DisplayVerdict   string             `json:"display_verdict"`
	UnknownVerdict   bool               `json:"unknown_verdict"`
	IsTerminal       bool               `json:"is_terminal"`
	Score            *float64           `json:"score,omitempty"`
	ExecutionTimeMs  *int64             `json:"execution_time_ms,omitempty"`
	MemoryUsedKb     *int64             `json:"memory_used_kb,omitempty"`
	DetailedFeedback string             `json:"detailed_feedback,omitempty"`
	Tests            []TestResultView   `json:"tests"`
	Summary          Summary            `json:"summary"`
	Outcome          Outcome            `json:"outcome"`
	Attempt          int                `json:"attempt"`
	FetchedAt        time.Time          `json:"fetched_at"`
}

// TestResultView is one test result prepared for display.
type TestResultView struct {
	ID                    int64           `json:"id"`
	TestCaseID            int64           `json:"test_case_id,omitempty"`
	Order                 *int            `json:"order,omitempty"`
	IsSample              bool            `json:"is_sample"`
	Points                float64         `json:"points"`
	Verdict               verdict.Verdict `json:"verdict"`
	RawVerdict            string          `json:"raw_verdict"`
	ExecutionTimeMs       *int64          `json:"execution_time_ms,omitempty"`
	MemoryUsedKb          *int64          `json:"memory_used_kb,omitempty"`
	ActualOutput          string          `json:"actual_output,omitempty"`
	ActualOutputTruncated bool            `json:"actual_output_truncated,omitempty"`
	ErrorOutput           string          `json:"error_output,omitempty"`
	ErrorOutputTruncated  bool            `json:"error_output_truncated,omitempty"`
}

// Summary holds counters derived from the test results.
type Summary struct {
	Total       int   `json:"total"`
	Expected    int   `json:"expected,omitempty"`
	Passed      int   `json:"passed"`
	TotalTimeMs int64 `json:"total_time_ms"`
	MaxMemoryKb int64 `json:"max_memory_kb"`
}

// Options tunes an Aggregator.
type Options struct {
	OutputLimit int
	Language    string
	Clock       func() time.Time
}

// Aggregator builds snapshots. It holds no per-submission state.
type Aggregator struct {
	outputLimit int
	lang        string
	now         func() time.Time
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	if opts.OutputLimit <= 0 {
		opts.OutputLimit = DefaultOutputLimit
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Aggregator{outputLimit: opts.OutputLimit, lang: opts.Language, now: opts.Clock}
}

// Input is everything that goes into one snapshot.
type Input struct {
	Detail model.SubmissionDetail
	// Previous is the snapshot produced by the prior poll, if any.
	Previous *Snapshot
	// ExpectedTests is the problem's test case count; zero when unknown.
	ExpectedTests int
	Attempt       int
}

// Build produces a snapshot. Results seen in Previous but missing from the
// new fetch are carried over, so the result set never shrinks.
func (a *Aggregator) Build(in Input) Snapshot {
	d := in.Detail
	class := d.Verdict.Classification()

	snap := Snapshot{
		SubmissionID:     d.ID,
		ProblemID:        d.Problem.ID,
		ProblemTitle:     d.Problem.Title(a.lang),
		Language:         d.Language,
		Code:             d.Code,
		SubmissionTime:   d.SubmissionTime,
		Verdict:          class.Verdict,
		RawVerdict:       class.Raw,
		DisplayVerdict:   DisplayVerdict(class),
		UnknownVerdict:   class.Unknown(),
		IsTerminal:       class.Terminal(),
		Score:            d.Score,
		ExecutionTimeMs:  d.ExecutionTimeMs,
		MemoryUsedKb:     d.MemoryUsedKb,
		DetailedFeedback: d.DetailedFeedback,
		Attempt:          in.Attempt,
		FetchedAt:        a.now(),
	}

	views := make([]TestResultView, 0, len(d.TestResults))
	seen := make(map[resultKey]struct{}, len(d.TestResults))
	for _, tr := range d.TestResults {
		v := a.view(tr)
		seen[v.key()] = struct{}{}
		views = append(views, v)
	}
	if in.Previous != nil && in.Previous.SubmissionID == d.ID {
		for _, old := range in.Previous.Tests {
			if _, ok := seen[old.key()]; !ok {
				views = append(views, old)
			}
		}
	}
	SortTests(views)
	snap.Tests = views
	snap.Summary = summarize(views, in.ExpectedTests)
	snap.Outcome = classifyOutcome(snap)
	return snap
}

// resultKey identifies a result by its test case, or by the result id when
// the judge did not send test case details.
type resultKey struct {
	testCase int64
	result   int64
}

func (v TestResultView) key() resultKey {
	if v.TestCaseID != 0 {
		return resultKey{testCase: v.TestCaseID}
	}
	return resultKey{result: v.ID}
}

func (a *Aggregator) view(tr model.TestResult) TestResultView {
	v := TestResultView{
		ID:              tr.ID,
		Verdict:         tr.Verdict.Verdict,
		RawVerdict:      tr.Verdict.Raw,
		ExecutionTimeMs: tr.ExecutionTimeMs,
		MemoryUsedKb:    tr.MemoryUsedKb,
	}
	if tr.TestCase != nil {
		v.TestCaseID = tr.TestCase.ID
		v.Order = tr.TestCase.Order
		v.IsSample = tr.TestCase.IsSample
		v.Points = tr.TestCase.Points
	}
	if tr.ActualOutput != nil {
		v.ActualOutput, v.ActualOutputTruncated = Truncate(*tr.ActualOutput, a.outputLimit)
	}
	if tr.ErrorOutput != nil {
		v.ErrorOutput, v.ErrorOutputTruncated = Truncate(*tr.ErrorOutput, a.outputLimit)
	}
	return v
}

// DisplayVerdict summarizes every in-flight state as "judging".
func DisplayVerdict(c verdict.Classification) string {
	switch c.Class {
	case verdict.InFlight:
		return judgingLabel
	case verdict.TerminalUnknown:
		if c.Raw == "" {
			return "unknown"
		}
		return "unknown (" + c.Raw + ")"
	default:
		return c.Verdict.Label()
	}
}

// Truncate caps s at limit characters and appends TruncationMarker when cut.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	// Cheap exit: byte length bounds rune length.
	if len(s) <= limit {
		return s, false
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i] + TruncationMarker, true
		}
		count++
	}
	return s, false
}

// SortTests orders results by declared test case order, then by result id.
// Results without an order come after those with one.
func SortTests(views []TestResultView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		switch {
		case a.Order != nil && b.Order != nil:
			if *a.Order != *b.Order {
				return *a.Order < *b.Order
			}
		case a.Order != nil:
			return true
		case b.Order != nil:
			return false
		}
		return a.ID < b.ID
	})
}

func summarize(views []TestResultView, expected int) Summary {
	s := Summary{Total: len(views), Expected: expected}
	for _, v := range views {
		if v.Verdict == verdict.Accepted {
			s.Passed++
		}
		if v.ExecutionTimeMs != nil {
			s.TotalTimeMs += *v.ExecutionTimeMs
		}
		if v.MemoryUsedKb != nil && *v.MemoryUsedKb > s.MaxMemoryKb {
			s.MaxMemoryKb = *v.MemoryUsedKb
		}
	}
	return s
}

func classifyOutcome(s Snapshot) Outcome {
	if !s.IsTerminal {
		return OutcomeInProgress
	}
	total := s.Summary.Total
	expected := s.Summary.Expected
	missing := expected > 0 && total < expected
	switch s.Verdict {
	case verdict.CompileError:
		if total == 0 {
			return OutcomeNotExecuted
		}
	case verdict.InternalError:
		if total == 0 || missing {
			return OutcomeJudgeError
		}
	}
	if missing {
		return OutcomePartial
	}
	return OutcomeComplete
}
