package model

import (
	"encoding/json"
	"testing"

	"webcoder/internal/judge/verdict"
	"webcoder/internal/testutil"
)

const detailJSON = `{
  "id": 17,
  "user": {"id": 3, "username": "alice"},
  "problem": {"id": 5, "title_i18n": {"en": "Two Sum", "ru": "Две суммы"}},
  "language": "python3",
  "code": "print(1)",
  "submission_time": "2025-03-01T10:00:00Z",
  "verdict": "WA",
  "execution_time_ms": 120,
  "memory_used_kb": null,
  "score": 50.0,
  "detailed_feedback": "1/2 tests passed",
  "test_results": [
    {"id": 9, "test_case_details": {"id": 2, "order": 2, "is_sample": false, "points": 50}, "verdict": "WA",
     "execution_time_ms": 60, "memory_used_kb": 900, "actual_output": "3", "error_output": null},
    {"id": 8, "test_case_details": {"id": 1, "order": 1, "is_sample": true, "points": 50}, "verdict": "AC",
     "execution_time_ms": 60, "memory_used_kb": 800, "actual_output": null, "error_output": null}
  ]
}`

func TestDecodeSubmissionDetail(t *testing.T) {
	var detail SubmissionDetail
	testutil.MustUnmarshalJSON(t, []byte(detailJSON), &detail)

	testutil.AssertEqual(t, detail.ID, SubmissionID("17"))
	testutil.AssertEqual(t, detail.Problem.ID, ProblemID("5"))
	testutil.AssertEqual(t, detail.Problem.Title("ru"), "Две суммы")
	testutil.AssertEqual(t, detail.Problem.Title("de"), "Two Sum")
	testutil.AssertEqual(t, detail.Verdict.Verdict, verdict.WrongAnswer)
	testutil.AssertTrue(t, detail.MemoryUsedKb == nil, "memory should be nil")
	testutil.AssertEqual(t, *detail.ExecutionTimeMs, int64(120))
	testutil.AssertEqual(t, *detail.Score, 50.0)
	testutil.AssertEqual(t, len(detail.TestResults), 2)
	testutil.AssertEqual(t, *detail.TestResults[0].TestCase.Order, 2)
	testutil.AssertEqual(t, *detail.TestResults[0].ActualOutput, "3")
	testutil.AssertTrue(t, detail.TestResults[1].ActualOutput == nil, "null output should stay nil")
}

func TestSubmissionIDForms(t *testing.T) {
	var payload struct {
		A SubmissionID `json:"a"`
		B SubmissionID `json:"b"`
	}
	testutil.MustUnmarshalJSON(t, []byte(`{"a": 42, "b": "abc-1"}`), &payload)
	testutil.AssertEqual(t, payload.A, SubmissionID("42"))
	testutil.AssertEqual(t, payload.B, SubmissionID("abc-1"))

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	testutil.AssertEqual(t, string(out), `{"a":42,"b":"abc-1"}`)
}

func TestIDsEmpty(t *testing.T) {
	testutil.AssertTrue(t, ProblemID("").Empty(), "empty problem id")
	testutil.AssertTrue(t, ProblemID("  ").Empty(), "blank problem id")
	testutil.AssertFalse(t, ProblemID("5").Empty(), "problem id set")
	testutil.AssertTrue(t, SubmissionID("\t").Empty(), "blank submission id")
	testutil.AssertFalse(t, SubmissionID("42").Empty(), "submission id set")
}

func TestTitleFallbackIsStable(t *testing.T) {
	p := Problem{TitleI18n: map[string]string{"ru": "Сумма", "de": "Summe", "fr": "", "uk": "Сума"}}
	for i := 0; i < 20; i++ {
		testutil.AssertEqual(t, p.Title("ja"), "Summe")
	}
	testutil.AssertEqual(t, p.Title("ru"), "Сумма")
	testutil.AssertEqual(t, Problem{}.Title("en"), "")
}

func TestProblemRefBareID(t *testing.T) {
	var s Submission
	testutil.MustUnmarshalJSON(t, []byte(`{"id": 1, "problem": 7, "verdict": "PENDING"}`), &s)
	testutil.AssertEqual(t, s.Problem.ID, ProblemID("7"))
	testutil.AssertEqual(t, s.Verdict.Verdict, verdict.Pending)
}

func TestProblemAllowsLanguage(t *testing.T) {
	p := Problem{AllowedLanguages: []string{"python3", "cpp17"}}
	testutil.AssertTrue(t, p.AllowsLanguage("CPP17"), "case-insensitive match")
	testutil.AssertFalse(t, p.AllowsLanguage("java11"), "java11 not allowed")
	testutil.AssertTrue(t, Problem{}.AllowsLanguage("anything"), "empty allow list is unrestricted")
}
