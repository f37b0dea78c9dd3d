// Package model holds the judge API records the tracking subsystem consumes.
package model

import (
	"time"

	"webcoder/internal/judge/verdict"
)

// Submission is one solution as reported by the judge.
type Submission struct {
	ID               SubmissionID     `json:"id"`
	Problem          ProblemRef       `json:"problem"`
	Language         string           `json:"language"`
	Code             string           `json:"code"`
	SubmissionTime   time.Time        `json:"submission_time"`
	Verdict          verdict.Reported `json:"verdict"`
	Score            *float64         `json:"score"`
	ExecutionTimeMs  *int64           `json:"execution_time_ms"`
	MemoryUsedKb     *int64           `json:"memory_used_kb"`
	DetailedFeedback string           `json:"detailed_feedback,omitempty"`
	User             *UserRef         `json:"user,omitempty"`
}

// SubmissionDetail is a submission together with its per-test results.
type SubmissionDetail struct {
	Submission
	TestResults []TestResult `json:"test_results"`
}

// TestResult is the outcome of one test case.
type TestResult struct {
	ID              int64            `json:"id"`
	TestCase        *TestCaseDetails `json:"test_case_details"`
	Verdict         verdict.Reported `json:"verdict"`
	ExecutionTimeMs *int64           `json:"execution_time_ms"`
	MemoryUsedKb    *int64           `json:"memory_used_kb"`
	ActualOutput    *string          `json:"actual_output"`
	ErrorOutput     *string          `json:"error_output"`
}

// TestCaseDetails is the display join of the evaluated test case.
type TestCaseDetails struct {
	ID       int64   `json:"id"`
	Order    *int    `json:"order"`
	IsSample bool    `json:"is_sample"`
	Points   float64 `json:"points"`
}

// UserRef identifies the author of a submission.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// SubmitInput is the create-submission request.
type SubmitInput struct {
	ProblemID ProblemID
	Language  string
	Code      string
}
