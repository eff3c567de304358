package model

import "time"

type SubmissionStatus string

const (
	StatusPending      SubmissionStatus = "pending"
	StatusAccepted     SubmissionStatus = "accepted"
	StatusWrongAnswer  SubmissionStatus = "wrong_answer"
	StatusCompileError SubmissionStatus = "compile_error"
	StatusRuntimeError SubmissionStatus = "runtime_error"
	StatusUnknownError SubmissionStatus = "unknown_error"
	StatusServerError  SubmissionStatus = "server_error" // Failure in our system, not the user's code
	StatusTimeout      SubmissionStatus = "timeout"      // Judging exceeded its wait budget
)

// IsTerminal reports whether the status will never change again. Statuses
// derived from judge descriptions (e.g. "time_limit_exceeded") are terminal
// too; pending is the only non-terminal state a submission ever holds.
func (s SubmissionStatus) IsTerminal() bool {
	return s != StatusPending && s != ""
}

type Submission struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	ProblemID       string           `json:"problem_id"`
	Language        string           `json:"language"`
	Code            string           `json:"code"` // Might omit from general listings
	Status          SubmissionStatus `json:"status"`
	Runtime         float64          `json:"runtime"` // Seconds, summed over passing test cases
	Memory          float64          `json:"memory"`  // KB, max over passing test cases
	TestcasesPassed int              `json:"testcases_passed"`
	TotalTestcases  int              `json:"total_testcases"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	ContestID       *string          `json:"contest_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
