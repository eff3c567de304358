package model

import (
	"time"
)

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "Easy"
	DifficultyMedium ProblemDifficulty = "Medium"
	DifficultyHard   ProblemDifficulty = "Hard"
)

type Problem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Difficulty  ProblemDifficulty `json:"difficulty"`
	CreatedByID *string           `json:"created_by_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	TestCases   []TestCase        `json:"test_cases,omitempty"` // Hidden ones stripped for non-admin views
	CodeStubs   []CodeStub        `json:"code_stubs,omitempty"`
}

// TestCase is one judged input/output pair. Visible cases are shown to users
// and are the judged set for "run"; "submit" is judged against visible and
// hidden cases together.
type TestCase struct {
	ID             string    `json:"id"`
	ProblemID      string    `json:"problem_id"`
	Input          string    `json:"input"`
	ExpectedOutput string    `json:"expected_output"`
	IsHidden       bool      `json:"is_hidden"`
	SortOrder      int       `json:"sort_order"`
	CreatedAt      time.Time `json:"created_at"`
}

// CodeStub carries the per-language starter code shown in the editor and the
// reference solution kept for admins.
type CodeStub struct {
	ID           string  `json:"id"`
	ProblemID    string  `json:"problem_id"`
	Language     string  `json:"language"`
	StarterCode  string  `json:"starter_code"`
	SolutionCode *string `json:"solution_code,omitempty"` // Admin only view
}

// VisibleTestCases returns the judged set for "run" attempts, preserving the
// problem's sort order.
func (p *Problem) VisibleTestCases() []TestCase {
	visible := make([]TestCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		if !tc.IsHidden {
			visible = append(visible, tc)
		}
	}
	return visible
}
