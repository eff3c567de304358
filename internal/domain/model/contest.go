package model

import "time"

type ProgressStatus string

const (
	ProgressNotAttempted ProgressStatus = "NOT_ATTEMPTED"
	ProgressAttempted    ProgressStatus = "ATTEMPTED"
	ProgressSolved       ProgressStatus = "SOLVED"
)

type Contest struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	Problems    []ContestProblem `json:"problems,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ContestProblem struct {
	ContestID string `json:"contest_id"`
	ProblemID string `json:"problem_id"`
	Points    int    `json:"points"`
	SortOrder int    `json:"sort_order"`
}

// ContestProgress is the per-(user, contest) record, unique-indexed on that
// pair. Seeded lazily on the first visit/attempt/solve event with one
// ProblemProgress entry per contest problem.
type ContestProgress struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	ContestID   string            `json:"contest_id"`
	Problems    []ProblemProgress `json:"problems"`
	TotalSolved int               `json:"total_solved"`
	TotalScore  int               `json:"total_score"`
	LastUpdated time.Time         `json:"last_updated"`
}

// ProblemProgress tracks one problem inside a progress row. Status only moves
// forward: NOT_ATTEMPTED -> ATTEMPTED -> SOLVED, never back.
type ProblemProgress struct {
	ProblemID    string         `json:"problem_id"`
	Status       ProgressStatus `json:"status"`
	VisitedAt    *time.Time     `json:"visited_at,omitempty"`
	SolvedAt     *time.Time     `json:"solved_at,omitempty"`
	AttemptCount int            `json:"attempt_count"`
}

// Problem returns the progress entry for the given problem, or nil if the
// problem is not part of this contest's seeded list.
func (p *ContestProgress) Problem(problemID string) *ProblemProgress {
	for i := range p.Problems {
		if p.Problems[i].ProblemID == problemID {
			return &p.Problems[i]
		}
	}
	return nil
}

// ContestStanding is one leaderboard row.
type ContestStanding struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	TotalSolved int       `json:"total_solved"`
	TotalScore  int       `json:"total_score"`
	LastUpdated time.Time `json:"last_updated"`
}
