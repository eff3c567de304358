package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SolvedProblem is one entry of a user's solved set. The set is keyed on
// (user_id, problem_id), so a problem appears at most once per user no matter
// how many accepted submissions it has.
type SolvedProblem struct {
	ProblemID    string    `json:"problem_id"`
	SubmissionID string    `json:"submission_id"` // First accepted submission
	SolvedAt     time.Time `json:"solved_at"`
}
