package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codearena/internal/common"
	"codearena/internal/domain/model"
)

type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	FindByID(ctx context.Context, id string) (*model.Submission, error)

	// Finalize writes the terminal fields of a pending submission. The update
	// is guarded on status = 'pending', so a submission can only ever move
	// from pending to exactly one terminal state; a second call reports
	// ErrConflict and changes nothing.
	Finalize(ctx context.Context, id string, status model.SubmissionStatus,
		runtime, memory float64, testcasesPassed int, errorMessage *string) error

	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, int, error)
	ListForUserProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, user_id, problem_id, language, code, status, runtime, memory,
	testcases_passed, total_testcases, error_message, contest_id, created_at, updated_at`

func (r *pgSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	query := `INSERT INTO submissions
	          (id, user_id, problem_id, language, code, status, total_testcases, contest_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.ProblemID, sub.Language, sub.Code, sub.Status, sub.TotalTestcases, sub.ContestID)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	sub := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Language, &sub.Code, &sub.Status,
		&sub.Runtime, &sub.Memory, &sub.TestcasesPassed, &sub.TotalTestcases,
		&sub.ErrorMessage, &sub.ContestID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) Finalize(ctx context.Context, id string, status model.SubmissionStatus,
	runtime, memory float64, testcasesPassed int, errorMessage *string) error {
	query := `UPDATE submissions
	          SET status = $2, runtime = $3, memory = $4, testcases_passed = $5,
	              error_message = $6, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, runtime, memory, testcasesPassed, errorMessage)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Finalize: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Finalize: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("submission %s is not pending: %w", id, common.ErrConflict)
	}
	return nil
}

func (r *pgSubmissionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, int, error) {
	countQuery := `SELECT COUNT(*) FROM submissions WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByUser count: %w", err)
	}

	query := `SELECT ` + submissionColumns + `
	          FROM submissions WHERE user_id = $1
	          ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListByUser: %w", err)
	}
	defer rows.Close()
	subs, err := scanSubmissions(rows)
	return subs, total, err
}

func (r *pgSubmissionRepository) ListForUserProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	countQuery := `SELECT COUNT(*) FROM submissions WHERE user_id = $1 AND problem_id = $2`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, userID, problemID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem count: %w", err)
	}

	query := `SELECT ` + submissionColumns + `
	          FROM submissions WHERE user_id = $1 AND problem_id = $2
	          ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, query, userID, problemID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem: %w", err)
	}
	defer rows.Close()
	subs, err := scanSubmissions(rows)
	return subs, total, err
}

func scanSubmissions(rows *sql.Rows) ([]model.Submission, error) {
	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Language, &sub.Code, &sub.Status,
			&sub.Runtime, &sub.Memory, &sub.TestcasesPassed, &sub.TotalTestcases,
			&sub.ErrorMessage, &sub.ContestID, &sub.CreatedAt, &sub.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanSubmissions: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
