package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"codearena/internal/common"
	"codearena/internal/domain/model"
)

type ContestRepository interface {
	FindContestByID(ctx context.Context, id string) (*model.Contest, error)
	ListContests(ctx context.Context, limit, offset int) ([]model.Contest, int, error)
	CreateContest(ctx context.Context, contest *model.Contest) error

	GetProgress(ctx context.Context, userID, contestID string) (*model.ContestProgress, error)
	// CreateProgress inserts a fresh progress row with its seeded per-problem
	// entries. The (user_id, contest_id) unique index rejects a duplicate with
	// ErrConflict so racing creators can fall back to a fetch.
	CreateProgress(ctx context.Context, progress *model.ContestProgress) error

	// MarkVisited sets the problem entry to ATTEMPTED unless it is already
	// SOLVED, stamping visited_at on the first visit only. No-op when the row
	// or entry does not exist.
	MarkVisited(ctx context.Context, userID, contestID, problemID string, at time.Time) error
	// IncrementAttempt bumps the entry's attempt counter by one. No-op when
	// the row or entry does not exist.
	IncrementAttempt(ctx context.Context, userID, contestID, problemID string) error
	// MarkSolved transitions the entry to SOLVED and bumps the row's solved
	// count and score atomically. Reports solved=false when the entry was
	// already SOLVED (or absent), leaving every counter untouched.
	MarkSolved(ctx context.Context, userID, contestID, problemID string, points int, at time.Time) (solved bool, err error)

	Leaderboard(ctx context.Context, contestID string, limit int) ([]model.ContestStanding, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT id, title, slug, description, start_time, end_time, created_at, updated_at
	          FROM contests WHERE id = $1`
	contest := &model.Contest{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&contest.ID, &contest.Title, &contest.Slug, &contest.Description,
		&contest.StartTime, &contest.EndTime, &contest.CreatedAt, &contest.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestByID: %w", err)
	}

	problemQuery := `SELECT contest_id, problem_id, points, sort_order
	                 FROM contest_problems WHERE contest_id = $1 ORDER BY sort_order`
	rows, err := r.db.QueryContext(ctx, problemQuery, id)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.FindContestByID problems: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cp model.ContestProblem
		if err := rows.Scan(&cp.ContestID, &cp.ProblemID, &cp.Points, &cp.SortOrder); err != nil {
			return nil, fmt.Errorf("pgContestRepository.FindContestByID problems scan: %w", err)
		}
		contest.Problems = append(contest.Problems, cp)
	}
	return contest, rows.Err()
}

func (r *pgContestRepository) ListContests(ctx context.Context, limit, offset int) ([]model.Contest, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contests`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.ListContests count: %w", err)
	}

	query := `SELECT id, title, slug, description, start_time, end_time, created_at, updated_at
	          FROM contests ORDER BY start_time DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.ListContests: %w", err)
	}
	defer rows.Close()

	var contests []model.Contest
	for rows.Next() {
		var c model.Contest
		if err := rows.Scan(&c.ID, &c.Title, &c.Slug, &c.Description,
			&c.StartTime, &c.EndTime, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgContestRepository.ListContests scan: %w", err)
		}
		contests = append(contests, c)
	}
	return contests, total, rows.Err()
}

func (r *pgContestRepository) CreateContest(ctx context.Context, contest *model.Contest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgContestRepository.CreateContest begin: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO contests (id, title, slug, description, start_time, end_time)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, query, contest.ID, contest.Title, contest.Slug,
		contest.Description, contest.StartTime, contest.EndTime); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("contest with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.CreateContest: %w", err)
	}

	problemQuery := `INSERT INTO contest_problems (contest_id, problem_id, points, sort_order)
	                 VALUES ($1, $2, $3, $4)`
	for _, cp := range contest.Problems {
		if _, err := tx.ExecContext(ctx, problemQuery, contest.ID, cp.ProblemID, cp.Points, cp.SortOrder); err != nil {
			return fmt.Errorf("pgContestRepository.CreateContest problems: %w", err)
		}
	}
	return tx.Commit()
}

func (r *pgContestRepository) GetProgress(ctx context.Context, userID, contestID string) (*model.ContestProgress, error) {
	query := `SELECT id, user_id, contest_id, total_solved, total_score, last_updated
	          FROM contest_progress WHERE user_id = $1 AND contest_id = $2`
	progress := &model.ContestProgress{}
	err := r.db.QueryRowContext(ctx, query, userID, contestID).Scan(
		&progress.ID, &progress.UserID, &progress.ContestID,
		&progress.TotalSolved, &progress.TotalScore, &progress.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.GetProgress: %w", err)
	}

	entryQuery := `SELECT problem_id, status, visited_at, solved_at, attempt_count
	               FROM contest_problem_progress WHERE progress_id = $1 ORDER BY problem_id`
	rows, err := r.db.QueryContext(ctx, entryQuery, progress.ID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.GetProgress entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pp model.ProblemProgress
		if err := rows.Scan(&pp.ProblemID, &pp.Status, &pp.VisitedAt, &pp.SolvedAt, &pp.AttemptCount); err != nil {
			return nil, fmt.Errorf("pgContestRepository.GetProgress entries scan: %w", err)
		}
		progress.Problems = append(progress.Problems, pp)
	}
	return progress, rows.Err()
}

func (r *pgContestRepository) CreateProgress(ctx context.Context, progress *model.ContestProgress) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgContestRepository.CreateProgress begin: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO contest_progress (id, user_id, contest_id, total_solved, total_score, last_updated)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, query, progress.ID, progress.UserID, progress.ContestID,
		progress.TotalSolved, progress.TotalScore, progress.LastUpdated); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // (user_id, contest_id) unique index
			return fmt.Errorf("progress row already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.CreateProgress: %w", err)
	}

	entryQuery := `INSERT INTO contest_problem_progress (progress_id, problem_id, status, attempt_count)
	               VALUES ($1, $2, $3, $4)`
	for _, pp := range progress.Problems {
		if _, err := tx.ExecContext(ctx, entryQuery, progress.ID, pp.ProblemID, pp.Status, pp.AttemptCount); err != nil {
			return fmt.Errorf("pgContestRepository.CreateProgress entries: %w", err)
		}
	}
	return tx.Commit()
}

func (r *pgContestRepository) MarkVisited(ctx context.Context, userID, contestID, problemID string, at time.Time) error {
	query := `UPDATE contest_problem_progress cpp
	          SET status = 'ATTEMPTED', visited_at = COALESCE(cpp.visited_at, $4)
	          FROM contest_progress cp
	          WHERE cp.id = cpp.progress_id AND cp.user_id = $1 AND cp.contest_id = $2
	            AND cpp.problem_id = $3 AND cpp.status <> 'SOLVED'`
	if _, err := r.db.ExecContext(ctx, query, userID, contestID, problemID, at); err != nil {
		return fmt.Errorf("pgContestRepository.MarkVisited: %w", err)
	}
	return nil
}

func (r *pgContestRepository) IncrementAttempt(ctx context.Context, userID, contestID, problemID string) error {
	query := `UPDATE contest_problem_progress cpp
	          SET attempt_count = cpp.attempt_count + 1
	          FROM contest_progress cp
	          WHERE cp.id = cpp.progress_id AND cp.user_id = $1 AND cp.contest_id = $2
	            AND cpp.problem_id = $3`
	if _, err := r.db.ExecContext(ctx, query, userID, contestID, problemID); err != nil {
		return fmt.Errorf("pgContestRepository.IncrementAttempt: %w", err)
	}
	return nil
}

func (r *pgContestRepository) MarkSolved(ctx context.Context, userID, contestID, problemID string, points int, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.MarkSolved begin: %w", err)
	}
	defer tx.Rollback()

	// The status <> 'SOLVED' guard makes the transition idempotent; a repeat
	// solve matches zero rows and the counters below are never touched twice.
	entryQuery := `UPDATE contest_problem_progress cpp
	               SET status = 'SOLVED', solved_at = $4, visited_at = COALESCE(cpp.visited_at, $4)
	               FROM contest_progress cp
	               WHERE cp.id = cpp.progress_id AND cp.user_id = $1 AND cp.contest_id = $2
	                 AND cpp.problem_id = $3 AND cpp.status <> 'SOLVED'`
	res, err := tx.ExecContext(ctx, entryQuery, userID, contestID, problemID, at)
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.MarkSolved entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.MarkSolved: %w", err)
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	rowQuery := `UPDATE contest_progress
	             SET total_solved = total_solved + 1, total_score = total_score + $3, last_updated = $4
	             WHERE user_id = $1 AND contest_id = $2`
	if _, err := tx.ExecContext(ctx, rowQuery, userID, contestID, points, at); err != nil {
		return false, fmt.Errorf("pgContestRepository.MarkSolved row: %w", err)
	}
	return true, tx.Commit()
}

func (r *pgContestRepository) Leaderboard(ctx context.Context, contestID string, limit int) ([]model.ContestStanding, error) {
	query := `SELECT cp.user_id, u.username, cp.total_solved, cp.total_score, cp.last_updated
	          FROM contest_progress cp
	          JOIN users u ON u.id = cp.user_id
	          WHERE cp.contest_id = $1
	          ORDER BY cp.total_solved DESC, cp.total_score DESC, cp.last_updated ASC
	          LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, contestID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.Leaderboard: %w", err)
	}
	defer rows.Close()

	var standings []model.ContestStanding
	for rows.Next() {
		var s model.ContestStanding
		if err := rows.Scan(&s.UserID, &s.Username, &s.TotalSolved, &s.TotalScore, &s.LastUpdated); err != nil {
			return nil, fmt.Errorf("pgContestRepository.Leaderboard scan: %w", err)
		}
		s.Rank = len(standings) + 1
		standings = append(standings, s)
	}
	return standings, rows.Err()
}
