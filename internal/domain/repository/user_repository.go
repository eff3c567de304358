package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"codearena/internal/common"
	"codearena/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)

	// AddSolvedProblem inserts the problem into the user's solved set. The add
	// is idempotent at the storage layer: re-solving an already-solved problem
	// is a no-op and reports added=false.
	AddSolvedProblem(ctx context.Context, userID, problemID, submissionID string) (added bool, err error)
	ListSolvedProblems(ctx context.Context, userID string) ([]model.SolvedProblem, error)
	CountSolvedProblems(ctx context.Context, userID string) (int, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password, role)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.HashedPassword, user.Role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, username, email, hashed_password, role, created_at, updated_at
	          FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email), "FindByEmail")
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT id, username, email, hashed_password, role, created_at, updated_at
	          FROM users WHERE username = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username), "FindByUsername")
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, username, email, hashed_password, role, created_at, updated_at
	          FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id), "FindByID")
}

func (r *pgUserRepository) scanUser(row *sql.Row, method string) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", method, err)
	}
	return user, nil
}

func (r *pgUserRepository) AddSolvedProblem(ctx context.Context, userID, problemID, submissionID string) (bool, error) {
	// ON CONFLICT DO NOTHING makes the set-add atomic; concurrent finalize
	// calls for the same user/problem cannot produce a duplicate entry.
	query := `INSERT INTO user_solved_problems (user_id, problem_id, submission_id)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (user_id, problem_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, userID, problemID, submissionID)
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.AddSolvedProblem: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.AddSolvedProblem: %w", err)
	}
	return affected == 1, nil
}

func (r *pgUserRepository) ListSolvedProblems(ctx context.Context, userID string) ([]model.SolvedProblem, error) {
	query := `SELECT problem_id, submission_id, solved_at
	          FROM user_solved_problems WHERE user_id = $1 ORDER BY solved_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ListSolvedProblems: %w", err)
	}
	defer rows.Close()

	var solved []model.SolvedProblem
	for rows.Next() {
		var sp model.SolvedProblem
		if err := rows.Scan(&sp.ProblemID, &sp.SubmissionID, &sp.SolvedAt); err != nil {
			return nil, fmt.Errorf("pgUserRepository.ListSolvedProblems: %w", err)
		}
		solved = append(solved, sp)
	}
	return solved, rows.Err()
}

func (r *pgUserRepository) CountSolvedProblems(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM user_solved_problems WHERE user_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgUserRepository.CountSolvedProblems: %w", err)
	}
	return count, nil
}
