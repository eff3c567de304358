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

type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
	ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty) ([]model.Problem, int, error)

	AddTestCases(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error
	GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error)

	AddCodeStubs(ctx context.Context, tx *sql.Tx, problemID string, stubs []model.CodeStub) error
	GetCodeStubsByProblemID(ctx context.Context, problemID string) ([]model.CodeStub, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (id, title, slug, description, difficulty, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, p.ID, p.Title, p.Slug, p.Description, p.Difficulty, p.CreatedByID)
	} else {
		_, err = r.db.ExecContext(ctx, query, p.ID, p.Title, p.Slug, p.Description, p.Difficulty, p.CreatedByID)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT id, title, slug, description, difficulty, created_by, created_at, updated_at
	          FROM problems WHERE id = $1`
	return r.scanProblem(r.db.QueryRowContext(ctx, query, id), "FindProblemByID")
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	query := `SELECT id, title, slug, description, difficulty, created_by, created_at, updated_at
	          FROM problems WHERE slug = $1`
	return r.scanProblem(r.db.QueryRowContext(ctx, query, slug), "FindProblemBySlug")
}

func (r *pgProblemRepository) scanProblem(row *sql.Row, method string) (*model.Problem, error) {
	problem := &model.Problem{}
	err := row.Scan(
		&problem.ID, &problem.Title, &problem.Slug, &problem.Description, &problem.Difficulty,
		&problem.CreatedByID, &problem.CreatedAt, &problem.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.%s: %w", method, err)
	}
	return problem, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty) ([]model.Problem, int, error) {
	countQuery := `SELECT COUNT(*) FROM problems WHERE ($1 = '' OR difficulty = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, string(difficulty)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	query := `SELECT id, title, slug, description, difficulty, created_by, created_at, updated_at
	          FROM problems
	          WHERE ($1 = '' OR difficulty = $1)
	          ORDER BY created_at DESC
	          LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, string(difficulty), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems: %w", err)
	}
	defer rows.Close()

	var problems []model.Problem
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Difficulty,
			&p.CreatedByID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, total, rows.Err()
}

func (r *pgProblemRepository) AddTestCases(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error {
	query := `INSERT INTO problem_test_cases (id, problem_id, input, expected_output, is_hidden, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	for _, tc := range testCases {
		var err error
		if tx != nil {
			_, err = tx.ExecContext(ctx, query, tc.ID, problemID, tc.Input, tc.ExpectedOutput, tc.IsHidden, tc.SortOrder)
		} else {
			_, err = r.db.ExecContext(ctx, query, tc.ID, problemID, tc.Input, tc.ExpectedOutput, tc.IsHidden, tc.SortOrder)
		}
		if err != nil {
			return fmt.Errorf("pgProblemRepository.AddTestCases: %w", err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, input, expected_output, is_hidden, sort_order, created_at
	          FROM problem_test_cases WHERE problem_id = $1 ORDER BY sort_order`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID: %w", err)
	}
	defer rows.Close()

	var testCases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput,
			&tc.IsHidden, &tc.SortOrder, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID scan: %w", err)
		}
		testCases = append(testCases, tc)
	}
	return testCases, rows.Err()
}

func (r *pgProblemRepository) AddCodeStubs(ctx context.Context, tx *sql.Tx, problemID string, stubs []model.CodeStub) error {
	query := `INSERT INTO problem_code_stubs (id, problem_id, language, starter_code, solution_code)
	          VALUES ($1, $2, $3, $4, $5)`
	for _, stub := range stubs {
		var err error
		if tx != nil {
			_, err = tx.ExecContext(ctx, query, stub.ID, problemID, stub.Language, stub.StarterCode, stub.SolutionCode)
		} else {
			_, err = r.db.ExecContext(ctx, query, stub.ID, problemID, stub.Language, stub.StarterCode, stub.SolutionCode)
		}
		if err != nil {
			return fmt.Errorf("pgProblemRepository.AddCodeStubs: %w", err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetCodeStubsByProblemID(ctx context.Context, problemID string) ([]model.CodeStub, error) {
	query := `SELECT id, problem_id, language, starter_code, solution_code
	          FROM problem_code_stubs WHERE problem_id = $1 ORDER BY language`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetCodeStubsByProblemID: %w", err)
	}
	defer rows.Close()

	var stubs []model.CodeStub
	for rows.Next() {
		var s model.CodeStub
		if err := rows.Scan(&s.ID, &s.ProblemID, &s.Language, &s.StarterCode, &s.SolutionCode); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetCodeStubsByProblemID scan: %w", err)
		}
		stubs = append(stubs, s)
	}
	return stubs, rows.Err()
}
