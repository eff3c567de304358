package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/judge"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	userRepo    repository.UserRepository
	db          *sql.DB // For transactions
	log         *zap.SugaredLogger
}

func NewProblemService(
	problemRepo repository.ProblemRepository,
	userRepo repository.UserRepository,
	db *sql.DB,
	log *zap.SugaredLogger,
) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		userRepo:    userRepo,
		db:          db,
		log:         log,
	}
}

type CreateProblemRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Difficulty  model.ProblemDifficulty `json:"difficulty"`
	TestCases   []CreateTestCaseInput   `json:"test_cases"`
	CodeStubs   []CreateCodeStubInput   `json:"code_stubs"`
}

type CreateTestCaseInput struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
}

type CreateCodeStubInput struct {
	Language     string  `json:"language"`
	StarterCode  string  `json:"starter_code"`
	SolutionCode *string `json:"solution_code,omitempty"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, createdBy string, req CreateProblemRequest) (*model.Problem, error) {
	if req.Title == "" || req.Description == "" || len(req.TestCases) == 0 {
		return nil, common.Errorf("title, description and test cases are required: %w", common.ErrBadRequest)
	}
	switch req.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return nil, common.Errorf("invalid difficulty %q: %w", req.Difficulty, common.ErrBadRequest)
	}
	for _, stub := range req.CodeStubs {
		if _, err := judge.ResolveLanguage(stub.Language); err != nil {
			return nil, err
		}
	}

	problem := &model.Problem{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Slug:        slug.Make(req.Title),
		Description: req.Description,
		Difficulty:  req.Difficulty,
		CreatedByID: &createdBy,
	}

	testCases := make([]model.TestCase, 0, len(req.TestCases))
	for i, tc := range req.TestCases {
		testCases = append(testCases, model.TestCase{
			ID:             uuid.NewString(),
			ProblemID:      problem.ID,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			IsHidden:       tc.IsHidden,
			SortOrder:      i,
		})
	}
	stubs := make([]model.CodeStub, 0, len(req.CodeStubs))
	for _, st := range req.CodeStubs {
		stubs = append(stubs, model.CodeStub{
			ID:           uuid.NewString(),
			ProblemID:    problem.ID,
			Language:     st.Language,
			StarterCode:  st.StarterCode,
			SolutionCode: st.SolutionCode,
		})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.CreateProblem(ctx, tx, problem); err != nil {
		return nil, err
	}
	if err := s.problemRepo.AddTestCases(ctx, tx, problem.ID, testCases); err != nil {
		return nil, err
	}
	if len(stubs) > 0 {
		if err := s.problemRepo.AddCodeStubs(ctx, tx, problem.ID, stubs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	problem.TestCases = testCases
	problem.CodeStubs = stubs
	s.log.Infow("problem created", "problem_id", problem.ID, "slug", problem.Slug)
	return problem, nil
}

// GetProblemBySlug returns the problem with its test cases and code stubs.
// Non-admin callers only see visible test cases and never see solution code.
func (s *ProblemService) GetProblemBySlug(ctx context.Context, slugStr string, isAdmin bool) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slugStr)
	if err != nil {
		return nil, err
	}
	return s.attachDetails(ctx, problem, isAdmin)
}

func (s *ProblemService) GetProblemByID(ctx context.Context, id string, isAdmin bool) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.attachDetails(ctx, problem, isAdmin)
}

func (s *ProblemService) attachDetails(ctx context.Context, problem *model.Problem, isAdmin bool) (*model.Problem, error) {
	testCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, err
	}
	stubs, err := s.problemRepo.GetCodeStubsByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, err
	}

	if isAdmin {
		problem.TestCases = testCases
		problem.CodeStubs = stubs
		return problem, nil
	}

	for _, tc := range testCases {
		if !tc.IsHidden {
			problem.TestCases = append(problem.TestCases, tc)
		}
	}
	for _, st := range stubs {
		st.SolutionCode = nil
		problem.CodeStubs = append(problem.CodeStubs, st)
	}
	return problem, nil
}

func (s *ProblemService) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty) ([]model.Problem, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.problemRepo.ListProblems(ctx, limit, offset, difficulty)
}

// ListSolvedProblems exposes the user's solved set for profile views.
func (s *ProblemService) ListSolvedProblems(ctx context.Context, userID string) ([]model.SolvedProblem, error) {
	return s.userRepo.ListSolvedProblems(ctx, userID)
}
