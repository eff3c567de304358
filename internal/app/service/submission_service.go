package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/judge"
)

// SubmissionService owns the judging pipeline: build the test-case batch,
// submit it to the judge backend, wait for every execution to finish,
// aggregate the verdict and apply it to the submission record, the user's
// solved set and (when contest-scoped) the contest progress. Within one
// submission the steps are strictly sequential; separate submissions run as
// independent request-scoped tasks.
type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	userRepo       repository.UserRepository
	contests       *ContestService
	judge          *judge.Client
	log            *zap.SugaredLogger
}

func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	problemRepo repository.ProblemRepository,
	userRepo repository.UserRepository,
	contests *ContestService,
	judgeClient *judge.Client,
	log *zap.SugaredLogger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		problemRepo:    problemRepo,
		userRepo:       userRepo,
		contests:       contests,
		judge:          judgeClient,
		log:            log,
	}
}

type SubmitRequest struct {
	ProblemID string  `json:"problem_id"`
	Language  string  `json:"language"`
	Code      string  `json:"code"`
	ContestID *string `json:"contest_id,omitempty"`
}

type SubmitResponse struct {
	Success         bool                   `json:"success"`
	SubmissionID    string                 `json:"submission_id"`
	Status          model.SubmissionStatus `json:"status"`
	Runtime         float64                `json:"runtime"`
	Memory          float64                `json:"memory"`
	TestcasesPassed int                    `json:"testcases_passed"`
	TotalTestcases  int                    `json:"total_testcases"`
	ErrorMessage    *string                `json:"error_message,omitempty"`
	ProblemID       string                 `json:"problem_id"`
	ContestID       *string                `json:"contest_id,omitempty"`
}

type RunRequest struct {
	ProblemID string `json:"problem_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

// RunResponse carries the dry-run outcome against the visible test cases.
// Nothing is persisted for a run.
type RunResponse struct {
	Success      bool                   `json:"success"`
	Status       model.SubmissionStatus `json:"status"`
	TestCases    []judge.Result         `json:"test_cases"`
	Runtime      float64                `json:"runtime"`
	Memory       float64                `json:"memory"`
	ErrorMessage *string                `json:"error_message,omitempty"`
}

// Submit judges the code against the problem's full test-case set (visible
// and hidden) and persists the outcome. Validation failures before the
// pending record exists are returned as errors with no side effects;
// infrastructure failures after it exists finalize the submission with a
// terminal server_error/timeout status so it is never left pending.
func (s *SubmissionService) Submit(ctx context.Context, userID string, req SubmitRequest) (*SubmitResponse, error) {
	if userID == "" || req.ProblemID == "" || req.Language == "" || req.Code == "" {
		return nil, common.Errorf("user, problem, language and code are required: %w", common.ErrBadRequest)
	}
	languageID, err := judge.ResolveLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}
	testCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, err
	}
	if len(testCases) == 0 {
		return nil, common.Errorf("problem %s has no test cases: %w", problem.ID, common.ErrInternalServer)
	}

	submission := &model.Submission{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProblemID:      problem.ID,
		Language:       req.Language,
		Code:           req.Code,
		Status:         model.StatusPending,
		TotalTestcases: len(testCases),
		ContestID:      req.ContestID,
	}
	if err := s.submissionRepo.Create(ctx, submission); err != nil {
		return nil, err
	}

	// Contest bookkeeping is best-effort: a tracking failure never blocks or
	// hides the verdict.
	if req.ContestID != nil {
		if err := s.contests.RecordAttempt(ctx, userID, *req.ContestID, problem.ID); err != nil {
			s.log.Warnw("contest attempt tracking failed",
				"submission_id", submission.ID, "contest_id", *req.ContestID, "error", err)
		}
	}

	batch := buildBatch(req.Code, languageID, testCases)
	tokens, err := s.judge.SubmitBatch(ctx, batch)
	if err != nil {
		s.log.Errorw("judge batch submit failed", "submission_id", submission.ID, "error", err)
		return s.finalizeFailure(ctx, submission, model.StatusServerError,
			"Submission could not be sent to the judge. Please try again."), nil
	}

	results, err := s.judge.WaitForResults(ctx, tokens)
	if err != nil {
		status := model.StatusServerError
		message := "Judging failed before a verdict was reached."
		if errors.Is(err, common.ErrJudgingTimeout) {
			status = model.StatusTimeout
			message = "Judging did not complete in time. Please try again."
		}
		s.log.Errorw("judge polling failed", "submission_id", submission.ID, "error", err)
		return s.finalizeFailure(ctx, submission, status, message), nil
	}

	verdict := judge.Aggregate(results)
	s.applyVerdict(ctx, submission, verdict)

	return &SubmitResponse{
		Success:         verdict.Status == model.StatusAccepted,
		SubmissionID:    submission.ID,
		Status:          verdict.Status,
		Runtime:         verdict.Runtime,
		Memory:          verdict.Memory,
		TestcasesPassed: verdict.TestcasesPassed,
		TotalTestcases:  verdict.TotalTestcases,
		ErrorMessage:    verdict.ErrorMessage,
		ProblemID:       problem.ID,
		ContestID:       req.ContestID,
	}, nil
}

// Run judges the code against the visible test cases only. It persists
// nothing and never touches the solved set or contest progress, even when
// every test case passes.
func (s *SubmissionService) Run(ctx context.Context, userID string, req RunRequest) (*RunResponse, error) {
	if userID == "" || req.ProblemID == "" || req.Language == "" || req.Code == "" {
		return nil, common.Errorf("user, problem, language and code are required: %w", common.ErrBadRequest)
	}
	languageID, err := judge.ResolveLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}
	testCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, err
	}
	visible := make([]model.TestCase, 0, len(testCases))
	for _, tc := range testCases {
		if !tc.IsHidden {
			visible = append(visible, tc)
		}
	}
	if len(visible) == 0 {
		return nil, common.Errorf("problem %s has no visible test cases: %w", problem.ID, common.ErrInternalServer)
	}

	tokens, err := s.judge.SubmitBatch(ctx, buildBatch(req.Code, languageID, visible))
	if err != nil {
		return nil, err
	}
	results, err := s.judge.WaitForResults(ctx, tokens)
	if err != nil {
		return nil, err
	}

	verdict := judge.Aggregate(results)
	return &RunResponse{
		Success:      verdict.Status == model.StatusAccepted,
		Status:       verdict.Status,
		TestCases:    results,
		Runtime:      verdict.Runtime,
		Memory:       verdict.Memory,
		ErrorMessage: verdict.ErrorMessage,
	}, nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, userID, submissionID string, isAdmin bool) (*model.Submission, error) {
	sub, err := s.submissionRepo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID && !isAdmin {
		return nil, common.ErrForbidden
	}
	return sub, nil
}

func (s *SubmissionService) ListMySubmissions(ctx context.Context, userID string, limit, offset int) ([]model.Submission, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.submissionRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *SubmissionService) ListForProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.submissionRepo.ListForUserProblem(ctx, userID, problemID, limit, offset)
}

// applyVerdict writes the terminal state and updates dependent records. The
// guarded Finalize is the exactly-once gate: if it reports the submission is
// no longer pending, the solved set and contest progress are left alone.
func (s *SubmissionService) applyVerdict(ctx context.Context, submission *model.Submission, verdict judge.Verdict) {
	// Finalization must survive a client disconnect; the verdict already
	// exists and may not be dropped.
	ctx = context.WithoutCancel(ctx)

	if err := s.submissionRepo.Finalize(ctx, submission.ID, verdict.Status,
		verdict.Runtime, verdict.Memory, verdict.TestcasesPassed, verdict.ErrorMessage); err != nil {
		if errors.Is(err, common.ErrConflict) {
			s.log.Warnw("submission already finalized, skipping dependent updates",
				"submission_id", submission.ID)
			return
		}
		s.log.Errorw("failed to finalize submission", "submission_id", submission.ID, "error", err)
		return
	}
	submission.Status = verdict.Status

	if verdict.Status != model.StatusAccepted {
		return
	}

	added, err := s.userRepo.AddSolvedProblem(ctx, submission.UserID, submission.ProblemID, submission.ID)
	if err != nil {
		s.log.Warnw("failed to mark problem solved",
			"submission_id", submission.ID, "user_id", submission.UserID, "error", err)
	} else if added {
		s.log.Infow("problem solved",
			"user_id", submission.UserID, "problem_id", submission.ProblemID)
	}

	if submission.ContestID != nil {
		if err := s.contests.RecordSolved(ctx, submission.UserID, *submission.ContestID, submission.ProblemID); err != nil {
			s.log.Warnw("contest solve tracking failed",
				"submission_id", submission.ID, "contest_id", *submission.ContestID, "error", err)
		}
	}
}

// finalizeFailure closes out a pending submission that never reached a
// verdict with a terminal failure status, and mirrors that status into the
// caller response.
func (s *SubmissionService) finalizeFailure(ctx context.Context, submission *model.Submission,
	status model.SubmissionStatus, message string) *SubmitResponse {
	s.applyVerdict(ctx, submission, judge.Verdict{
		Status:         status,
		TotalTestcases: submission.TotalTestcases,
		ErrorMessage:   &message,
	})
	return &SubmitResponse{
		Success:        false,
		SubmissionID:   submission.ID,
		Status:         status,
		TotalTestcases: submission.TotalTestcases,
		ErrorMessage:   &message,
		ProblemID:      submission.ProblemID,
		ContestID:      submission.ContestID,
	}
}

func buildBatch(code string, languageID int, testCases []model.TestCase) []judge.Submission {
	batch := make([]judge.Submission, 0, len(testCases))
	for _, tc := range testCases {
		batch = append(batch, judge.Submission{
			SourceCode:     code,
			LanguageID:     languageID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		})
	}
	return batch
}
