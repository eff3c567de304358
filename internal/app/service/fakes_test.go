package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
)

// In-memory repository fakes. They reproduce the storage-layer guarantees the
// services depend on (idempotent solved-set adds, pending-only finalization,
// monotonic progress transitions) without a live database.

type memProblemRepo struct {
	mu        sync.Mutex
	problems  map[string]*model.Problem
	testCases map[string][]model.TestCase
	stubs     map[string][]model.CodeStub
}

func newMemProblemRepo() *memProblemRepo {
	return &memProblemRepo{
		problems:  make(map[string]*model.Problem),
		testCases: make(map[string][]model.TestCase),
		stubs:     make(map[string][]model.CodeStub),
	}
}

func (r *memProblemRepo) CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *problem
	r.problems[p.ID] = &p
	return nil
}

func (r *memProblemRepo) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProblemRepo) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.problems {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memProblemRepo) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty) ([]model.Problem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Problem
	for _, p := range r.problems {
		if difficulty == "" || p.Difficulty == difficulty {
			out = append(out, *p)
		}
	}
	return out, len(out), nil
}

func (r *memProblemRepo) AddTestCases(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.testCases[problemID] = append(r.testCases[problemID], testCases...)
	return nil
}

func (r *memProblemRepo) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TestCase(nil), r.testCases[problemID]...), nil
}

func (r *memProblemRepo) AddCodeStubs(ctx context.Context, tx *sql.Tx, problemID string, stubs []model.CodeStub) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stubs[problemID] = append(r.stubs[problemID], stubs...)
	return nil
}

func (r *memProblemRepo) GetCodeStubsByProblemID(ctx context.Context, problemID string) ([]model.CodeStub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.CodeStub(nil), r.stubs[problemID]...), nil
}

type memUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	solved map[string]map[string]model.SolvedProblem // userID -> problemID -> entry
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:  make(map[string]*model.User),
		solved: make(map[string]map[string]model.SolvedProblem),
	}
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := *user
	r.users[u.ID] = &u
	return nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) AddSolvedProblem(ctx context.Context, userID, problemID, submissionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.solved[userID]
	if !ok {
		set = make(map[string]model.SolvedProblem)
		r.solved[userID] = set
	}
	if _, exists := set[problemID]; exists {
		return false, nil
	}
	set[problemID] = model.SolvedProblem{
		ProblemID:    problemID,
		SubmissionID: submissionID,
		SolvedAt:     time.Now().UTC(),
	}
	return true, nil
}

func (r *memUserRepo) ListSolvedProblems(ctx context.Context, userID string) ([]model.SolvedProblem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SolvedProblem
	for _, sp := range r.solved[userID] {
		out = append(out, sp)
	}
	return out, nil
}

func (r *memUserRepo) CountSolvedProblems(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.solved[userID]), nil
}

type memSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[string]*model.Submission
}

func newMemSubmissionRepo() *memSubmissionRepo {
	return &memSubmissionRepo{submissions: make(map[string]*model.Submission)}
}

func (r *memSubmissionRepo) Create(ctx context.Context, sub *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	r.submissions[cp.ID] = &cp
	return nil
}

func (r *memSubmissionRepo) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.submissions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *memSubmissionRepo) Finalize(ctx context.Context, id string, status model.SubmissionStatus,
	runtime, memory float64, testcasesPassed int, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.submissions[id]
	if !ok {
		return common.ErrNotFound
	}
	if sub.Status != model.StatusPending {
		return common.ErrConflict
	}
	sub.Status = status
	sub.Runtime = runtime
	sub.Memory = memory
	sub.TestcasesPassed = testcasesPassed
	sub.ErrorMessage = errorMessage
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memSubmissionRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Submission
	for _, sub := range r.submissions {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, len(out), nil
}

func (r *memSubmissionRepo) ListForUserProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Submission
	for _, sub := range r.submissions {
		if sub.UserID == userID && sub.ProblemID == problemID {
			out = append(out, *sub)
		}
	}
	return out, len(out), nil
}

type memContestRepo struct {
	mu       sync.Mutex
	contests map[string]*model.Contest
	progress map[string]*model.ContestProgress // userID + "/" + contestID
}

func newMemContestRepo() *memContestRepo {
	return &memContestRepo{
		contests: make(map[string]*model.Contest),
		progress: make(map[string]*model.ContestProgress),
	}
}

func progressKey(userID, contestID string) string {
	return userID + "/" + contestID
}

func (r *memContestRepo) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memContestRepo) ListContests(ctx context.Context, limit, offset int) ([]model.Contest, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Contest
	for _, c := range r.contests {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (r *memContestRepo) CreateContest(ctx context.Context, contest *model.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *contest
	r.contests[cp.ID] = &cp
	return nil
}

func (r *memContestRepo) GetProgress(ctx context.Context, userID, contestID string) (*model.ContestProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[progressKey(userID, contestID)]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	cp.Problems = append([]model.ProblemProgress(nil), p.Problems...)
	return &cp, nil
}

func (r *memContestRepo) CreateProgress(ctx context.Context, progress *model.ContestProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := progressKey(progress.UserID, progress.ContestID)
	if _, exists := r.progress[key]; exists {
		return common.ErrConflict
	}
	cp := *progress
	cp.Problems = append([]model.ProblemProgress(nil), progress.Problems...)
	r.progress[key] = &cp
	return nil
}

func (r *memContestRepo) MarkVisited(ctx context.Context, userID, contestID, problemID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entry(userID, contestID, problemID)
	if entry == nil || entry.Status == model.ProgressSolved {
		return nil
	}
	entry.Status = model.ProgressAttempted
	if entry.VisitedAt == nil {
		entry.VisitedAt = &at
	}
	return nil
}

func (r *memContestRepo) IncrementAttempt(ctx context.Context, userID, contestID, problemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry := r.entry(userID, contestID, problemID); entry != nil {
		entry.AttemptCount++
	}
	return nil
}

func (r *memContestRepo) MarkSolved(ctx context.Context, userID, contestID, problemID string, points int, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entry(userID, contestID, problemID)
	if entry == nil || entry.Status == model.ProgressSolved {
		return false, nil
	}
	entry.Status = model.ProgressSolved
	entry.SolvedAt = &at
	p := r.progress[progressKey(userID, contestID)]
	p.TotalSolved++
	p.TotalScore += points
	p.LastUpdated = at
	return true, nil
}

func (r *memContestRepo) Leaderboard(ctx context.Context, contestID string, limit int) ([]model.ContestStanding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var standings []model.ContestStanding
	for _, p := range r.progress {
		if p.ContestID != contestID {
			continue
		}
		standings = append(standings, model.ContestStanding{
			UserID:      p.UserID,
			Username:    p.UserID,
			TotalSolved: p.TotalSolved,
			TotalScore:  p.TotalScore,
			LastUpdated: p.LastUpdated,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.TotalSolved != b.TotalSolved {
			return a.TotalSolved > b.TotalSolved
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.LastUpdated.Before(b.LastUpdated)
	})
	if len(standings) > limit {
		standings = standings[:limit]
	}
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings, nil
}

// entry must be called with r.mu held.
func (r *memContestRepo) entry(userID, contestID, problemID string) *model.ProblemProgress {
	p, ok := r.progress[progressKey(userID, contestID)]
	if !ok {
		return nil
	}
	for i := range p.Problems {
		if p.Problems[i].ProblemID == problemID {
			return &p.Problems[i]
		}
	}
	return nil
}
