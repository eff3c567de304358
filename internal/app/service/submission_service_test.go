package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/judge"
	"codearena/internal/platform/logger"
)

// caseOutcome scripts the judged result of one test case by its position in
// the submitted batch.
type caseOutcome struct {
	statusID      int
	description   string
	stderr        string
	compileOutput string
	time          string
	memory        float64
}

func acceptedOutcome() caseOutcome {
	return caseOutcome{statusID: judge.StatusIDAccepted, description: "Accepted", time: "0.010", memory: 1024}
}

// judgeBackend is an in-process execution backend whose verdicts are scripted
// per test-case index. Results with neverDone stay in "Processing" forever.
type judgeBackend struct {
	mu        sync.Mutex
	outcomes  []caseOutcome
	neverDone bool
	batches   [][]judge.Submission
}

func (b *judgeBackend) lastBatchSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.batches) == 0 {
		return 0
	}
	return len(b.batches[len(b.batches)-1])
}

func (b *judgeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/submissions/batch", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		switch r.Method {
		case http.MethodPost:
			var req struct {
				Submissions []judge.Submission `json:"submissions"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			b.batches = append(b.batches, req.Submissions)
			tokens := make([]map[string]string, len(req.Submissions))
			for i := range req.Submissions {
				tokens[i] = map[string]string{"token": fmt.Sprintf("case-%d", i)}
			}
			json.NewEncoder(w).Encode(tokens)

		case http.MethodGet:
			tokens := strings.Split(r.URL.Query().Get("tokens"), ",")
			results := make([]judge.Result, len(tokens))
			for i, tok := range tokens {
				idx, _ := strconv.Atoi(strings.TrimPrefix(tok, "case-"))
				outcome := acceptedOutcome()
				if idx < len(b.outcomes) {
					outcome = b.outcomes[idx]
				}
				if b.neverDone {
					results[i] = judge.Result{Token: tok, StatusID: judge.StatusIDProcessing,
						Status: &judge.Status{ID: judge.StatusIDProcessing, Description: "Processing"}}
					continue
				}
				res := judge.Result{
					Token:    tok,
					StatusID: outcome.statusID,
					Status:   &judge.Status{ID: outcome.statusID, Description: outcome.description},
				}
				if outcome.time != "" {
					t := outcome.time
					res.Time = &t
				}
				if outcome.memory > 0 {
					m := outcome.memory
					res.Memory = &m
				}
				if outcome.stderr != "" {
					s := outcome.stderr
					res.Stderr = &s
				}
				if outcome.compileOutput != "" {
					c := outcome.compileOutput
					res.CompileOutput = &c
				}
				results[i] = res
			}
			json.NewEncoder(w).Encode(map[string][]judge.Result{"submissions": results})
		}
	})
	return mux
}

type serviceFixture struct {
	svc         *SubmissionService
	contests    *ContestService
	problems    *memProblemRepo
	users       *memUserRepo
	submissions *memSubmissionRepo
	contestRepo *memContestRepo
	backend     *judgeBackend
	server      *httptest.Server
}

func newFixture(t *testing.T, backend *judgeBackend, maxWait time.Duration) *serviceFixture {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	log := logger.NewNop()
	problems := newMemProblemRepo()
	users := newMemUserRepo()
	submissions := newMemSubmissionRepo()
	contestRepo := newMemContestRepo()
	contests := NewContestService(contestRepo, nil, time.Minute, 100, log)

	client := judge.NewClient(judge.ClientConfig{
		BaseURL:      srv.URL,
		PollInterval: 5 * time.Millisecond,
		MaxWait:      maxWait,
	}, log)

	return &serviceFixture{
		svc:         NewSubmissionService(submissions, problems, users, contests, client, log),
		contests:    contests,
		problems:    problems,
		users:       users,
		submissions: submissions,
		contestRepo: contestRepo,
		backend:     backend,
		server:      srv,
	}
}

func (f *serviceFixture) seedProblem(t *testing.T, id string, visible, hidden int) {
	t.Helper()
	ctx := context.Background()
	if err := f.problems.CreateProblem(ctx, nil, &model.Problem{
		ID: id, Title: "Two Sum", Slug: "two-sum", Difficulty: model.DifficultyEasy,
	}); err != nil {
		t.Fatalf("seed problem: %v", err)
	}
	var cases []model.TestCase
	for i := 0; i < visible+hidden; i++ {
		cases = append(cases, model.TestCase{
			ID:             fmt.Sprintf("tc-%d", i),
			ProblemID:      id,
			Input:          fmt.Sprintf("in-%d", i),
			ExpectedOutput: fmt.Sprintf("out-%d", i),
			IsHidden:       i >= visible,
			SortOrder:      i,
		})
	}
	if err := f.problems.AddTestCases(ctx, nil, id, cases); err != nil {
		t.Fatalf("seed test cases: %v", err)
	}
}

func TestSubmitAcceptedUpdatesSolvedSetOnce(t *testing.T) {
	f := newFixture(t, &judgeBackend{}, time.Second)
	f.seedProblem(t, "prob-1", 2, 1)
	ctx := context.Background()

	req := SubmitRequest{ProblemID: "prob-1", Language: "go", Code: "package main"}
	resp, err := f.svc.Submit(ctx, "user-1", req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !resp.Success || resp.Status != model.StatusAccepted {
		t.Fatalf("response = %+v, want accepted success", resp)
	}
	if resp.TestcasesPassed != 3 || resp.TotalTestcases != 3 {
		t.Errorf("passed/total = %d/%d, want 3/3 (hidden cases judged too)", resp.TestcasesPassed, resp.TotalTestcases)
	}
	if f.backend.lastBatchSize() != 3 {
		t.Errorf("batch size = %d, want 3", f.backend.lastBatchSize())
	}

	sub, err := f.submissions.FindByID(ctx, resp.SubmissionID)
	if err != nil {
		t.Fatalf("submission not persisted: %v", err)
	}
	if sub.Status != model.StatusAccepted {
		t.Errorf("persisted status = %q, want accepted", sub.Status)
	}

	solved, _ := f.users.ListSolvedProblems(ctx, "user-1")
	if len(solved) != 1 || solved[0].SubmissionID != resp.SubmissionID {
		t.Fatalf("solved set = %+v, want one entry for the accepted submission", solved)
	}

	// A second accepted submission is recorded but must not duplicate the
	// solved entry or replace its original submission id.
	resp2, err := f.svc.Submit(ctx, "user-1", req)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if resp2.Status != model.StatusAccepted {
		t.Fatalf("second submit status = %q, want accepted", resp2.Status)
	}
	solved, _ = f.users.ListSolvedProblems(ctx, "user-1")
	if len(solved) != 1 {
		t.Fatalf("solved set has %d entries after re-solve, want 1", len(solved))
	}
	if solved[0].SubmissionID != resp.SubmissionID {
		t.Errorf("solved entry points at %q, want the first accepted submission %q",
			solved[0].SubmissionID, resp.SubmissionID)
	}
	if _, total, _ := f.submissions.ListByUser(ctx, "user-1", 20, 0); total != 2 {
		t.Errorf("submission count = %d, want 2 (every attempt is kept)", total)
	}
}

func TestSubmitRuntimeErrorVerdict(t *testing.T) {
	backend := &judgeBackend{outcomes: []caseOutcome{
		acceptedOutcome(),
		{statusID: 11, description: "Runtime Error (NZEC)", stderr: "panic: index out of range"},
		acceptedOutcome(),
	}}
	f := newFixture(t, backend, time.Second)
	f.seedProblem(t, "prob-1", 3, 0)
	ctx := context.Background()

	resp, err := f.svc.Submit(ctx, "user-1", SubmitRequest{ProblemID: "prob-1", Language: "python", Code: "print(x)"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Success || resp.Status != model.StatusRuntimeError {
		t.Fatalf("response = %+v, want runtime_error failure", resp)
	}
	if resp.TestcasesPassed != 2 {
		t.Errorf("passed = %d, want 2", resp.TestcasesPassed)
	}
	if resp.ErrorMessage == nil || !strings.HasPrefix(*resp.ErrorMessage, "Runtime Error:\n") {
		t.Errorf("error message = %v, want stderr with Runtime Error prefix", resp.ErrorMessage)
	}
	if solved, _ := f.users.ListSolvedProblems(ctx, "user-1"); len(solved) != 0 {
		t.Errorf("solved set = %+v, want empty after a failed submission", solved)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, &judgeBackend{}, time.Second)
	f.seedProblem(t, "prob-1", 1, 0)
	ctx := context.Background()

	cases := []struct {
		name string
		req  SubmitRequest
		want error
	}{
		{"missing code", SubmitRequest{ProblemID: "prob-1", Language: "go"}, common.ErrBadRequest},
		{"unsupported language", SubmitRequest{ProblemID: "prob-1", Language: "cobol", Code: "x"}, common.ErrUnsupportedLanguage},
		{"unknown problem", SubmitRequest{ProblemID: "nope", Language: "go", Code: "x"}, common.ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := f.svc.Submit(ctx, "user-1", tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: error = %v, want %v", tc.name, err, tc.want)
		}
	}
	// Rejected requests must leave no trace.
	if _, total, _ := f.submissions.ListByUser(ctx, "user-1", 20, 0); total != 0 {
		t.Errorf("submission count = %d after rejected requests, want 0", total)
	}
}

func TestRunJudgesVisibleCasesAndPersistsNothing(t *testing.T) {
	f := newFixture(t, &judgeBackend{}, time.Second)
	f.seedProblem(t, "prob-1", 2, 3)
	ctx := context.Background()

	resp, err := f.svc.Run(ctx, "user-1", RunRequest{ProblemID: "prob-1", Language: "go", Code: "package main"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resp.Success || resp.Status != model.StatusAccepted {
		t.Fatalf("response = %+v, want accepted", resp)
	}
	if len(resp.TestCases) != 2 {
		t.Errorf("got %d per-case results, want 2 (visible only)", len(resp.TestCases))
	}
	if f.backend.lastBatchSize() != 2 {
		t.Errorf("batch size = %d, want 2 (hidden cases never sent)", f.backend.lastBatchSize())
	}
	if _, total, _ := f.submissions.ListByUser(ctx, "user-1", 20, 0); total != 0 {
		t.Errorf("run persisted %d submissions, want 0", total)
	}
	if solved, _ := f.users.ListSolvedProblems(ctx, "user-1"); len(solved) != 0 {
		t.Errorf("run updated the solved set: %+v", solved)
	}
}

func TestSubmitJudgeUnavailable(t *testing.T) {
	f := newFixture(t, &judgeBackend{}, time.Second)
	f.seedProblem(t, "prob-1", 1, 0)
	f.server.Close() // Backend goes away before the batch is sent
	ctx := context.Background()

	resp, err := f.svc.Submit(ctx, "user-1", SubmitRequest{ProblemID: "prob-1", Language: "go", Code: "x"})
	if err != nil {
		t.Fatalf("Submit returned error %v, want a failed response instead", err)
	}
	if resp.Success || resp.Status != model.StatusServerError {
		t.Fatalf("response = %+v, want server_error", resp)
	}

	sub, err := f.submissions.FindByID(ctx, resp.SubmissionID)
	if err != nil {
		t.Fatalf("submission not persisted: %v", err)
	}
	if sub.Status != model.StatusServerError {
		t.Errorf("persisted status = %q, want server_error (never left pending)", sub.Status)
	}
}

func TestSubmitJudgingTimeout(t *testing.T) {
	f := newFixture(t, &judgeBackend{neverDone: true}, 30*time.Millisecond)
	f.seedProblem(t, "prob-1", 1, 0)
	ctx := context.Background()

	resp, err := f.svc.Submit(ctx, "user-1", SubmitRequest{ProblemID: "prob-1", Language: "go", Code: "x"})
	if err != nil {
		t.Fatalf("Submit returned error %v, want a failed response instead", err)
	}
	if resp.Success || resp.Status != model.StatusTimeout {
		t.Fatalf("response = %+v, want timeout", resp)
	}
	sub, _ := f.submissions.FindByID(ctx, resp.SubmissionID)
	if sub.Status != model.StatusTimeout {
		t.Errorf("persisted status = %q, want timeout", sub.Status)
	}
}

func TestSubmitContestScoredExactlyOnce(t *testing.T) {
	f := newFixture(t, &judgeBackend{}, time.Second)
	f.seedProblem(t, "prob-1", 1, 0)
	ctx := context.Background()

	if err := f.contestRepo.CreateContest(ctx, &model.Contest{
		ID: "contest-1", Title: "Weekly 1", Slug: "weekly-1",
		Problems: []model.ContestProblem{{ContestID: "contest-1", ProblemID: "prob-1", Points: 100}},
	}); err != nil {
		t.Fatalf("seed contest: %v", err)
	}

	contestID := "contest-1"
	req := SubmitRequest{ProblemID: "prob-1", Language: "go", Code: "x", ContestID: &contestID}
	for i := 0; i < 2; i++ {
		resp, err := f.svc.Submit(ctx, "user-1", req)
		if err != nil {
			t.Fatalf("Submit #%d: %v", i+1, err)
		}
		if resp.Status != model.StatusAccepted {
			t.Fatalf("Submit #%d status = %q, want accepted", i+1, resp.Status)
		}
	}

	progress, err := f.contests.GetProgress(ctx, "user-1", "contest-1")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if progress.TotalSolved != 1 || progress.TotalScore != 100 {
		t.Errorf("solved/score = %d/%d, want 1/100 (repeat solve credits nothing)",
			progress.TotalSolved, progress.TotalScore)
	}
	entry := progress.Problem("prob-1")
	if entry == nil || entry.Status != model.ProgressSolved {
		t.Fatalf("problem entry = %+v, want SOLVED", entry)
	}
	if entry.AttemptCount != 2 {
		t.Errorf("attempt count = %d, want 2 (every submission counts)", entry.AttemptCount)
	}
}
