package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"codearena/internal/common"
)

// Backend status ids. 1 and 2 are non-terminal (queued/running); 3 is
// accepted; anything above 3 is a distinct terminal failure category.
const (
	StatusIDInQueue    = 1
	StatusIDProcessing = 2
	StatusIDAccepted   = 3
)

const resultFields = "token,status_id,status,stdout,stderr,compile_output,time,memory"

// Submission is one execution request: a single test case run of the
// submitted code.
type Submission struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Result is the backend's per-test-case outcome. Output fields are pointers
// because the backend reports them as null until (or unless) they exist.
type Result struct {
	Token         string   `json:"token"`
	StatusID      int      `json:"status_id"`
	Status        *Status  `json:"status,omitempty"`
	Stdout        *string  `json:"stdout,omitempty"`
	Stderr        *string  `json:"stderr,omitempty"`
	CompileOutput *string  `json:"compile_output,omitempty"`
	Time          *string  `json:"time,omitempty"`   // Seconds, reported as a decimal string
	Memory        *float64 `json:"memory,omitempty"` // KB
}

// EffectiveStatusID prefers the flat status_id field and falls back to the
// nested status object, since the backend populates one or the other
// depending on the requested field list.
func (r *Result) EffectiveStatusID() int {
	if r.StatusID != 0 {
		return r.StatusID
	}
	if r.Status != nil {
		return r.Status.ID
	}
	return 0
}

func (r *Result) IsTerminal() bool {
	return r.EffectiveStatusID() > StatusIDProcessing
}

func (r *Result) Description() string {
	if r.Status != nil {
		return r.Status.Description
	}
	return ""
}

// TimeSeconds parses the backend's decimal-string time, defaulting to 0 when
// absent or malformed.
func (r *Result) TimeSeconds() float64 {
	if r.Time == nil {
		return 0
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(*r.Time), 64)
	if err != nil {
		return 0
	}
	return t
}

func (r *Result) MemoryKB() float64 {
	if r.Memory == nil {
		return 0
	}
	return *r.Memory
}

// ClientConfig configures the judge backend client.
type ClientConfig struct {
	BaseURL      string
	AuthToken    string        // Sent as X-Auth-Token when set
	PollInterval time.Duration // Delay between result polls
	MaxWait      time.Duration // Overall judging budget before ErrJudgingTimeout
	HTTPClient   *http.Client
}

// Client talks to the external execution backend. It is constructed once at
// startup and injected into the services that judge code; there is no package
// level instance.
type Client struct {
	baseURL      string
	authToken    string
	pollInterval time.Duration
	maxWait      time.Duration
	httpClient   *http.Client
	log          *zap.SugaredLogger
}

func NewClient(cfg ClientConfig, log *zap.SugaredLogger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 60 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		authToken:    cfg.AuthToken,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		httpClient:   httpClient,
		log:          log,
	}
}

type batchSubmitRequest struct {
	Submissions []Submission `json:"submissions"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type batchResultResponse struct {
	Submissions []Result `json:"submissions"`
}

// SubmitBatch sends one batch of execution requests and returns one tracking
// token per request, in request order. Token order is the only correlation
// between requests and their results, so a short or reordered response is an
// error. The batch call is not retried here; that policy belongs to the
// caller.
func (c *Client) SubmitBatch(ctx context.Context, submissions []Submission) ([]string, error) {
	if len(submissions) == 0 {
		return nil, common.Errorf("empty batch: %w", common.ErrBadRequest)
	}

	body, err := json.Marshal(batchSubmitRequest{Submissions: submissions})
	if err != nil {
		return nil, common.Errorf("failed to marshal batch request: %w", err)
	}

	endpoint := c.baseURL + "/submissions/batch?base64_encoded=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, common.Errorf("failed to build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("X-Auth-Token", c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, common.Errorf("judge batch submit failed: %v: %w", err, common.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, common.Errorf("judge batch submit returned %d: %w", resp.StatusCode, common.ErrServiceUnavailable)
	}
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, common.Errorf("judge rejected batch (%d): %s", resp.StatusCode, string(payload))
	}

	var created []tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, common.Errorf("failed to decode batch response: %v: %w", err, common.ErrServiceUnavailable)
	}
	if len(created) != len(submissions) {
		return nil, common.Errorf("judge returned %d tokens for %d submissions: %w",
			len(created), len(submissions), common.ErrServiceUnavailable)
	}

	tokens := make([]string, len(created))
	for i, t := range created {
		if t.Token == "" {
			return nil, common.Errorf("judge returned empty token at index %d: %w", i, common.ErrServiceUnavailable)
		}
		tokens[i] = t.Token
	}
	return tokens, nil
}

// WaitForResults polls until every token reports a terminal status and returns
// the results in token order. It polls all tokens in a single request per
// iteration at a fixed interval, and gives up with ErrJudgingTimeout once the
// overall wait budget is spent. Cancelling ctx aborts the loop immediately.
func (c *Client) WaitForResults(ctx context.Context, tokens []string) ([]Result, error) {
	if len(tokens) == 0 {
		return nil, common.Errorf("no tokens to poll: %w", common.ErrBadRequest)
	}

	deadline := time.Now().Add(c.maxWait)
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		results, err := c.fetchBatch(ctx, tokens)
		if err != nil {
			// Transient poll failures are retried within the same budget;
			// a backend that stays down is surfaced as a timeout.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warnw("judge result poll failed", "attempt", attempt, "error", err)
		} else if allTerminal(results) {
			return results, nil
		}

		if !time.Now().Add(c.pollInterval).Before(deadline) {
			return nil, common.Errorf("judging incomplete after %s: %w", c.maxWait, common.ErrJudgingTimeout)
		}

		timer.Reset(c.pollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) fetchBatch(ctx context.Context, tokens []string) ([]Result, error) {
	query := url.Values{}
	query.Set("tokens", strings.Join(tokens, ","))
	query.Set("base64_encoded", "false")
	query.Set("fields", resultFields)

	endpoint := c.baseURL + "/submissions/batch?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, common.Errorf("failed to build results request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("X-Auth-Token", c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, common.Errorf("judge results fetch failed: %v: %w", err, common.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.Errorf("judge results fetch returned %d: %w", resp.StatusCode, common.ErrServiceUnavailable)
	}

	var payload batchResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, common.Errorf("failed to decode results response: %v: %w", err, common.ErrServiceUnavailable)
	}
	if len(payload.Submissions) != len(tokens) {
		return nil, common.Errorf("judge returned %d results for %d tokens: %w",
			len(payload.Submissions), len(tokens), common.ErrServiceUnavailable)
	}
	return payload.Submissions, nil
}

func allTerminal(results []Result) bool {
	for i := range results {
		if !results[i].IsTerminal() {
			return false
		}
	}
	return true
}
