// Package remote implements the correction, gapfilling and optimization
// collaborators against a JSON-over-HTTP solver service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

const (
	pathCorrect  = "/v1/correct"
	pathGapfill  = "/v1/gapfill"
	pathOptimize = "/v1/optimize"

	collaboratorName = "solver-service"
	maxErrorBody     = 4096
)

var (
	_ collab.Corrector = (*Client)(nil)
	_ collab.Gapfiller = (*Client)(nil)
	_ collab.Solver    = (*Client)(nil)
)

// Config holds remote client configuration.
type Config struct {
	// BaseURL of the solver service, e.g. http://localhost:8090
	BaseURL string

	// Timeout bounds a single HTTP exchange (default: 10 minutes; gapfilling is slow)
	Timeout time.Duration

	// RequestsPerSecond caps the outgoing call rate (default: 5)
	RequestsPerSecond float64

	// Burst is the limiter bucket size (default: 2)
	Burst int

	Breaker collab.BreakerConfig
}

// Client talks to the solver service. All calls pass through a rate limiter
// and a circuit breaker.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *collab.Breaker
	logger  *zap.Logger
}

// New creates a Client. Zero config values take defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = collaboratorName
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: collab.NewBreaker(cfg.Breaker, logger, func(err error) bool {
			return errors.Is(err, types.ErrReconstruction)
		}),
		logger: logger,
	}
}

// correctRequest is the body of POST /v1/correct.
type correctRequest struct {
	Network *types.Network  `json:"network"`
	Battery []collab.Medium `json:"battery"`
}

// errorResponse is the body the service returns with non-2xx statuses.
type errorResponse struct {
	Error string `json:"error"`
}

// Correct implements collab.Corrector.
func (c *Client) Correct(ctx context.Context, net *types.Network, battery []collab.Medium) (*collab.CorrectionResult, error) {
	var out collab.CorrectionResult
	err := c.call(ctx, pathCorrect, types.StageCorrected, correctRequest{Network: net, Battery: battery}, &out)
	if err != nil {
		return nil, err
	}
	if out.Network == nil {
		return nil, &types.CollaboratorError{
			Collaborator: collaboratorName, Op: "correct",
			Err: errors.New("response did not include a network"),
		}
	}
	return &out, nil
}

// Gapfill implements collab.Gapfiller.
func (c *Client) Gapfill(ctx context.Context, req collab.GapfillRequest) (*collab.GapfillSolution, error) {
	var out collab.GapfillSolution
	if err := c.call(ctx, pathGapfill, types.StageGapfilled, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Optimize implements collab.Solver.
func (c *Client) Optimize(ctx context.Context, req collab.SolveRequest) (*collab.Solution, error) {
	var out collab.Solution
	if err := c.call(ctx, pathOptimize, "", req, &out); err != nil {
		return nil, err
	}
	if !types.IsValidSolveStatus(out.Status) {
		return nil, &types.CollaboratorError{
			Collaborator: collaboratorName, Op: "optimize",
			Err: fmt.Errorf("unexpected solver status %q", out.Status),
		}
	}
	return &out, nil
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// call posts body to path and decodes the response into out. stage is the
// pipeline stage a 4xx rejection is attributed to; "" means the rejection is
// reported as a collaborator error.
func (c *Client) call(ctx context.Context, path string, stage types.Stage, body, out interface{}) error {
	op := strings.TrimPrefix(path, "/v1/")
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.post(ctx, path, stage, body, out)
	})
	c.logger.Debug("solver service call",
		zap.String("op", op),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))

	if err == nil {
		return nil
	}
	var recErr *types.ReconstructionError
	var colErr *types.CollaboratorError
	if errors.As(err, &recErr) || errors.As(err, &colErr) || errors.Is(err, context.Canceled) {
		return err
	}
	return &types.CollaboratorError{Collaborator: collaboratorName, Op: op, Err: err}
}

func (c *Client) post(ctx context.Context, path string, stage types.Stage, body, out interface{}) error {
	op := strings.TrimPrefix(path, "/v1/")

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && stage != "" {
			return &types.ReconstructionError{Stage: stage, Message: msg}
		}
		return &types.CollaboratorError{
			Collaborator: collaboratorName,
			Op:           op,
			Err:          fmt.Errorf("status %d: %s", resp.StatusCode, msg),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
