package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"stepviz/internal/model"

	"golang.org/x/time/rate"
)

// Piston runs programs on a Piston execution API.
type Piston struct {
	url     string
	version string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// PistonOption configures a Piston client.
type PistonOption func(*Piston)

// WithRateLimit paces requests to rps per second. Zero disables pacing.
func WithRateLimit(rps float64) PistonOption {
	return func(p *Piston) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithTimeout bounds one HTTP round trip.
func WithTimeout(d time.Duration) PistonOption {
	return func(p *Piston) { p.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) PistonOption {
	return func(p *Piston) { p.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PistonOption {
	return func(p *Piston) { p.logger = l }
}

// NewPiston creates a client for the API rooted at url.
func NewPiston(url, version string, opts ...PistonOption) *Piston {
	if version == "" {
		version = "10.2.0"
	}
	p := &Piston{
		url:     strings.TrimRight(url, "/"),
		version: version,
		client:  &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin"`
}

type pistonStage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Output string  `json:"output"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

type pistonResponse struct {
	Compile *pistonStage `json:"compile"`
	Run     pistonStage  `json:"run"`
	Message string       `json:"message"`
}

// Execute implements Backend.
func (p *Piston) Execute(ctx context.Context, source, stdin string) (model.RunResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	body, err := json.Marshal(pistonRequest{
		Language: "cpp",
		Version:  p.version,
		Files:    []pistonFile{{Content: source}},
		Stdin:    stdin,
	})
	if err != nil {
		return model.RunResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/execute", bytes.NewReader(body))
	if err != nil {
		return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Warn("piston request rejected", "status", resp.StatusCode, "body", string(msg))
		return model.RunResult{}, fmt.Errorf("%w: Piston API error: %s", ErrUnavailable, resp.Status)
	}

	var data pistonResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return model.RunResult{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	if c := data.Compile; c != nil && c.Code != nil && *c.Code != 0 {
		return model.RunResult{Success: false, Output: firstNonEmpty(c.Stderr, c.Output, c.Stdout)}, nil
	}

	run := data.Run
	if run.Code != nil && *run.Code == 0 && run.Signal == nil {
		return model.RunResult{Success: true, Output: run.Stdout}, nil
	}
	out := firstNonEmpty(run.Stderr, run.Stdout, data.Message)
	if run.Signal != nil {
		out = firstNonEmpty(out, "killed by "+*run.Signal)
	}
	return model.RunResult{Success: false, Output: out}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
