// Package parser turns free text into domain actions through a hosted language model.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
)

const (
	defaultURL     = "https://api.anthropic.com/v1/messages"
	defaultVersion = "2023-06-01"
)

type Config struct {
	URL         string
	APIKey      string
	Model       string
	Version     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// Location renders the current time in the prompt.
	Location *time.Location
}

// Client calls a Messages-style completion endpoint and decodes the first JSON object of
// the reply into a domain.Action.
type Client struct {
	http   *fasthttp.Client
	cfg    Config
	clock  clock.Clock
	logger *zap.Logger
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system"`
	Messages    []message `json:"messages"`
}

type completionResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func New(cfg Config, httpClient *fasthttp.Client, clk clock.Clock, logger *zap.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if httpClient == nil {
		httpClient = &fasthttp.Client{Name: "taskpilot"}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, cfg: cfg, clock: clk, logger: logger}
}

// Parse asks the model for an action. A reply without a decodable JSON object yields an
// empty action, not an error.
func (c *Client) Parse(ctx context.Context, text string, pending []domain.TaskRef) (*domain.Action, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		System:      BuildSystemPrompt(c.clock.Now().In(c.cfg.Location), pending),
		Messages:    []message{{Role: "user", Content: text}},
	})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)
	req.SetBodyRaw(body)

	if err := c.http.DoDeadline(req, resp, deadline(ctx, c.cfg.Timeout)); err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "parser request failed", err)
	}

	var out completionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, fmt.Sprintf("parser status %d", resp.StatusCode()), err)
	}
	if resp.StatusCode() != fasthttp.StatusOK || out.Error != nil {
		msg := fmt.Sprintf("parser status %d", resp.StatusCode())
		if out.Error != nil {
			msg += ": " + out.Error.Message
		}
		return nil, domain.NewError(domain.ErrCodeUnavailable, msg)
	}

	var reply strings.Builder
	for _, block := range out.Content {
		if block.Type == "" || block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	c.logger.Debug("parser reply", zap.String("raw", reply.String()))
	return c.decode(reply.String()), nil
}

func (c *Client) decode(reply string) *domain.Action {
	raw, ok := ExtractJSON(reply)
	if !ok {
		c.logger.Warn("no JSON object in parser reply")
		return &domain.Action{}
	}
	var action domain.Action
	if err := json.Unmarshal(raw, &action); err != nil {
		c.logger.Warn("undecodable parser reply", zap.Error(err))
		return &domain.Action{}
	}
	return &action
}

// ExtractJSON returns the span from the first '{' to the last '}', which covers replies
// wrapped in prose or code fences.
func ExtractJSON(reply string) ([]byte, bool) {
	b := []byte(reply)
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return b[start : end+1], true
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
