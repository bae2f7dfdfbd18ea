// Package telegram delivers messages through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultAPIBase = "https://api.telegram.org"

type Config struct {
	Token   string
	APIBase string
	Timeout time.Duration
	// ParseMode is sent as parse_mode; empty sends plain text.
	ParseMode string
}

// Notifier sends chat messages with sendMessage. The user ID is the chat ID.
type Notifier struct {
	client *fasthttp.Client
	cfg    Config
	logger *zap.Logger
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func New(cfg Config, client *fasthttp.Client, logger *zap.Logger) *Notifier {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &fasthttp.Client{Name: "taskpilot"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{client: client, cfg: cfg, logger: logger}
}

// Send posts text to the chat identified by userID. A rejected Markdown payload is
// retried once as plain text.
func (n *Notifier) Send(ctx context.Context, userID, text string) error {
	if n.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token not configured")
	}

	res, err := n.send(ctx, userID, text, n.cfg.ParseMode)
	if err != nil {
		return err
	}
	if !res.OK && n.cfg.ParseMode != "" && strings.Contains(strings.ToLower(res.Description), "parse") {
		n.logger.Debug("retrying telegram message without parse mode", zap.String("chat_id", userID))
		res, err = n.send(ctx, userID, text, "")
		if err != nil {
			return err
		}
	}
	if !res.OK {
		return fmt.Errorf("telegram %d: %s", res.ErrorCode, res.Description)
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, chatID, text, parseMode string) (*sendResponse, error) {
	payload := map[string]any{
		"chat_id": chatIDValue(chatID),
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/bot%s/sendMessage", n.cfg.APIBase, n.cfg.Token))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBodyRaw(body)

	if err := n.client.DoDeadline(req, resp, deadline(ctx, n.cfg.Timeout)); err != nil {
		return nil, fmt.Errorf("telegram request: %w", err)
	}

	var out sendResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("telegram %d: undecodable response: %w", resp.StatusCode(), err)
	}
	if out.ErrorCode == 0 && !out.OK {
		out.ErrorCode = resp.StatusCode()
	}
	return &out, nil
}

// chatIDValue sends numeric chat IDs as numbers and anything else (e.g. @channel) as is.
func chatIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
