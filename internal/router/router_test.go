package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskpilot/api/handler"
	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/internal/infrastructure/monitor"
	"github.com/fastygo/taskpilot/internal/infrastructure/notify"
	"github.com/fastygo/taskpilot/internal/services/reminder"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
	"github.com/fastygo/taskpilot/pkg/keylock"
	"github.com/fastygo/taskpilot/repository/memory"
	"github.com/fastygo/taskpilot/usecase/assistant"
	"github.com/fastygo/taskpilot/usecase/clarify"
	taskUC "github.com/fastygo/taskpilot/usecase/task"
)

type stubParser struct {
	action *domain.Action
	err    error
}

func (p *stubParser) Parse(context.Context, string, []domain.TaskRef) (*domain.Action, error) {
	return p.action, p.err
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Meta   struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

type fixture struct {
	handler fasthttp.RequestHandler
	parser  *stubParser
	monitor *monitor.Monitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC))
	locks := &keylock.Map{}
	repo := memory.NewTaskRepository(clk)
	scheduler := reminder.New(repo, notify.NewLogNotifier(nil), clk, locks, reminder.Config{Location: time.UTC}, nil)
	tasks := taskUC.New(repo, scheduler, locks, taskUC.Config{Location: time.UTC}, nil)
	p := &stubParser{action: &domain.Action{}}
	uc := assistant.New(tasks, clarify.NewResolver(clk, time.UTC), memory.NewClarificationCache(16, time.Hour, clk), p, assistant.Config{Location: time.UTC}, nil)

	mon := monitor.New(time.Minute, nil)
	mon.Register("store", true, func(context.Context) error { return nil })
	mon.Refresh(context.Background())

	adapter := httpcontext.NewAdapter(time.Second)
	h := New(Handlers{
		Message: apiHandler.NewMessageHandler(uc, adapter, nil),
		Task:    apiHandler.NewTaskHandler(tasks, adapter, nil),
		Health:  apiHandler.NewHealthHandler(mon, scheduler, adapter, nil),
	}, nil)
	return &fixture{handler: h, parser: p, monitor: mon}
}

func (f *fixture) do(t *testing.T, method, path, userID, body string) (int, envelope, *fasthttp.RequestCtx) {
	t.Helper()
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if userID != "" {
		ctx.Request.Header.Set(apiHandler.UserIDHeader, userID)
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	f.handler(&ctx)

	var env envelope
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env), string(ctx.Response.Body()))
	return ctx.Response.StatusCode(), env, &ctx
}

func decodeReply(t *testing.T, env envelope) assistant.Reply {
	t.Helper()
	var reply assistant.Reply
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	return reply
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	status, env, _ := f.do(t, fasthttp.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Status)
	assert.Contains(t, string(env.Data), `"store":true`)
	assert.Contains(t, string(env.Data), `"armed_reminders":0`)
}

func TestHealthDegraded(t *testing.T) {
	f := newFixture(t)
	f.monitor.Register("db", true, func(context.Context) error { return errors.New("down") })
	f.monitor.Refresh(context.Background())

	status, env, _ := f.do(t, fasthttp.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "DEGRADED", env.Code)
}

func TestMissingUserRejected(t *testing.T) {
	f := newFixture(t)
	status, env, _ := f.do(t, fasthttp.MethodPost, "/api/v1/messages", "", `{"text": "hi"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(domain.ErrCodeUnauthorized), env.Code)
}

func TestMessageEchoesRequestID(t *testing.T) {
	f := newFixture(t)
	status, env, ctx := f.do(t, fasthttp.MethodPost, "/api/v1/messages", "u1", `{"text": "/start"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, decodeReply(t, env).Text, "AI Task Assistant")

	reqID := string(ctx.Response.Header.Peek(httpcontext.RequestIDHeader))
	assert.NotEmpty(t, reqID)
	assert.Equal(t, reqID, env.Meta.RequestID)
}

func TestInvalidPayload(t *testing.T) {
	f := newFixture(t)
	status, env, _ := f.do(t, fasthttp.MethodPost, "/api/v1/messages", "u1", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(domain.ErrCodeInvalid), env.Code)

	status, _, _ = f.do(t, fasthttp.MethodPost, "/api/v1/messages", "u1", `{"text": "  "}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestClarificationOverHTTP(t *testing.T) {
	f := newFixture(t)
	_, env, _ := f.do(t, fasthttp.MethodPost, "/api/v1/messages", "u1", `{"text": "Pay John sometime today"}`)
	question := decodeReply(t, env)
	require.NotEmpty(t, question.Fingerprint)
	require.NotEmpty(t, question.Options)

	status, _, _ := f.do(t, fasthttp.MethodPost, "/api/v1/clarifications/"+question.Fingerprint, "u1", `{"time": "25:99"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env, _ = f.do(t, fasthttp.MethodPost, "/api/v1/clarifications/"+question.Fingerprint, "u1", `{"time": "15:00"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "✅ Task created: *Pay John* at 03:00 PM", decodeReply(t, env).Text)

	_, env, _ = f.do(t, fasthttp.MethodPost, "/api/v1/callbacks", "u1", `{"data": "`+question.Options[0].Data+`"}`)
	assert.Contains(t, decodeReply(t, env).Text, "lost track")

	status, _, _ = f.do(t, fasthttp.MethodPost, "/api/v1/callbacks", "u1", `{"data": "garbage"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestActionsAndListing(t *testing.T) {
	f := newFixture(t)
	status, env, _ := f.do(t, fasthttp.MethodPost, "/api/v1/actions", "u1",
		`{"creations": [{"title": "Water plants", "due_date": "2026-03-14 18:00:00", "priority": "low"}]}`)
	require.Equal(t, http.StatusCreated, status)

	var res taskUC.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, taskUC.ResultCreated, res.Kind)
	require.Len(t, res.Tasks, 1)

	status, env, _ = f.do(t, fasthttp.MethodGet, "/api/v1/tasks", "u1", "")
	require.Equal(t, http.StatusOK, status)
	var pending []domain.Task
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "Water plants", pending[0].Title)

	_, env, _ = f.do(t, fasthttp.MethodGet, "/api/v1/tasks", "u2", "")
	assert.Equal(t, "[]", string(env.Data))

	status, env, _ = f.do(t, fasthttp.MethodPost, "/api/v1/actions", "u1", `{"completions": [{"id": "`+res.Tasks[0].ID+`"}]}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, taskUC.ResultCompleted, res.Kind)
	assert.Equal(t, []string{"Water plants"}, res.Titles)
}

func TestParserFailureAnsweredGenerically(t *testing.T) {
	f := newFixture(t)
	f.parser.err = errors.New("upstream down")

	status, env, _ := f.do(t, fasthttp.MethodPost, "/api/v1/messages", "u1", `{"text": "call mom at 3pm"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Sorry, an error occurred.", decodeReply(t, env).Text)
}
