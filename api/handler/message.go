package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/api/transport"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
	"github.com/fastygo/taskpilot/usecase/assistant"
)

type MessageHandler struct {
	baseHandler
	uc *assistant.UseCase
}

func NewMessageHandler(uc *assistant.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Send a chat message
// @Tags messages
// @Router /api/v1/messages [post]
func (h *MessageHandler) Send(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	var req transport.MessageRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reply, err := h.uc.HandleMessage(stdCtx, userID, req.Text)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reply)
}

// @Summary Answer a clarification question
// @Tags messages
// @Router /api/v1/clarifications/{fingerprint} [post]
func (h *MessageHandler) ChooseTime(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	fingerprint, _ := ctx.UserValue("fingerprint").(string)
	var req transport.TimeChoiceRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reply, err := h.uc.HandleTimeChoice(stdCtx, userID, fingerprint, req.Time)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reply)
}

// @Summary Deliver a chat button press
// @Tags messages
// @Router /api/v1/callbacks [post]
func (h *MessageHandler) Callback(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	var req transport.CallbackRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	reply, err := h.uc.HandleCallback(stdCtx, userID, req.Data)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, reply)
}
