// Package middleware holds fasthttp handler wrappers shared by all routes.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskpilot/api/transport"
	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
)

// Middleware wraps a handler.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Chain applies mws so that the first one is outermost.
func Chain(h fasthttp.RequestHandler, mws ...Middleware) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequireUser rejects requests that carry no user id in header. Identity is asserted by
// the fronting gateway; this service does not authenticate.
func RequireUser(header string) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if strings.TrimSpace(string(ctx.Request.Header.Peek(header))) == "" {
				ctx.Response.Header.SetContentType("application/json")
				ctx.SetStatusCode(http.StatusUnauthorized)
				ctx.SetBodyString(transport.NewError(string(domain.ErrCodeUnauthorized), "missing user id", nil).String())
				return
			}
			next(ctx)
		}
	}
}

// RequestID assigns the request id before the handler runs so every log line and the
// response agree on it.
func RequestID() Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			httpcontext.RequestID(ctx)
			next(ctx)
		}
	}
}

// AccessLog writes one line per request.
func AccessLog(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)
			status := ctx.Response.StatusCode()
			fields := []zap.Field{
				zap.String("method", string(ctx.Method())),
				zap.String("path", string(ctx.Path())),
				zap.Int("status", status),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", string(ctx.Response.Header.Peek(httpcontext.RequestIDHeader))),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("request served", fields...)
				return
			}
			logger.Debug("request served", fields...)
		}
	}
}

// Recover turns handler panics into 500 responses.
func Recover(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panic", zap.Any("panic", r), zap.String("path", string(ctx.Path())))
					ctx.Response.Header.SetContentType("application/json")
					ctx.SetStatusCode(http.StatusInternalServerError)
					ctx.SetBodyString(transport.NewError(string(domain.ErrCodeInternal), "internal error", nil).String())
				}
			}()
			next(ctx)
		}
	}
}
