package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskpilot/api/handler"
	"github.com/fastygo/taskpilot/internal/middleware"
)

type Handlers struct {
	Message *apiHandler.MessageHandler
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
}

// New registers all routes and returns the wrapped root handler.
func New(handlers Handlers, logger *zap.Logger) fasthttp.RequestHandler {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	user := middleware.RequireUser(apiHandler.UserIDHeader)

	r.POST("/api/v1/messages", user(handlers.Message.Send))
	r.POST("/api/v1/clarifications/{fingerprint}", user(handlers.Message.ChooseTime))
	r.POST("/api/v1/callbacks", user(handlers.Message.Callback))

	r.GET("/api/v1/tasks", user(handlers.Task.GetTasks))
	r.POST("/api/v1/actions", user(handlers.Task.ApplyAction))

	return middleware.Chain(r.Handler,
		middleware.Recover(logger),
		middleware.RequestID(),
		middleware.AccessLog(logger),
	)
}
