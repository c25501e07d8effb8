package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gradewise/exam-api/internal/config"
	"github.com/gradewise/exam-api/internal/handler"
	"github.com/gradewise/exam-api/internal/middleware"
	"github.com/gradewise/exam-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExamHandler         *handler.ExamHandler
	SubmissionHandler   *handler.SubmissionHandler
	ResultHandler       *handler.ResultHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
	SubmitRateLimit     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staffOnly := middleware.RequireRole("teacher", "principal")
	writerRoles := middleware.RequireRole("teacher", "principal", "service")
	principalOnly := middleware.RequireRole("principal")

	api := app.Group("/api", jwtMiddleware)

	// Exams and their subject associations
	if deps.ExamHandler != nil {
		exams := api.Group("/exams", staffOnly)
		deps.ExamHandler.Register(exams)
	}

	// Scope-nested submission and result reads:
	// /api/sections/:sectionId/exams/:examId/subjects/:subjectId/...
	scope := api.Group("/sections/:sectionId/exams/:examId/subjects/:subjectId")

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(scope, deps.SubmitRateLimit)
		deps.SubmissionHandler.RegisterFlat(api.Group("/submissions"))
	}

	// Result writes are staff/service territory; reads stay open so students
	// can fetch their own results.
	if deps.ResultHandler != nil {
		deps.ResultHandler.RegisterScoped(scope)
		deps.ResultHandler.Register(api.Group("/results"), writerRoles, principalOnly)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications")
		deps.NotificationHandler.Register(notifications)
	}
}
