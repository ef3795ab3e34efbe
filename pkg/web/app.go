package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp assembles the HTTP router. The jobs group carries the shared
// secret guard; everything else is operator-facing.
func NewApp(handlers *APIHandlers, sharedSecret string) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())
	app.Get("/health", handlers.HealthCheck)

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Loom API")
	})

	p := app.Group("/projects")
	p.Get("/", handlers.GetProjects)
	p.Post("/", handlers.CreateProject)
	p.Post("/from-template", handlers.SeedProject)
	p.Get("/:id", handlers.GetProject)
	p.Patch("/:id", handlers.UpdateProject)
	p.Delete("/:id", handlers.DeleteProject)
	p.Put("/:id/variables", handlers.UpdateProjectVariables)
	p.Post("/:id/reset", handlers.ResetProject)
	p.Get("/:id/executions", handlers.ListProjectExecutions)

	j := app.Group("/jobs", SharedSecretAuth(sharedSecret))
	j.Post("/", handlers.CreateJob)
	j.Get("/", handlers.ListJobs)
	j.Get("/:id", handlers.GetJob)
	j.Patch("/:id", handlers.UpdateJob)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/progress", handlers.GetExecutionProgress)

	w := app.Group("/workers")
	w.Get("/", handlers.GetWorkers)
	w.Get("/:name", handlers.GetWorker)
	w.Post("/:name/start", handlers.StartWorker)
	w.Post("/:name/stop", handlers.StopWorker)
	w.Post("/:name/restart", handlers.RestartWorker)

	return app
}
