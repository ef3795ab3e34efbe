// Package main provides the Loom API server implementation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/loomworks/loom/pkg/cmd"
	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/jobs"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/progress"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/providers/openaicompat"
	"github.com/loomworks/loom/pkg/runner"
	"github.com/loomworks/loom/pkg/services"
	"github.com/loomworks/loom/pkg/web"
	"github.com/loomworks/loom/pkg/worker"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	TemplatesDir string
	APIKey       string
	Workers      int
	LLMBaseURL   string
	LLMAPIKey    string
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	config      Config
	queue       *jobs.Queue
	supervisor  *worker.Supervisor
	feed        *progress.Feed
	validate    *validator.Validate
}

// NewAPI assembles the server: queue, worker supervisor, progress feed.
// The feed subscribes to the bus here, so events published by embedded
// workers are delivered for the lifetime of ctx.
func NewAPI(
	ctx context.Context,
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	config Config,
) (*API, error) {
	queue := jobs.NewQueue(p.Jobs(), logger)

	var provider protocol.Provider
	if config.LLMBaseURL != "" {
		provider = openaicompat.New(config.LLMBaseURL, config.LLMAPIKey)
	}

	factory := func(name string) *worker.Worker {
		reg := cmd.NewRegistry(logger, provider)
		r := runner.NewRunner(reg, p.Executions(), logger,
			runner.WithPublisher(eventBus),
			runner.WithWorkerID(name),
		)

		return worker.NewWorker(name, queue, p.Projects(), p.Executions(), r, logger, worker.DefaultPollInterval)
	}

	feed := progress.NewFeed(progress.DefaultCapacity)
	if err := feed.Attach(eventBus); err != nil {
		return nil, fmt.Errorf("failed to attach progress feed: %w", err)
	}

	if err := eventBus.Subscribe(ctx); err != nil {
		return nil, fmt.Errorf("failed to start event delivery: %w", err)
	}

	return &API{
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
		config:      config,
		queue:       queue,
		supervisor:  worker.NewSupervisor(factory, logger),
		feed:        feed,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// App builds the HTTP application over the assembled services.
func (a *API) App() *fiber.App {
	projectService := services.NewProject(a.persistence, a.config.TemplatesDir)
	handlers := web.NewAPIHandlers(projectService, a.queue, a.persistence.Executions(), a.supervisor, a.feed, a.validate)

	return web.NewApp(handlers, a.config.APIKey)
}

// Start launches the embedded workers and serves HTTP until the context
// is cancelled or an interrupt arrives.
func (a *API) Start(ctx context.Context, port int) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i := range a.config.Workers {
		name := "worker-" + strconv.Itoa(i+1)
		if err := a.supervisor.Start(ctx, name); err != nil {
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
	}

	app := a.App()

	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":" + strconv.Itoa(port))
	}()

	select {
	case err := <-errCh:
		a.supervisor.StopAll()

		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	a.supervisor.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return app.ShutdownWithContext(shutdownCtx)
}
