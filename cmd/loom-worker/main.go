package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/loomworks/loom/pkg/cmd"
	"github.com/loomworks/loom/pkg/jobs"
	"github.com/loomworks/loom/pkg/log"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/providers/openaicompat"
	"github.com/loomworks/loom/pkg/runner"
	"github.com/loomworks/loom/pkg/tracing"
	"github.com/loomworks/loom/pkg/worker"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "loom-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute queued jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses (when event-bus is kafka)",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of worker loops to supervise",
				Value:   1,
				Sources: cli.EnvVars("WORKERS"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Interval between queue polls",
				Value:   worker.DefaultPollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "llm-base-url",
				Usage:   "Base URL of the OpenAI-compatible provider for llm nodes",
				Sources: cli.EnvVars("LLM_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "llm-api-key",
				Usage:   "API key for the llm provider",
				Sources: cli.EnvVars("LLM_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runWorkers,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func runWorkers(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("worker").With("worker_id", workerID)
	logger.InfoContext(ctx, "Initializing Loom Worker")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "worker", command.StringSlice("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	tracer, err := tracing.NewTracer(ctx, "loom-worker")
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)
	}

	var provider protocol.Provider
	if baseURL := command.String("llm-base-url"); baseURL != "" {
		provider = openaicompat.New(baseURL, command.String("llm-api-key"))
	}

	queue := jobs.NewQueue(persistence.Jobs(), logger)
	pollInterval := command.Duration("poll-interval")

	factory := func(name string) *worker.Worker {
		reg := cmd.NewRegistry(logger, provider)
		opts := []runner.Option{
			runner.WithPublisher(eventBus),
			runner.WithWorkerID(name),
		}

		if tracer != nil {
			opts = append(opts, runner.WithTracer(tracer))
		}

		r := runner.NewRunner(reg, persistence.Executions(), logger, opts...)

		return worker.NewWorker(name, queue, persistence.Projects(), persistence.Executions(), r, logger, pollInterval)
	}

	supervisor := worker.NewSupervisor(factory, logger)

	count := command.Int("workers")
	for i := range count {
		name := workerID
		if count > 1 {
			name = workerID + "-" + strconv.Itoa(i+1)
		}

		if err := supervisor.Start(ctx, name); err != nil {
			return err
		}
	}

	<-ctx.Done()

	logger.Info("Shutting down")
	supervisor.StopAll()

	return nil
}
