package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "loom",
		Usage:                 "Manage projects and jobs from the command line",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "templates-dir",
				Usage:   "Directory containing project template files",
				Value:   "./templates",
				Sources: cli.EnvVars("TEMPLATES_DIR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "projects",
				Aliases: []string{"p"},
				Usage:   "Manage projects",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List all projects",
						Action: listProjects,
					},
					{
						Name:      "seed",
						Usage:     "Create a project from a template",
						ArgsUsage: "<template-id> <name>",
						Action:    seedProject,
					},
					{
						Name:      "reset",
						Usage:     "Reset a project back to its template",
						ArgsUsage: "<project-id>",
						Action:    resetProject,
					},
				},
			},
			{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Manage jobs",
				Commands: []*cli.Command{
					{
						Name:      "enqueue",
						Usage:     "Enqueue a job for a project",
						ArgsUsage: "<project-id>",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "session-id",
								Usage: "Session identifier attached to the job",
							},
							&cli.StringFlag{
								Name:  "payload",
								Usage: "Job payload as a JSON object",
								Value: "{}",
							},
						},
						Action: enqueueJob,
					},
					{
						Name:      "status",
						Usage:     "Show a job and its execution",
						ArgsUsage: "<job-id>",
						Action:    jobStatus,
					},
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
