package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/loomworks/loom/pkg/cmd"
	"github.com/loomworks/loom/pkg/log"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func openPersistence(ctx context.Context, command *cli.Command) (persistence.Persistence, *slog.Logger, error) {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("cli")

	p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, nil, err
	}

	return p, logger, nil
}

func listProjects(ctx context.Context, command *cli.Command) error {
	p, _, err := openPersistence(ctx, command)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	projects, err := p.Projects().All(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSYSTEM\tTEMPLATE\tNODES")

	for _, project := range projects {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\n",
			project.ID, project.Name, project.IsSystem, project.TemplateID, len(project.CanvasData.Nodes))
	}

	return w.Flush()
}

func seedProject(ctx context.Context, command *cli.Command) error {
	templateID := command.Args().Get(0)
	name := command.Args().Get(1)

	if templateID == "" || name == "" {
		return errors.New("usage: loom projects seed <template-id> <name>")
	}

	p, _, err := openPersistence(ctx, command)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	service := services.NewProject(p, command.String("templates-dir"))

	project, err := service.SeedFromTemplate(ctx, templateID, name)
	if err != nil {
		return err
	}

	fmt.Printf("Created project %s (%s) from template %s\n", project.ID, project.Name, templateID)

	return nil
}

func resetProject(ctx context.Context, command *cli.Command) error {
	id := command.Args().Get(0)
	if id == "" {
		return errors.New("usage: loom projects reset <project-id>")
	}

	p, _, err := openPersistence(ctx, command)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	service := services.NewProject(p, command.String("templates-dir"))

	project, err := service.ResetToTemplate(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Reset project %s (%s) to template %s\n", project.ID, project.Name, project.TemplateID)

	return nil
}
