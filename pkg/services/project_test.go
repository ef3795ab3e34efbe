package services_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence/file"
	"github.com/loomworks/loom/pkg/runner"
	"github.com/loomworks/loom/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProjectService(t *testing.T) (*services.Project, string) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	require.NoError(t, p.HealthCheck(context.Background()))

	templatesDir := t.TempDir()

	return services.NewProject(p, templatesDir), templatesDir
}

func writeTemplate(t *testing.T, dir, id string, tmpl services.Template) {
	t.Helper()

	data, err := json.Marshal(tmpl)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), data, 0o600))
}

func TestCreateRequiresName(t *testing.T) {
	svc, _ := newProjectService(t)

	_, err := svc.Create(context.Background(), &models.Project{})
	assert.True(t, services.IsValidationError(err))
}

func TestDeleteProtectsSystemProjects(t *testing.T) {
	ctx := context.Background()
	svc, _ := newProjectService(t)

	created, err := svc.Create(ctx, &models.Project{Name: "built-in", IsSystem: true})
	require.NoError(t, err)

	err = svc.Delete(ctx, created.ID)
	assert.True(t, services.IsConflictError(err))
}

func TestSeedAndResetToTemplate(t *testing.T) {
	ctx := context.Background()
	svc, templatesDir := newProjectService(t)

	writeTemplate(t, templatesDir, "starter", services.Template{
		Name: "Starter Flow",
		CanvasData: models.CanvasData{
			Nodes: []*models.Node{{ID: "in", Type: models.NodeTypeInput}},
		},
		GlobalVariables: []*models.GlobalVariable{{Name: "tone", Value: "neutral"}},
	})

	project, err := svc.SeedFromTemplate(ctx, "starter", "My Flow")
	require.NoError(t, err)
	assert.Equal(t, "My Flow", project.Name)
	assert.Equal(t, "starter", project.TemplateID)
	require.Len(t, project.CanvasData.Nodes, 1)

	// Drift the project away from its template, then reset.
	project.CanvasData.Nodes = append(project.CanvasData.Nodes,
		&models.Node{ID: "extra", Type: models.NodeTypeTransform})
	project.GlobalVariables = nil

	_, err = svc.Update(ctx, project)
	require.NoError(t, err)

	restored, err := svc.ResetToTemplate(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "My Flow", restored.Name, "reset keeps the project's name")
	require.Len(t, restored.CanvasData.Nodes, 1)
	require.Len(t, restored.GlobalVariables, 1)
	assert.Equal(t, "neutral", restored.GlobalVariables[0].Value)
}

func TestResetWithoutTemplateIsValidationError(t *testing.T) {
	ctx := context.Background()
	svc, _ := newProjectService(t)

	created, err := svc.Create(ctx, &models.Project{Name: "ad hoc"})
	require.NoError(t, err)

	_, err = svc.ResetToTemplate(ctx, created.ID)
	assert.True(t, services.IsValidationError(err))
}

func TestMissingTemplateFileIsEngineFatal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newProjectService(t)

	_, err := svc.SeedFromTemplate(ctx, "gone", "")
	require.Error(t, err)

	var fatal *runner.EngineFatalError

	assert.ErrorAs(t, err, &fatal)
}
