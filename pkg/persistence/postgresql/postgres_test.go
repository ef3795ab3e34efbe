package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/persistence/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"execution_logs", "executions", "jobs", "projects", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("loom_test"),
			postgres.WithUsername("loom"),
			postgres.WithPassword("loom"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx
}

func TestProjectRepositoryLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	project := &models.Project{
		ID:   uuid.New().String(),
		Name: "Report Pipeline",
		CanvasData: models.CanvasData{
			Nodes: []*models.Node{
				{ID: "in", Type: models.NodeTypeInput},
				{ID: "out", Type: models.NodeTypeOutput},
			},
			Edges: []*models.Edge{{ID: "e1", Source: "in", Target: "out"}},
		},
		GlobalVariables: []*models.GlobalVariable{{Name: "tone", Value: "formal"}},
	}

	require.NoError(t, p.Projects().Save(ctx, project))

	loaded, err := p.Projects().GetByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Report Pipeline", loaded.Name)
	require.Len(t, loaded.CanvasData.Nodes, 2)
	require.Len(t, loaded.GlobalVariables, 1)

	require.NoError(t, p.Projects().UpdateVariables(ctx, project.ID, []*models.GlobalVariable{
		{Name: "tone", Value: "casual"},
		{Name: "language", Value: "en"},
	}))

	loaded, err = p.Projects().GetByID(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, loaded.GlobalVariables, 2)

	require.NoError(t, p.Projects().Delete(ctx, project.ID))

	_, err = p.Projects().GetByID(ctx, project.ID)
	assert.True(t, persistence.IsProjectNotFound(err))
}

func TestJobClaimConcurrency(t *testing.T) {
	p, ctx := setupTestDB(t)

	jobID := uuid.New().String()
	require.NoError(t, p.Jobs().Create(ctx, &models.Job{
		ID:        jobID,
		Status:    models.JobStatusQueued,
		ProjectID: uuid.New().String(),
		SessionID: uuid.New().String(),
	}))

	const workers = 10

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
	)

	for i := range workers {
		wg.Add(1)

		workerID := uuid.New().String()

		_ = i

		go func() {
			defer wg.Done()

			job, err := p.Jobs().Claim(ctx, jobID, workerID)
			if err != nil {
				assert.True(t, persistence.IsJobAlreadyClaimed(err))

				return
			}

			mu.Lock()
			wins = append(wins, job.WorkerID)
			mu.Unlock()
		}()
	}

	wg.Wait()

	require.Len(t, wins, 1, "the conditional update must admit exactly one claimant")

	claimed, err := p.Jobs().GetByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, claimed.Status)
	assert.Equal(t, wins[0], claimed.WorkerID)
	assert.NotNil(t, claimed.StartedAt)
}

func TestJobUpdateRejectsBackwardTransition(t *testing.T) {
	p, ctx := setupTestDB(t)

	jobID := uuid.New().String()
	require.NoError(t, p.Jobs().Create(ctx, &models.Job{
		ID: jobID, Status: models.JobStatusQueued,
		ProjectID: "p1", SessionID: "s1",
	}))

	_, err := p.Jobs().Claim(ctx, jobID, "w1")
	require.NoError(t, err)

	require.NoError(t, p.Jobs().Update(ctx, &models.Job{
		ID: jobID, Status: models.JobStatusFailed,
		ProjectID: "p1", SessionID: "s1", Error: "provider unreachable",
	}))

	err = p.Jobs().Update(ctx, &models.Job{
		ID: jobID, Status: models.JobStatusProcessing,
		ProjectID: "p1", SessionID: "s1",
	})
	assert.True(t, persistence.IsInvalidJobTransition(err))

	final, err := p.Jobs().GetByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Equal(t, "provider unreachable", final.Error)
	assert.NotNil(t, final.CompletedAt)
}

func TestExecutionRepositoryLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)

	executionID := uuid.New().String()
	projectID := uuid.New().String()

	instance := &models.ExecutionInstance{
		ID:          executionID,
		ProjectID:   projectID,
		ProjectName: "Report Pipeline",
		Status:      models.ExecutionStatusRunning,
		TotalNodes:  3,
		StartedAt:   time.Now().UTC(),
		GlobalVariablesSnapshot: map[string]string{
			"tone": "formal",
		},
	}
	require.NoError(t, p.Executions().Save(ctx, instance))

	require.NoError(t, p.Executions().AppendLog(ctx, &models.ExecutionLog{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		NodeID:      "in",
		Output:      map[string]any{"text": "hello"},
		Status:      models.LogStatusCompleted,
		Duration:    12 * time.Millisecond,
		Timestamp:   time.Now().UTC(),
	}))

	now := time.Now().UTC()
	instance.Status = models.ExecutionStatusCompleted
	instance.ExecutedNodes = 3
	instance.CompletedAt = &now
	instance.Duration = 250 * time.Millisecond
	instance.ExecutionResults = map[string]any{"in": map[string]any{"text": "hello"}}
	require.NoError(t, p.Executions().Save(ctx, instance))

	loaded, err := p.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, 3, loaded.ExecutedNodes)
	assert.Equal(t, "formal", loaded.GlobalVariablesSnapshot["tone"])
	assert.Equal(t, 250*time.Millisecond, loaded.Duration)

	logs, err := p.Executions().Logs(ctx, executionID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "in", logs[0].NodeID)
	assert.Equal(t, 12*time.Millisecond, logs[0].Duration)

	byProject, err := p.Executions().ListByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, byProject, 1)

	running, err := p.Executions().ListByStatus(ctx, models.ExecutionStatusRunning)
	require.NoError(t, err)
	assert.Empty(t, running)
}
