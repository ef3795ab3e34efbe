package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// ExecutionRepository stores an instance document plus a sibling log
// document holding the append-only attempt rows.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) path(id string) string {
	return filepath.Join(er.dir(), id+".json")
}

func (er *ExecutionRepository) logsPath(id string) string {
	return filepath.Join(er.dir(), id+".logs.json")
}

func (er *ExecutionRepository) Save(_ context.Context, instance *models.ExecutionInstance) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	err := os.MkdirAll(er.dir(), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(instance, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode execution %s: %w", instance.ID, err)
	}

	return os.WriteFile(er.path(instance.ID), data, 0o644)
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.ExecutionInstance, error) {
	data, err := os.ReadFile(er.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	var instance models.ExecutionInstance

	err = json.Unmarshal(data, &instance)
	if err != nil {
		return nil, fmt.Errorf("failed to decode execution %s: %w", id, err)
	}

	return &instance, nil
}

func (er *ExecutionRepository) ListByProject(ctx context.Context, projectID string) ([]*models.ExecutionInstance, error) {
	return er.list(ctx, func(instance *models.ExecutionInstance) bool {
		return instance.ProjectID == projectID
	})
}

func (er *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.ExecutionInstance, error) {
	return er.list(ctx, func(instance *models.ExecutionInstance) bool {
		return instance.Status == status
	})
}

func (er *ExecutionRepository) list(ctx context.Context, keep func(*models.ExecutionInstance) bool) ([]*models.ExecutionInstance, error) {
	if _, err := os.Stat(er.dir()); os.IsNotExist(err) {
		return []*models.ExecutionInstance{}, nil
	}

	files, err := fs.Glob(os.DirFS(er.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	instances := make([]*models.ExecutionInstance, 0)

	for _, file := range files {
		if strings.HasSuffix(file, ".logs.json") {
			continue
		}

		instance, err := er.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if keep(instance) {
			instances = append(instances, instance)
		}
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].StartedAt.Before(instances[j].StartedAt)
	})

	return instances, nil
}

func (er *ExecutionRepository) AppendLog(ctx context.Context, entry *models.ExecutionLog) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	logs, err := er.readLogs(entry.ExecutionID)
	if err != nil {
		return err
	}

	logs = append(logs, entry)

	err = os.MkdirAll(er.dir(), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode logs for %s: %w", entry.ExecutionID, err)
	}

	return os.WriteFile(er.logsPath(entry.ExecutionID), data, 0o644)
}

func (er *ExecutionRepository) Logs(_ context.Context, executionID string) ([]*models.ExecutionLog, error) {
	return er.readLogs(executionID)
}

func (er *ExecutionRepository) readLogs(executionID string) ([]*models.ExecutionLog, error) {
	data, err := os.ReadFile(er.logsPath(executionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.ExecutionLog{}, nil
		}

		return nil, fmt.Errorf("failed to read logs for %s: %w", executionID, err)
	}

	var logs []*models.ExecutionLog

	err = json.Unmarshal(data, &logs)
	if err != nil {
		return nil, fmt.Errorf("failed to decode logs for %s: %w", executionID, err)
	}

	return logs, nil
}
