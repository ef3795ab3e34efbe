package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/loomworks/loom/pkg/channels/gochannel"
	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/events"
	"github.com/loomworks/loom/pkg/persistence/file"
	"github.com/loomworks/loom/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Execution events published on the bus, the way the runner publishes
// them during a run, must surface on the progress endpoint with no wiring
// beyond NewAPI itself.
func TestProgressFeedReceivesBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	api, err := NewAPI(ctx, logger, file.NewPersistence(t.TempDir()), bus, Config{
		TemplatesDir: t.TempDir(),
	})
	require.NoError(t, err)

	app := api.App()

	require.NoError(t, bus.Publish(ctx, "exec-1", events.NodeCompleted{
		BaseEvent: events.BaseEvent{
			ID:        bus.GenerateID(),
			Type:      events.NodeCompletedEvent,
			Timestamp: time.Now().UTC(),
			ProjectID: "project-1",
		},
		ExecutionID: "exec-1",
		NodeID:      "out-1",
	}))

	var page web.ProgressResponse

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/executions/exec-1/progress", nil)

		resp, err := app.Test(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return false
		}

		page = web.ProgressResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return false
		}

		return len(page.Entries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, events.NodeCompletedEvent, page.Entries[0].Type)
	assert.Equal(t, "out-1", page.Entries[0].NodeID)
	assert.Equal(t, "exec-1", page.Entries[0].ExecutionID)
	assert.False(t, page.HasMore)
}
