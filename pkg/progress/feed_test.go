package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/loomworks/loom/pkg/channels/gochannel"
	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/events"
	"github.com/loomworks/loom/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailReturnsOnlyNewEntries(t *testing.T) {
	feed := progress.NewFeed(16)

	for _, nodeID := range []string{"a", "b", "c"} {
		feed.Append(progress.Entry{Type: events.NodeCompletedEvent, NodeID: nodeID})
	}

	batch, next, hasMore := feed.Tail(-1, 0)
	require.Len(t, batch, 3)
	assert.False(t, hasMore)
	assert.Equal(t, int64(2), next)

	// Nothing new after the last seen offset.
	batch, next, hasMore = feed.Tail(next, 0)
	assert.Empty(t, batch)
	assert.Equal(t, int64(2), next)
	assert.False(t, hasMore)

	feed.Append(progress.Entry{Type: events.NodeStartedEvent, NodeID: "d"})

	batch, _, _ = feed.Tail(next, 0)
	require.Len(t, batch, 1)
	assert.Equal(t, "d", batch[0].NodeID)
}

func TestTailLimitSignalsMore(t *testing.T) {
	feed := progress.NewFeed(16)

	for range 5 {
		feed.Append(progress.Entry{Type: events.NodeStartedEvent})
	}

	batch, next, hasMore := feed.Tail(-1, 2)
	require.Len(t, batch, 2)
	assert.True(t, hasMore)
	assert.Equal(t, int64(1), next)

	batch, _, hasMore = feed.Tail(next, 10)
	require.Len(t, batch, 3)
	assert.False(t, hasMore)
}

func TestOffsetsSurviveEviction(t *testing.T) {
	feed := progress.NewFeed(3)

	for range 10 {
		feed.Append(progress.Entry{Type: events.NodeStartedEvent})
	}

	batch, _, _ := feed.Tail(-1, 0)
	require.Len(t, batch, 3, "bounded buffer keeps only the newest entries")
	assert.Equal(t, int64(7), batch[0].Offset)
	assert.Equal(t, int64(9), batch[2].Offset)
	assert.Equal(t, int64(10), feed.NextOffset())
}

func TestAttachTranslatesBusEvents(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	feed := progress.NewFeed(16)

	require.NoError(t, feed.Attach(bus))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "exec-1", events.NodeFailed{
		BaseEvent: events.BaseEvent{
			ID:        bus.GenerateID(),
			Type:      events.NodeFailedEvent,
			Timestamp: time.Now().UTC(),
			ProjectID: "project-1",
		},
		ExecutionID: "exec-1",
		NodeID:      "llm-1",
		Error:       "model timed out",
	}))

	require.Eventually(t, func() bool {
		batch, _, _ := feed.Tail(-1, 0)

		return len(batch) == 1
	}, 2*time.Second, 10*time.Millisecond)

	batch, _, _ := feed.Tail(-1, 0)
	assert.Equal(t, events.NodeFailedEvent, batch[0].Type)
	assert.Equal(t, "llm-1", batch[0].NodeID)
	assert.Contains(t, batch[0].Message, "model timed out")
}
