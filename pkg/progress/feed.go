// Package progress maintains a bounded, offset-addressed log of execution
// events so clients can poll for incremental updates.
package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/events"
)

// Entry is one row of the progress feed. Offsets are assigned on append and
// strictly increase; a client resumes by passing the last offset it saw.
type Entry struct {
	Offset      int64            `json:"offset"`
	Type        events.EventType `json:"type"`
	ProjectID   string           `json:"project_id,omitempty"`
	ExecutionID string           `json:"execution_id,omitempty"`
	NodeID      string           `json:"node_id,omitempty"`
	Message     string           `json:"message"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Feed is a bounded append-only event log. When the buffer is full the
// oldest entries are evicted; offsets keep increasing regardless.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
	next     int64
}

const DefaultCapacity = 1024

// NewFeed creates a feed holding at most capacity entries.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Feed{capacity: capacity}
}

// Append adds an entry, assigns it the next offset and evicts the oldest
// entry when the buffer is full.
func (f *Feed) Append(entry Entry) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry.Offset = f.next
	f.next++

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	f.entries = append(f.entries, entry)
	if len(f.entries) > f.capacity {
		f.entries = f.entries[len(f.entries)-f.capacity:]
	}

	return entry.Offset
}

// Tail returns up to limit entries with offsets greater than after, the
// offset to resume from, and whether more entries remain beyond the batch.
// Entries evicted by the bound are silently skipped.
func (f *Feed) Tail(after int64, limit int) ([]Entry, int64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 {
		limit = len(f.entries)
	}

	start := 0
	for start < len(f.entries) && f.entries[start].Offset <= after {
		start++
	}

	end := start + limit
	hasMore := false

	if end < len(f.entries) {
		hasMore = true
	} else {
		end = len(f.entries)
	}

	batch := make([]Entry, end-start)
	copy(batch, f.entries[start:end])

	next := after
	if len(batch) > 0 {
		next = batch[len(batch)-1].Offset
	}

	return batch, next, hasMore
}

// NextOffset returns the offset the next appended entry will receive.
func (f *Feed) NextOffset() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.next
}

// Attach registers handlers on the bus that translate execution events into
// feed entries. Call Subscribe on the bus afterwards to start delivery.
func (f *Feed) Attach(bus eventbus.EventBus) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.ExecutionStartedEvent: func(ctx context.Context, event any) error {
			started, ok := event.(*events.ExecutionStarted)
			if !ok {
				return fmt.Errorf("unexpected event payload %T", event)
			}

			f.Append(Entry{
				Type:        events.ExecutionStartedEvent,
				ProjectID:   started.ProjectID,
				ExecutionID: started.ExecutionID,
				Message:     fmt.Sprintf("execution started with %d nodes", started.TotalNodes),
				Timestamp:   started.Timestamp,
			})

			return nil
		},
		events.ExecutionFinishedEvent: func(ctx context.Context, event any) error {
			finished, ok := event.(*events.ExecutionFinished)
			if !ok {
				return fmt.Errorf("unexpected event payload %T", event)
			}

			f.Append(Entry{
				Type:        events.ExecutionFinishedEvent,
				ProjectID:   finished.ProjectID,
				ExecutionID: finished.ExecutionID,
				Message:     fmt.Sprintf("execution finished with status %s", finished.Status),
				Timestamp:   finished.Timestamp,
			})

			return nil
		},
		events.NodeStartedEvent: func(ctx context.Context, event any) error {
			started, ok := event.(*events.NodeStarted)
			if !ok {
				return fmt.Errorf("unexpected event payload %T", event)
			}

			f.Append(Entry{
				Type:        events.NodeStartedEvent,
				ProjectID:   started.ProjectID,
				ExecutionID: started.ExecutionID,
				NodeID:      started.NodeID,
				Message:     fmt.Sprintf("node %s started", started.NodeID),
				Timestamp:   started.Timestamp,
			})

			return nil
		},
		events.NodeCompletedEvent: func(ctx context.Context, event any) error {
			completed, ok := event.(*events.NodeCompleted)
			if !ok {
				return fmt.Errorf("unexpected event payload %T", event)
			}

			f.Append(Entry{
				Type:        events.NodeCompletedEvent,
				ProjectID:   completed.ProjectID,
				ExecutionID: completed.ExecutionID,
				NodeID:      completed.NodeID,
				Message:     fmt.Sprintf("node %s completed in %s", completed.NodeID, completed.Duration),
				Timestamp:   completed.Timestamp,
			})

			return nil
		},
		events.NodeFailedEvent: func(ctx context.Context, event any) error {
			failed, ok := event.(*events.NodeFailed)
			if !ok {
				return fmt.Errorf("unexpected event payload %T", event)
			}

			f.Append(Entry{
				Type:        events.NodeFailedEvent,
				ProjectID:   failed.ProjectID,
				ExecutionID: failed.ExecutionID,
				NodeID:      failed.NodeID,
				Message:     fmt.Sprintf("node %s failed: %s", failed.NodeID, failed.Error),
				Timestamp:   failed.Timestamp,
			})

			return nil
		},
		events.NodeSkippedEvent: func(ctx context.Context, event any) error {
			skipped, ok := event.(*events.NodeSkipped)
			if !ok {
				return fmt.Errorf("unexpected event payload %T", event)
			}

			f.Append(Entry{
				Type:        events.NodeSkippedEvent,
				ProjectID:   skipped.ProjectID,
				ExecutionID: skipped.ExecutionID,
				NodeID:      skipped.NodeID,
				Message:     fmt.Sprintf("node %s skipped: %s", skipped.NodeID, skipped.Reason),
				Timestamp:   skipped.Timestamp,
			})

			return nil
		},
	}

	for eventType, handler := range handlers {
		err := bus.Handle(eventType, handler)
		if err != nil {
			return fmt.Errorf("failed to attach %s handler: %w", eventType, err)
		}
	}

	return nil
}
