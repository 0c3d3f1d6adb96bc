package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/pkg/domain"
	audit "onboard/pkg/platform/audit"
	"onboard/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	processID := domain.NewProcessID()
	err := pub.Emit(context.Background(), audit.Event{
		ProcessID: processID,
		Action:    string(audit.EventProcessStarted),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), processID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventProcessStarted), events[0].Action)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	processID := domain.NewProcessID()
	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			ProcessID: processID,
			Action:    string(audit.EventStageCompleted),
		}))
	}

	pub.Close()

	events, err := store.ListByProcess(context.Background(), processID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_NoPanic(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{
				ProcessID: domain.NewProcessID(),
				Action:    string(audit.EventStageCompleted),
			})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_Timestamps(t *testing.T) {
	t.Run("sets timestamp when missing", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := NewPublisher(store)
		processID := domain.NewProcessID()

		before := time.Now()
		require.NoError(t, pub.Emit(context.Background(), audit.Event{ProcessID: processID, Action: string(audit.EventProcessFailed)}))
		after := time.Now()

		events, err := pub.List(context.Background(), processID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.False(t, events[0].Timestamp.Before(before))
		assert.False(t, events[0].Timestamp.After(after))
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	})

	t.Run("preserves existing timestamp", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := NewPublisher(store)
		processID := domain.NewProcessID()
		fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

		require.NoError(t, pub.Emit(context.Background(), audit.Event{ProcessID: processID, Action: string(audit.EventManualReview), Timestamp: fixed}))

		events, err := pub.List(context.Background(), processID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, fixed, events[0].Timestamp)
	})
}

func TestPublisher_EmitAfterCloseFallsBackToSync(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))
	pub.Close()
	pub.Close()

	processID := domain.NewProcessID()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{ProcessID: processID, Action: string(audit.EventProcessPurged)}))

	events, err := store.ListByProcess(context.Background(), processID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
