package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kitchen-bot/internal/core/dialogue"
	"kitchen-bot/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	order    map[int64][]string
	block    chan struct{}
	failOn   string
	canceled int
}

func (h *recordingHandler) Handle(ctx context.Context, ev dialogue.Event) error {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if ctx.Err() != nil {
		h.canceled++
	}
	h.order[ev.UserID] = append(h.order[ev.UserID], ev.Text)
	if ev.Text == h.failOn {
		return errors.New("boom")
	}
	if ev.Text == "panic" {
		panic("handler panic")
	}
	return nil
}

func TestManager_ProcessesAll(t *testing.T) {
	h := &recordingHandler{order: map[int64][]string{}, failOn: "b"}
	m := NewManager(config.QueueConfig{Workers: 3, MaxSize: 30}, h)
	m.Start(context.Background())

	for _, text := range []string{"a", "b", "panic", "c"} {
		require.NoError(t, m.Enqueue(dialogue.Event{UserID: 10, Text: text}))
		require.NoError(t, m.Enqueue(dialogue.Event{UserID: 11, Text: text}))
	}
	m.Close()

	assert.ElementsMatch(t, []string{"a", "b", "panic", "c"}, h.order[10])
	assert.ElementsMatch(t, []string{"a", "b", "panic", "c"}, h.order[11])

	status := m.GetQueueStatus()
	assert.Equal(t, int64(6), status.ProcessedCount, "panicking events are not counted")
	assert.Equal(t, 0, status.QueueLength)
	assert.ErrorIs(t, m.Enqueue(dialogue.Event{UserID: 10}), ErrClosed)
}

func TestManager_DropsWhenFull(t *testing.T) {
	h := &recordingHandler{order: map[int64][]string{}, block: make(chan struct{})}
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 1}, h)
	m.Start(context.Background())

	require.NoError(t, m.Enqueue(dialogue.Event{UserID: 1, Text: "first"}))
	// 等待 worker 取走第一個事件
	require.Eventually(t, func() bool { return m.GetQueueStatus().QueueLength == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Enqueue(dialogue.Event{UserID: 1, Text: "second"}))
	assert.ErrorIs(t, m.Enqueue(dialogue.Event{UserID: 1, Text: "third"}), ErrQueueFull)
	assert.Equal(t, int64(1), m.GetQueueStatus().DroppedCount)

	close(h.block)
	m.Close()
	assert.Equal(t, []string{"first", "second"}, h.order[1])
}

func TestManager_CloseDrainsAfterShutdownSignal(t *testing.T) {
	h := &recordingHandler{order: map[int64][]string{}, block: make(chan struct{})}
	m := NewManager(config.QueueConfig{Workers: 1, MaxSize: 5}, h)
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, m.Enqueue(dialogue.Event{UserID: 3, Text: text}))
	}
	cancel()
	close(h.block)
	m.Close()

	assert.Equal(t, []string{"first", "second", "third"}, h.order[3])
	assert.Equal(t, 0, h.canceled)
	assert.Equal(t, int64(3), m.GetQueueStatus().ProcessedCount)
}
