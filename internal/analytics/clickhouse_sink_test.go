package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/character-hunt/internal/logging"
)

type captureInserter struct {
	mu      sync.Mutex
	batches [][]Event
	err     error
}

func (c *captureInserter) InsertEvents(_ context.Context, events []Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	batch := append([]Event(nil), events...)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureInserter) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func sinkLogger() *logging.Logger {
	return logging.New(logging.LevelError, logging.FormatText)
}

func TestClickHouseSink_FlushOnInterval(t *testing.T) {
	ins := &captureInserter{}
	sink := NewClickHouseSink(ins, 20*time.Millisecond, sinkLogger())
	sink.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sink.Stop(ctx)
	}()

	sink.Record(Event{Type: EventCatch, ChatID: 1, UserID: 2, CharacterID: "c1", Amount: 100})
	sink.Record(Event{Type: EventSpawn, ChatID: 1, CharacterID: "c1"})

	require.Eventually(t, func() bool {
		return len(ins.all()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	events := ins.all()
	assert.Equal(t, EventCatch, events[0].Type)
	assert.False(t, events[0].At.IsZero(), "missing timestamp filled in")
}

func TestClickHouseSink_StopDrainsBuffer(t *testing.T) {
	ins := &captureInserter{}
	sink := NewClickHouseSink(ins, time.Hour, sinkLogger())
	sink.Start()

	for i := 0; i < 10; i++ {
		sink.Record(Event{Type: EventPayment, UserID: int64(i), Amount: 5})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sink.Stop(ctx))

	assert.Len(t, ins.all(), 10, "buffered events flushed on stop")
}

func TestClickHouseSink_InsertFailureDropsBatch(t *testing.T) {
	ins := &captureInserter{err: errors.New("connection refused")}
	sink := NewClickHouseSink(ins, time.Hour, sinkLogger())
	sink.Start()

	sink.Record(Event{Type: EventRedeem, UserID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sink.Stop(ctx), "a failing writer never wedges shutdown")
	assert.Empty(t, ins.all())
}

func TestNoopSink(t *testing.T) {
	var s Sink = NoopSink{}
	s.Record(Event{Type: EventGift})
}
