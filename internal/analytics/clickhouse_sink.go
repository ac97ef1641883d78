package analytics

import (
	"context"
	"time"

	"github.com/character-hunt/internal/logging"
)

const (
	defaultBufferSize = 1024
	defaultBatchSize  = 200
)

// inserter is the slice of the ClickHouse layer the sink needs. Narrowed to
// an interface so tests can capture batches without a live server.
type inserter interface {
	InsertEvents(ctx context.Context, events []Event) error
}

// ClickHouseSink buffers events in memory and writes them out in batches
// from a background goroutine. A full buffer drops the newest event; a
// failed batch is logged and dropped. Neither ever surfaces to the game.
type ClickHouseSink struct {
	events        chan Event
	inserter      inserter
	flushInterval time.Duration
	batchSize     int
	logger        *logging.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewClickHouseSink creates a sink writing through the given inserter
func NewClickHouseSink(ins inserter, flushInterval time.Duration, logger *logging.Logger) *ClickHouseSink {
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &ClickHouseSink{
		events:        make(chan Event, defaultBufferSize),
		inserter:      ins,
		flushInterval: flushInterval,
		batchSize:     defaultBatchSize,
		logger:        logger,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Record implements Sink. Never blocks: when the buffer is full the event is
// dropped and counted against the next flush log line.
func (s *ClickHouseSink) Record(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case s.events <- e:
	default:
		s.logger.WithField("type", string(e.Type)).Warn("analytics buffer full, event dropped")
	}
}

// Start launches the flush loop
func (s *ClickHouseSink) Start() {
	go s.flushLoop()
}

// Stop drains the buffer, flushes once more and waits for the loop to exit
func (s *ClickHouseSink) Stop(ctx context.Context) error {
	close(s.stopCh)
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ClickHouseSink) flushLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, s.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.inserter.InsertEvents(ctx, batch); err != nil {
			s.logger.WithError(err).WithField("events", len(batch)).Error("analytics flush failed, batch dropped")
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case e := <-s.events:
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stopCh:
			// Drain whatever is already buffered, then go
			for {
				select {
				case e := <-s.events:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}
