package write_buffer

import (
	"context"
	"fmt"
	"go.uber.org/zap"
	"sync"
	"time"
)

const DefaultWriteQueueSize = 30
const flushTimeOut = 10 * time.Second

// Flusher ships one batch of buffered values to a backend.
type Flusher[ValueType any] func(ctx context.Context, values []ValueType) error

type WriteBuffer[ValueType any] interface {
	WriteToBuffer(value []ValueType)
	Flush(ctx context.Context) error
}

// WriteBufferImpl collects values and flushes them in the background once more than
// writeQueueSize values are waiting. Flush drains synchronously and waits for background flushes.
type WriteBufferImpl[ValueType interface{}] struct {
	writeQueue     []ValueType
	writeQueueSize int
	flusher        Flusher[ValueType]
	logger         *zap.Logger
	mu             sync.Mutex
	flushMu        sync.Mutex
	inFlight       sync.WaitGroup
}

func NewWriteBufferImpl[ValueType interface{}](
	flusher Flusher[ValueType],
	writeQueueSize int,
	logger *zap.Logger,
) *WriteBufferImpl[ValueType] {
	if writeQueueSize <= 0 {
		writeQueueSize = DefaultWriteQueueSize
	}
	return &WriteBufferImpl[ValueType]{
		writeQueue:     []ValueType{},
		writeQueueSize: writeQueueSize,
		flusher:        flusher,
		logger:         logger,
	}
}

func (wbc *WriteBufferImpl[ValueType]) WriteToBuffer(
	value []ValueType,
) {
	wbc.mu.Lock()
	wbc.writeQueue = append(wbc.writeQueue, value...)
	full := len(wbc.writeQueue) > wbc.writeQueueSize
	wbc.mu.Unlock()
	if full {
		wbc.inFlight.Add(1)
		go func() {
			defer wbc.inFlight.Done()
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeOut)
			defer cancel()
			err := wbc.flush(ctx)
			if err != nil {
				wbc.logger.Error("Failed to flush write buffer", zap.Error(err))
			}
		}()
	}
}

func (wbc *WriteBufferImpl[ValueType]) Flush(ctx context.Context) error {
	err := wbc.flush(ctx)
	done := make(chan struct{})
	go func() {
		wbc.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for background flushes: %w", ctx.Err())
	}
	return err
}

func (wbc *WriteBufferImpl[ValueType]) flush(ctx context.Context) error {
	wbc.flushMu.Lock()
	defer wbc.flushMu.Unlock()
	wbc.mu.Lock()
	batch := wbc.writeQueue
	wbc.writeQueue = []ValueType{}
	wbc.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	err := wbc.flusher(ctx, batch)
	if err != nil {
		return fmt.Errorf("error flushing %d buffered values: %w", len(batch), err)
	}
	return nil
}

func (wbc *WriteBufferImpl[ValueType]) Len() int {
	wbc.mu.Lock()
	defer wbc.mu.Unlock()
	return len(wbc.writeQueue)
}
