package event_bus

import (
	"context"
	"errors"
	"fmt"
	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
	"sync"
)

var (
	ErrNoSubscriber  = errors.New("no subscriber for topic")
	ErrSnapshotValue = errors.New("failed to snapshot published value")
)

// AugurEventBus hands values from publishers to asynchronous subscribers. Publish passes a
// snapshot of the value, so the publisher may keep mutating its copy.
type AugurEventBus[T any] interface {
	Subscribe(topic string, handler func(input T) error, transactional bool) error
	Publish(topic string, arg T) error
	// Wait blocks until every value published so far has been handled, or ctx is done.
	Wait(ctx context.Context) error
}

type AugurEventBusImpl[T any] struct {
	eventBus EventBus.Bus
	snapshot func(T) T
	logger   *zap.Logger

	mu          sync.Mutex
	subscribers map[string]int
	inFlight    int
	idle        chan struct{}
}

// NewAugurEventBus creates a bus. snapshot copies a value at publish time; nil passes values
// through as they are.
func NewAugurEventBus[T any](
	eventBus EventBus.Bus,
	snapshot func(T) T,
	logger *zap.Logger,
) AugurEventBus[T] {
	return &AugurEventBusImpl[T]{
		eventBus:    eventBus,
		snapshot:    snapshot,
		logger:      logger,
		subscribers: make(map[string]int),
	}
}

func (ev *AugurEventBusImpl[T]) Subscribe(
	topic string,
	handler func(input T) error,
	transactional bool,
) error {
	err := ev.eventBus.SubscribeAsync(
		topic,
		func(input T) {
			defer ev.handled()
			defer func() {
				if r := recover(); r != nil {
					ev.logger.Error("Handler panicked during subscription of topic",
						zap.String("topic", topic),
						zap.Any("panic", r),
					)
				}
			}()
			if err := handler(input); err != nil {
				ev.logger.Error("Failed to handle input during subscription of topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		},
		transactional,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	ev.mu.Lock()
	ev.subscribers[topic]++
	ev.mu.Unlock()
	return nil
}

func (ev *AugurEventBusImpl[T]) Publish(
	topic string,
	arg T,
) error {
	value, err := ev.takeSnapshot(arg)
	if err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	ev.mu.Lock()
	subscribers := ev.subscribers[topic]
	if subscribers == 0 {
		ev.mu.Unlock()
		return fmt.Errorf("failed to publish to topic %s: %w", topic, ErrNoSubscriber)
	}
	if ev.inFlight == 0 {
		ev.idle = make(chan struct{})
	}
	ev.inFlight += subscribers
	ev.mu.Unlock()

	ev.eventBus.Publish(topic, value)
	return nil
}

func (ev *AugurEventBusImpl[T]) Wait(ctx context.Context) error {
	ev.mu.Lock()
	if ev.inFlight == 0 {
		ev.mu.Unlock()
		return nil
	}
	idle := ev.idle
	ev.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ev *AugurEventBusImpl[T]) handled() {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.inFlight--
	if ev.inFlight == 0 {
		close(ev.idle)
	}
}

func (ev *AugurEventBusImpl[T]) takeSnapshot(arg T) (value T, err error) {
	if ev.snapshot == nil {
		return arg, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSnapshotValue, r)
		}
	}()
	return ev.snapshot(arg), nil
}
