package event_bus

import (
	"context"
	"errors"
	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"sync"
	"testing"
	"time"
)

type payload struct {
	Name  string
	Count int
	Attrs map[string]any
}

func clonePayload(p *payload) *payload {
	c := *p
	c.Attrs = make(map[string]any, len(p.Attrs))
	for k, v := range p.Attrs {
		c.Attrs[k] = v
	}
	return &c
}

type recorder struct {
	mu       sync.Mutex
	received []*payload
}

func (r *recorder) handle(input *payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, input)
	return nil
}

func (r *recorder) all() []*payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*payload(nil), r.received...)
}

func TestAugurEventBusImpl_Publish(t *testing.T) {
	t.Run("Delivers a snapshot of the published value", func(t *testing.T) {
		bus := NewAugurEventBus[*payload](EventBus.New(), clonePayload, zap.NewNop())
		rec := &recorder{}
		assert.Nil(t, bus.Subscribe("topic", rec.handle, true))

		value := &payload{Name: "first", Attrs: map[string]any{"k": "v"}}
		assert.Nil(t, bus.Publish("topic", value))
		value.Attrs["k"] = "mutated"
		assert.Nil(t, bus.Wait(context.Background()))

		received := rec.all()
		assert.Len(t, received, 1)
		assert.Equal(t, "first", received[0].Name)
		assert.Equal(t, "v", received[0].Attrs["k"])
	})

	t.Run("Keeps values that have no JSON form with their Go types", func(t *testing.T) {
		bus := NewAugurEventBus[*payload](EventBus.New(), clonePayload, zap.NewNop())
		rec := &recorder{}
		assert.Nil(t, bus.Subscribe("topic", rec.handle, true))

		ch := make(chan int)
		assert.Nil(t, bus.Publish("topic", &payload{Count: 200, Attrs: map[string]any{"status": 200, "ch": ch}}))
		assert.Nil(t, bus.Wait(context.Background()))

		received := rec.all()
		assert.Len(t, received, 1)
		assert.Equal(t, 200, received[0].Attrs["status"])
		assert.Equal(t, ch, received[0].Attrs["ch"])
	})

	t.Run("Fails without a subscriber", func(t *testing.T) {
		bus := NewAugurEventBus[*payload](EventBus.New(), nil, zap.NewNop())
		err := bus.Publish("topic", &payload{})
		assert.True(t, errors.Is(err, ErrNoSubscriber))
	})

	t.Run("Fails when the snapshot panics", func(t *testing.T) {
		bus := NewAugurEventBus[*payload](EventBus.New(), clonePayload, zap.NewNop())
		rec := &recorder{}
		assert.Nil(t, bus.Subscribe("topic", rec.handle, true))

		err := bus.Publish("topic", nil)
		assert.True(t, errors.Is(err, ErrSnapshotValue))
		assert.Nil(t, bus.Wait(context.Background()))
		assert.Empty(t, rec.all())
	})

	t.Run("A panicking handler does not block waiters", func(t *testing.T) {
		bus := NewAugurEventBus[*payload](EventBus.New(), nil, zap.NewNop())
		assert.Nil(t, bus.Subscribe("topic", func(*payload) error {
			panic("boom")
		}, true))

		assert.Nil(t, bus.Publish("topic", &payload{}))
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.Nil(t, bus.Wait(ctx))
	})
}

func TestAugurEventBusImpl_Wait(t *testing.T) {
	t.Run("Returns the context error while handlers run", func(t *testing.T) {
		bus := NewAugurEventBus[*payload](EventBus.New(), nil, zap.NewNop())
		release := make(chan struct{})
		assert.Nil(t, bus.Subscribe("topic", func(*payload) error {
			<-release
			return nil
		}, true))
		assert.Nil(t, bus.Publish("topic", &payload{}))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.True(t, errors.Is(bus.Wait(ctx), context.DeadlineExceeded))

		close(release)
		assert.Nil(t, bus.Wait(context.Background()))
	})

	t.Run("Returns at once when nothing was published", func(t *testing.T) {
		bus := NewAugurEventBus[*payload](EventBus.New(), nil, zap.NewNop())
		assert.Nil(t, bus.Wait(context.Background()))
	})
}
