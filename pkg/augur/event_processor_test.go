package augur

import (
	"context"
	"errors"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"testing"
)

func TestEventProcessors(t *testing.T) {
	t.Run("A processor returning nil stops the pipeline and the event never reaches the transport", func(t *testing.T) {
		client, memoryTransport := setupClient(t, Options{})
		ctx := context.Background()
		laterCalled := false
		CurrentScope(ctx).AddEventProcessor(func(event *model.Event, _ *EventHint) *model.Event {
			return nil
		})
		CurrentScope(ctx).AddEventProcessor(func(event *model.Event, _ *EventHint) *model.Event {
			laterCalled = true
			return event
		})

		eventID := CaptureMessage(ctx, "dropped", nil)

		assert.Equal(t, "", eventID)
		assert.False(t, laterCalled)
		assert.Empty(t, flushEnvelopes(t, client, memoryTransport, transport.EventKind))
		assert.Equal(t, uint64(1), client.DroppedEvents(dropReasonEventProcessor, CategoryError))
	})

	t.Run("Processors run in registration order, global first and client last", func(t *testing.T) {
		client, memoryTransport := setupClient(t, Options{})
		ctx := context.Background()
		var order []string
		record := func(name string) EventProcessor {
			return func(event *model.Event, _ *EventHint) *model.Event {
				order = append(order, name)
				return event
			}
		}
		client.AddEventProcessor(record("client"))
		CurrentScope(ctx).AddEventProcessor(record("current"))
		IsolationScope(ctx).AddEventProcessor(record("isolation"))
		GlobalScope().AddEventProcessor(record("global-1"))
		GlobalScope().AddEventProcessor(record("global-2"))

		CaptureMessage(ctx, "ordered", nil)

		assert.Equal(t, []string{"global-1", "global-2", "isolation", "current", "client"}, order)
		assert.Len(t, flushEnvelopes(t, client, memoryTransport, transport.EventKind), 1)
	})

	t.Run("A panicking processor lets the event through", func(t *testing.T) {
		client, memoryTransport := setupClient(t, Options{})
		ctx := context.Background()
		CurrentScope(ctx).AddEventProcessor(func(event *model.Event, _ *EventHint) *model.Event {
			panic("processor fault")
		})

		assert.NotEqual(t, "", CaptureMessage(ctx, "survives", nil))
		assert.Len(t, flushEnvelopes(t, client, memoryTransport, transport.EventKind), 1)
	})

	t.Run("BeforeSend drops are counted separately", func(t *testing.T) {
		client, memoryTransport := setupClient(t, Options{
			BeforeSend: func(event *model.Event, _ *EventHint) *model.Event {
				return nil
			},
		})

		CaptureException(context.Background(), errors.New("boom"), nil)

		assert.Empty(t, flushEnvelopes(t, client, memoryTransport, transport.EventKind))
		assert.Equal(t, uint64(1), client.DroppedEvents(dropReasonBeforeSend, CategoryError))
		assert.Equal(t, uint64(0), client.DroppedEvents(dropReasonEventProcessor, CategoryError))
	})

	t.Run("IgnoreErrors drops matching errors", func(t *testing.T) {
		client, memoryTransport := setupClient(t, Options{IgnoreErrors: []string{"context canceled"}})

		CaptureException(context.Background(), context.Canceled, nil)
		CaptureException(context.Background(), errors.New("kept"), nil)

		envelopes := flushEnvelopes(t, client, memoryTransport, transport.EventKind)
		assert.Len(t, envelopes, 1)
		assert.Equal(t, "kept", envelopes[0].Event.Exception.Values[0].Value)
	})
}

func TestExceptionMechanism(t *testing.T) {
	t.Run("AddExceptionMechanism merges over the default", func(t *testing.T) {
		event := &model.Event{Exception: &model.ExceptionList{Values: []model.Exception{{Type: "inner"}, {Type: "outer"}}}}
		AddExceptionMechanism(event, model.Mechanism{Type: "console", Handled: boolPtr(false)})

		mechanism := event.Exception.Values[1].Mechanism
		assert.Equal(t, "console", mechanism.Type)
		assert.False(t, mechanism.IsHandled())
		assert.Nil(t, event.Exception.Values[0].Mechanism)
	})

	t.Run("AddExceptionMechanism keeps fields it does not override", func(t *testing.T) {
		event := &model.Event{Exception: &model.ExceptionList{Values: []model.Exception{{
			Mechanism: &model.Mechanism{Type: "console", Handled: boolPtr(false)},
		}}}}
		AddExceptionMechanism(event, model.Mechanism{Data: map[string]interface{}{"k": "v"}})

		mechanism := event.Exception.Values[0].Mechanism
		assert.Equal(t, "console", mechanism.Type)
		assert.False(t, mechanism.IsHandled())
		assert.Equal(t, "v", mechanism.Data["k"])
	})

	t.Run("Exceptions without a handled flag get the default", func(t *testing.T) {
		event := &model.Event{Exception: &model.ExceptionList{Values: []model.Exception{
			{Type: "untagged"},
			{Type: "typed", Mechanism: &model.Mechanism{Type: "custom"}},
		}}}
		ensureMechanism(event, zap.NewNop())

		assert.Equal(t, MechanismGeneric, event.Exception.Values[0].Mechanism.Type)
		assert.True(t, event.Exception.Values[0].Mechanism.IsHandled())
		assert.Equal(t, "custom", event.Exception.Values[1].Mechanism.Type)
		assert.True(t, event.Exception.Values[1].Mechanism.IsHandled())
	})
}
