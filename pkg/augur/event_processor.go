package augur

import (
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"go.uber.org/zap"
)

// EventProcessor transforms an event before it is sent. Returning nil drops the event and
// stops the pipeline.
type EventProcessor func(event *model.Event, hint *EventHint) *model.Event

// EventHint carries producer data that is not part of the event payload.
type EventHint struct {
	// EventID, when set, is used instead of a generated id.
	EventID string
	// OriginalException is the error the event was built from, if any.
	OriginalException error
	// RecoveredException is the value passed to panic, if the event was built from one.
	RecoveredException any
	// SyntheticMessage is the message used when the event was built from a non-error value.
	SyntheticMessage string
	Mechanism        *model.Mechanism
	Data             map[string]any
}

const (
	dropReasonEventProcessor = "event_processor"
	dropReasonBeforeSend     = "before_send"
	dropReasonSampleRate     = "sample_rate"
	// DropReasonDuplicate is reported by integrations dropping repeated events.
	DropReasonDuplicate      = "duplicate"
	dropReasonQueueOverflow  = "queue_overflow"
	dropReasonNetworkError   = "network_error"
)

type namedProcessor struct {
	name string
	// reason is recorded when the processor drops an event; empty means event_processor.
	reason    string
	processor EventProcessor
}

// runProcessors applies the processors in order. It returns the surviving event, or nil and
// the drop reason of the processor that dropped it.
func runProcessors(
	event *model.Event,
	hint *EventHint,
	processors []namedProcessor,
	logger *zap.Logger,
) (*model.Event, string) {
	for _, p := range processors {
		result := applyProcessor(p, event, hint, logger)
		if result == nil {
			logger.Debug("Event dropped by processor",
				zap.String("processor", p.name),
				zap.String("event_id", event.EventID),
			)
			if p.reason != "" {
				return nil, p.reason
			}
			return nil, dropReasonEventProcessor
		}
		event = result
	}
	return event, ""
}

// applyProcessor recovers a panicking processor and passes the event through unchanged.
func applyProcessor(
	p namedProcessor,
	event *model.Event,
	hint *EventHint,
	logger *zap.Logger,
) (result *model.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Event processor panicked",
				zap.String("processor", p.name),
				zap.Error(fmt.Errorf("%v", r)),
			)
			result = event
		}
	}()
	return p.processor(event, hint)
}
