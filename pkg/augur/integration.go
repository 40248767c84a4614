package augur

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"sync"
)

// Integration is a named extension of the client. What it does is declared by the optional
// capability interfaces below; the client only dispatches on those.
type Integration interface {
	Name() string
}

// SetupOnceIntegration is set up once per process, whichever client registers it first.
type SetupOnceIntegration interface {
	Integration
	SetupOnce()
}

// SetupIntegration is set up for every client it is added to.
type SetupIntegration interface {
	Integration
	Setup(client *Client)
}

// EventProcessorIntegration runs ahead of the scope processors.
type EventProcessorIntegration interface {
	Integration
	ProcessEvent(event *model.Event, hint *EventHint, client *Client) *model.Event
}

// DropReasonReporter names the reason recorded when an event processor integration drops an
// event.
type DropReasonReporter interface {
	DropReason() string
}

// SpanDecoratorIntegration sees every span when it starts.
type SpanDecoratorIntegration interface {
	Integration
	DecorateSpan(span *Span)
}

// FlushIntegration ships buffered integration data when the client flushes.
type FlushIntegration interface {
	Integration
	Flush(ctx context.Context, client *Client) error
}

var (
	installedIntegrations   = map[string]struct{}{}
	installedIntegrationsMu sync.Mutex
)

func setupOnce(integration SetupOnceIntegration) {
	installedIntegrationsMu.Lock()
	if _, ok := installedIntegrations[integration.Name()]; ok {
		installedIntegrationsMu.Unlock()
		return
	}
	installedIntegrations[integration.Name()] = struct{}{}
	installedIntegrationsMu.Unlock()
	integration.SetupOnce()
}
