package memory

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"sync"
)

// Transport keeps every envelope it receives. It backs tests and dry runs.
type Transport struct {
	envelopes []*transport.Envelope
	closed    bool
	mu        sync.Mutex
}

func NewTransport() *Transport {
	return &Transport{}
}

func (t *Transport) Send(_ context.Context, envelope *transport.Envelope) (transport.Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.Dropped, transport.ErrClosed
	}
	t.envelopes = append(t.envelopes, envelope)
	return transport.Sent, nil
}

func (t *Transport) Flush(_ context.Context) error {
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Transport) Envelopes() []*transport.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*transport.Envelope(nil), t.envelopes...)
}

func (t *Transport) Events(kind transport.Kind) []*transport.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	var filtered []*transport.Envelope
	for _, envelope := range t.envelopes {
		if envelope.Kind == kind {
			filtered = append(filtered, envelope)
		}
	}
	return filtered
}

func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.envelopes = nil
}
