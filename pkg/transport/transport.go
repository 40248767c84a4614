package transport

import (
	"context"
	"errors"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"time"
)

type Kind string

const (
	EventKind       Kind = "event"
	TransactionKind Kind = "transaction"
	SessionKind     Kind = "session"
	MetricsKind     Kind = "metrics"
)

// Envelope is the unit handed from the client to a transport. Exactly one of Event, Session
// or Metrics is set depending on Kind.
type Envelope struct {
	Kind    Kind                  `json:"kind"`
	EventID string                `json:"event_id,omitempty"`
	SentAt  time.Time             `json:"sent_at"`
	DSN     string                `json:"dsn,omitempty"`
	Event   *model.Event          `json:"event,omitempty"`
	Session *model.SessionPayload `json:"session,omitempty"`
	Metrics string                `json:"metrics,omitempty"`
}

// Clone returns a copy that shares no mutable state with e.
func (e *Envelope) Clone() *Envelope {
	c := *e
	c.Event = e.Event.Clone()
	if e.Session != nil {
		payload := *e.Session
		c.Session = &payload
	}
	return &c
}

type Outcome string

const (
	Sent    Outcome = "sent"
	Queued  Outcome = "queued"
	Dropped Outcome = "dropped"
	Failed  Outcome = "failed"
)

// Transport delivers envelopes to a backend. Implementations must be safe for concurrent use
// and must not block callers on network I/O longer than the context allows.
type Transport interface {
	Send(ctx context.Context, envelope *Envelope) (Outcome, error)
	Flush(ctx context.Context) error
	Close() error
}

var (
	ErrClosed          = errors.New("transport is closed")
	ErrUnsupportedKind = errors.New("envelope kind not supported by transport")
)
