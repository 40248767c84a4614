// Package augurtest provides a client wired to an in-memory transport for tests of code that
// reports through augur.
package augurtest

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/Avi18971911/augur-go/pkg/transport/memory"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"testing"
	"time"
)

const Dsn = "http://public@localhost:4317/1"

// Harness bundles a client, its transport and a context whose isolation scope is bound to the
// client. Nothing is registered globally, so harnesses of parallel tests do not interfere.
type Harness struct {
	Client    *augur.Client
	Transport *memory.Transport
	Ctx       context.Context
}

func NewHarness(t *testing.T, options augur.Options) *Harness {
	t.Helper()
	memoryTransport := memory.NewTransport()
	if options.Dsn == "" {
		options.Dsn = Dsn
	}
	if options.Transport == nil {
		options.Transport = memoryTransport
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	client, err := augur.NewClient(options)
	assert.Nil(t, err)
	ctx, isolation := augur.NewIsolationScopeContext(context.Background())
	isolation.SetClient(client)
	t.Cleanup(func() {
		client.Close(context.Background())
	})
	return &Harness{Client: client, Transport: memoryTransport, Ctx: ctx}
}

// Flush waits for dispatched envelopes and returns those of the given kind.
func (h *Harness) Flush(t *testing.T, kind transport.Kind) []*transport.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.True(t, h.Client.Flush(ctx))
	return h.Transport.Events(kind)
}
