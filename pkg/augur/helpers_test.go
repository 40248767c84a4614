package augur

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/Avi18971911/augur-go/pkg/transport/memory"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"testing"
	"time"
)

const testDsn = "http://public@localhost:4317/1"

func setupClient(t *testing.T, options Options) (*Client, *memory.Transport) {
	t.Helper()
	resetForTest()
	memoryTransport := memory.NewTransport()
	if options.Dsn == "" {
		options.Dsn = testDsn
	}
	if options.Transport == nil {
		options.Transport = memoryTransport
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	client, err := Init(options)
	assert.Nil(t, err)
	t.Cleanup(func() {
		resetForTest()
	})
	return client, memoryTransport
}

func flushEnvelopes(t *testing.T, client *Client, memoryTransport *memory.Transport, kind transport.Kind) []*transport.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.True(t, client.Flush(ctx))
	return memoryTransport.Events(kind)
}
