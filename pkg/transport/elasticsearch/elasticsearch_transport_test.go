package elasticsearch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeCluster struct {
	mu           sync.Mutex
	createdIndex []string
	bulkLines    []map[string]interface{}
	indexExists  bool
	rejectBulk   bool
}

func (c *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = w.Write([]byte(`{"version":{"number":"8.10.2"},"tagline":"You Know, for Search"}`))
	case r.Method == http.MethodPut:
		if c.indexExists {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"},"status":400}`))
			return
		}
		c.createdIndex = append(c.createdIndex, r.URL.Path[1:])
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case r.URL.Path == "/_bulk":
		scanner := bufio.NewScanner(r.Body)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		for scanner.Scan() {
			var line map[string]interface{}
			_ = json.Unmarshal(scanner.Bytes(), &line)
			c.bulkLines = append(c.bulkLines, line)
		}
		if c.rejectBulk {
			_, _ = w.Write([]byte(`{"errors":true,"items":[{"index":{"_index":"event_index","_id":"abc","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad field"}}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// actions returns the meta line of every bulk action.
func (c *fakeCluster) actions() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	var actions []map[string]interface{}
	for i := 0; i < len(c.bulkLines); i += 2 {
		actions = append(actions, c.bulkLines[i]["index"].(map[string]interface{}))
	}
	return actions
}

func (c *fakeCluster) source(i int) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bulkLines[2*i+1]
}

func newTestTransport(t *testing.T, cluster *fakeCluster) *Transport {
	t.Helper()
	server := httptest.NewServer(cluster)
	t.Cleanup(server.Close)
	esTransport, err := NewTransport(context.Background(), Options{
		Addresses: []string{server.URL},
		Logger:    zap.NewNop(),
	})
	assert.Nil(t, err)
	return esTransport
}

func testTransaction() *model.Event {
	start := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	return &model.Event{
		EventID:        "tx-1",
		Type:           model.TransactionEventType,
		Transaction:    "GET /accounts/{id}",
		StartTimestamp: start,
		Timestamp:      start.Add(250 * time.Millisecond),
		Contexts: map[string]map[string]any{
			"trace": {"trace_id": "771a43a4192642f0b136d5159a501700", "span_id": "b2ad18b4ba1f4ad1", "op": "http.server"},
		},
		Spans: []model.SpanPayload{{
			TraceID:        "771a43a4192642f0b136d5159a501700",
			SpanID:         "a1b2c3d4e5f60718",
			ParentSpanID:   "b2ad18b4ba1f4ad1",
			Op:             "db.query",
			StartTimestamp: start,
			Timestamp:      start.Add(40 * time.Millisecond),
		}},
	}
}

func TestNewTransport(t *testing.T) {
	t.Run("Creates every index on bootstrap", func(t *testing.T) {
		cluster := &fakeCluster{}
		newTestTransport(t, cluster)
		assert.ElementsMatch(t, []string{EventIndexName, SpanIndexName, SessionIndexName, MetricsIndexName}, cluster.createdIndex)
	})

	t.Run("Tolerates indices that already exist", func(t *testing.T) {
		cluster := &fakeCluster{indexExists: true}
		newTestTransport(t, cluster)
		assert.Empty(t, cluster.createdIndex)
	})
}

func TestTransport_Send(t *testing.T) {
	t.Run("Indexes events by id and spans by span id", func(t *testing.T) {
		cluster := &fakeCluster{}
		esTransport := newTestTransport(t, cluster)
		ctx := context.Background()

		outcome, err := esTransport.Send(ctx, &transport.Envelope{
			Kind:    transport.EventKind,
			EventID: "abc",
			DSN:     "http://public@localhost:9200/1",
			Event: &model.Event{
				EventID:  "abc",
				Message:  "payment failed",
				Contexts: map[string]map[string]any{"trace": {"trace_id": "771a43a4192642f0b136d5159a501700", "span_id": "b2ad18b4ba1f4ad1"}},
			},
		})
		assert.Nil(t, err)
		assert.Equal(t, transport.Queued, outcome)
		_, err = esTransport.Send(ctx, &transport.Envelope{Kind: transport.TransactionKind, EventID: "tx-1", Event: testTransaction()})
		assert.Nil(t, err)
		_, err = esTransport.Send(ctx, &transport.Envelope{Kind: transport.SessionKind, Session: &model.SessionPayload{SessionID: "s1", Sequence: 3, Status: "ok"}})
		assert.Nil(t, err)
		assert.Nil(t, esTransport.Flush(ctx))

		actions := cluster.actions()
		assert.Len(t, actions, 4)
		assert.Equal(t, map[string]interface{}{"_index": EventIndexName, "_id": "abc"}, actions[0])
		assert.Equal(t, map[string]interface{}{"_index": SpanIndexName, "_id": "b2ad18b4ba1f4ad1"}, actions[1])
		assert.Equal(t, map[string]interface{}{"_index": SpanIndexName, "_id": "a1b2c3d4e5f60718"}, actions[2])
		assert.Equal(t, map[string]interface{}{"_index": SessionIndexName, "_id": "s1-3"}, actions[3])

		event := cluster.source(0)
		assert.Equal(t, "payment failed", event["message"])
		assert.Equal(t, "771a43a4192642f0b136d5159a501700", event["trace_id"])
		assert.Equal(t, "http://public@localhost:9200/1", event["dsn"])
		root := cluster.source(1)
		assert.Equal(t, "GET /accounts/{id}", root["description"])
		assert.Equal(t, "tx-1", root["transaction_id"])
		assert.Equal(t, 250.0, root["duration_ms"])
	})

	t.Run("Surfaces documents rejected by the bulk api", func(t *testing.T) {
		cluster := &fakeCluster{rejectBulk: true}
		esTransport := newTestTransport(t, cluster)
		_, _ = esTransport.Send(context.Background(), &transport.Envelope{Kind: transport.EventKind, EventID: "abc", Event: &model.Event{EventID: "abc"}})

		err := esTransport.Flush(context.Background())

		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "bad field")
	})

	t.Run("Drops envelopes after close", func(t *testing.T) {
		esTransport := newTestTransport(t, &fakeCluster{})
		assert.Nil(t, esTransport.Close())
		outcome, err := esTransport.Send(context.Background(), &transport.Envelope{Kind: transport.MetricsKind, Metrics: "jobs 1\n"})
		assert.Equal(t, transport.Dropped, outcome)
		assert.True(t, errors.Is(err, transport.ErrClosed))
	})

	t.Run("Rejects transactions without a trace context", func(t *testing.T) {
		esTransport := newTestTransport(t, &fakeCluster{})
		outcome, err := esTransport.Send(context.Background(), &transport.Envelope{Kind: transport.TransactionKind, Event: &model.Event{EventID: "tx"}})
		assert.Equal(t, transport.Dropped, outcome)
		assert.NotNil(t, err)
	})
}
