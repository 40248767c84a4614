package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/Avi18971911/augur-go/pkg/write_buffer"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
	"net/http"
	"sync/atomic"
	"time"
)

const closeTimeout = 5 * time.Second

type Options struct {
	Addresses []string
	Username  string
	Password  string
	// RefreshRate defaults to Async.
	RefreshRate RefreshRate
	BatchSize   int
	// SkipBootstrap leaves index creation to the operator.
	SkipBootstrap bool
	Logger        *zap.Logger

	// HTTPTransport replaces the HTTP round tripper of the Elasticsearch client.
	HTTPTransport http.RoundTripper
}

// document is one bulk action: the target index, an optional id and the source.
type document struct {
	index  string
	id     string
	source DocumentMap
}

// Transport writes envelopes straight into Elasticsearch. Events land in the event index
// keyed by event id, every span of a transaction in the span index keyed by span id.
type Transport struct {
	client    AugurClient
	documents *write_buffer.WriteBufferImpl[document]
	logger    *zap.Logger
	closed    atomic.Bool
}

func NewTransport(ctx context.Context, options Options) (*Transport, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: options.Addresses,
		Username:  options.Username,
		Password:  options.Password,
		Transport: options.HTTPTransport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	if !options.SkipBootstrap {
		if err := NewBootstrapper(es, logger).BootstrapElasticsearch(ctx); err != nil {
			return nil, err
		}
	}
	refreshRate := options.RefreshRate
	if refreshRate == "" {
		refreshRate = Async
	}
	return newTransport(NewAugurClientImpl(es, refreshRate), options.BatchSize, logger), nil
}

func newTransport(client AugurClient, batchSize int, logger *zap.Logger) *Transport {
	t := &Transport{client: client, logger: logger}
	t.documents = write_buffer.NewWriteBufferImpl[document](t.bulkIndex, batchSize, logger)
	return t
}

func (t *Transport) Send(_ context.Context, envelope *transport.Envelope) (transport.Outcome, error) {
	if t.closed.Load() {
		return transport.Dropped, transport.ErrClosed
	}
	documents, err := documentsFromEnvelope(envelope)
	if err != nil {
		return transport.Dropped, fmt.Errorf("failed to convert %s envelope: %w", envelope.Kind, err)
	}
	t.documents.WriteToBuffer(documents)
	return transport.Queued, nil
}

func (t *Transport) Flush(ctx context.Context) error {
	return t.documents.Flush(ctx)
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := t.Flush(ctx); err != nil {
		t.logger.Error("Failed to flush elasticsearch transport on close", zap.Error(err))
		return err
	}
	return nil
}

func (t *Transport) bulkIndex(ctx context.Context, documents []document) error {
	metaInfo := make([]MetaMap, len(documents))
	documentInfo := make([]DocumentMap, len(documents))
	for i, doc := range documents {
		action := map[string]interface{}{"_index": doc.index}
		if doc.id != "" {
			action["_id"] = doc.id
		}
		metaInfo[i] = MetaMap{"index": action}
		documentInfo[i] = doc.source
	}
	return t.client.BulkIndex(ctx, metaInfo, documentInfo, "")
}

func documentsFromEnvelope(envelope *transport.Envelope) ([]document, error) {
	createdAt := time.Now().UTC()
	switch envelope.Kind {
	case transport.EventKind:
		if envelope.Event == nil {
			return nil, fmt.Errorf("envelope %s has no event", envelope.EventID)
		}
		source, err := eventDocument(envelope.Event)
		if err != nil {
			return nil, err
		}
		source["created_at"] = createdAt
		if envelope.DSN != "" {
			source["dsn"] = envelope.DSN
		}
		return []document{{index: EventIndexName, id: envelope.Event.EventID, source: source}}, nil
	case transport.TransactionKind:
		if envelope.Event == nil {
			return nil, fmt.Errorf("envelope %s has no event", envelope.EventID)
		}
		return spanDocuments(envelope.Event, createdAt)
	case transport.SessionKind:
		if envelope.Session == nil {
			return nil, fmt.Errorf("session envelope has no session")
		}
		source, err := toDocument(envelope.Session)
		if err != nil {
			return nil, err
		}
		source["created_at"] = createdAt
		id := fmt.Sprintf("%s-%d", envelope.Session.SessionID, envelope.Session.Sequence)
		return []document{{index: SessionIndexName, id: id, source: source}}, nil
	case transport.MetricsKind:
		return []document{{
			index:  MetricsIndexName,
			source: DocumentMap{"created_at": createdAt, "metrics": envelope.Metrics},
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", transport.ErrUnsupportedKind, envelope.Kind)
	}
}

// eventDocument flattens the trace ids to the top level so that events can be joined with spans.
func eventDocument(event *model.Event) (DocumentMap, error) {
	source, err := toDocument(event)
	if err != nil {
		return nil, err
	}
	if tc, ok := event.TraceContext(); ok {
		source["trace_id"] = tc.TraceID
		source["span_id"] = tc.SpanID
	}
	return source, nil
}

func spanDocuments(event *model.Event, createdAt time.Time) ([]document, error) {
	root, ok := event.RootSpan()
	if !ok {
		return nil, fmt.Errorf("transaction %s has no trace context", event.EventID)
	}
	payloads := append([]model.SpanPayload{root}, event.Spans...)
	documents := make([]document, len(payloads))
	for i, payload := range payloads {
		source, err := toDocument(payload)
		if err != nil {
			return nil, err
		}
		source["transaction_id"] = event.EventID
		source["created_at"] = createdAt
		source["duration_ms"] = float64(payload.Timestamp.Sub(payload.StartTimestamp)) / float64(time.Millisecond)
		documents[i] = document{index: SpanIndexName, id: payload.SpanID, source: source}
	}
	return documents, nil
}

func toDocument(value interface{}) (DocumentMap, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var source DocumentMap
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return source, nil
}
