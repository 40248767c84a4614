package otlp

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/Avi18971911/augur-go/pkg/write_buffer"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	logsv1 "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"sync/atomic"
	"time"
)

const (
	scopeName    = "github.com/Avi18971911/augur-go"
	closeTimeout = 5 * time.Second
)

type Options struct {
	Endpoint string
	// Protocol is "grpc" (default) or "http".
	Protocol string
	Insecure bool
	// Headers are sent with every upload, e.g. the DSN public key.
	Headers   map[string]string
	BatchSize int

	ServiceName    string
	ServiceVersion string
	Environment    string

	Logger *zap.Logger
	// Uploader replaces the uploader built from Endpoint and Protocol.
	Uploader Uploader
}

// Transport converts envelopes to OTLP and uploads them in batches. Events, sessions and
// metrics become log records; transactions become spans.
type Transport struct {
	uploader Uploader
	resource *resourcev1.Resource
	logs     *write_buffer.WriteBufferImpl[*logsv1.LogRecord]
	spans    *write_buffer.WriteBufferImpl[*tracev1.Span]
	logger   *zap.Logger
	closed   atomic.Bool
}

func NewTransport(ctx context.Context, options Options) (*Transport, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	uploader := options.Uploader
	if uploader == nil {
		var err error
		switch options.Protocol {
		case "", ProtocolGRPC:
			uploader, err = NewGRPCUploader(options.Endpoint, options.Insecure, options.Headers)
		case ProtocolHTTP:
			uploader, err = NewHTTPUploader(ctx, options.Endpoint, options.Insecure, options.Headers)
		default:
			err = fmt.Errorf("unsupported OTLP protocol %q", options.Protocol)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP transport: %w", err)
		}
	}

	t := &Transport{
		uploader: uploader,
		resource: protoResource(newResource(options, logger)),
		logger:   logger,
	}
	t.logs = write_buffer.NewWriteBufferImpl[*logsv1.LogRecord](t.uploadLogs, options.BatchSize, logger)
	t.spans = write_buffer.NewWriteBufferImpl[*tracev1.Span](t.uploadSpans, options.BatchSize, logger)
	return t, nil
}

func newResource(options Options, logger *zap.Logger) *resource.Resource {
	serviceName := options.ServiceName
	if serviceName == "" {
		serviceName = "unknown_service"
	}
	attributes := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	}
	if options.ServiceVersion != "" {
		attributes = append(attributes, resource.WithAttributes(semconv.ServiceVersion(options.ServiceVersion)))
	}
	if options.Environment != "" {
		attributes = append(attributes, resource.WithAttributes(semconv.DeploymentEnvironment(options.Environment)))
	}
	custom, err := resource.New(context.Background(), append(attributes, resource.WithSchemaURL(semconv.SchemaURL))...)
	if err != nil {
		logger.Warn("Failed to detect resource attributes", zap.Error(err))
	}
	merged, err := resource.Merge(resource.Default(), custom)
	if err != nil {
		logger.Warn("Failed to merge resource attributes, using service attributes only", zap.Error(err))
		return custom
	}
	return merged
}

func (t *Transport) Send(_ context.Context, envelope *transport.Envelope) (transport.Outcome, error) {
	if t.closed.Load() {
		return transport.Dropped, transport.ErrClosed
	}
	if envelope.Kind == transport.TransactionKind {
		spans, err := spansFromTransaction(envelope.Event)
		if err != nil {
			return transport.Dropped, fmt.Errorf("failed to convert transaction %s: %w", envelope.EventID, err)
		}
		t.spans.WriteToBuffer(spans)
		return transport.Queued, nil
	}
	record, err := logRecordFromEnvelope(envelope)
	if err != nil {
		return transport.Dropped, fmt.Errorf("failed to convert %s envelope: %w", envelope.Kind, err)
	}
	if envelope.DSN != "" {
		record.Attributes = append(record.Attributes, stringAttribute(AttributeDsn, envelope.DSN))
	}
	t.logs.WriteToBuffer([]*logsv1.LogRecord{record})
	return transport.Queued, nil
}

func (t *Transport) Flush(ctx context.Context) error {
	return errors.Join(t.logs.Flush(ctx), t.spans.Flush(ctx))
}

// Close flushes what is buffered and releases the uploader. Envelopes sent afterwards are
// dropped.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	flushErr := t.Flush(ctx)
	if flushErr != nil {
		t.logger.Error("Failed to flush OTLP transport on close", zap.Error(flushErr))
	}
	return errors.Join(flushErr, t.uploader.Close(ctx))
}

func (t *Transport) uploadLogs(ctx context.Context, records []*logsv1.LogRecord) error {
	return t.uploader.UploadLogs(ctx, []*logsv1.ResourceLogs{{
		Resource:  t.resource,
		SchemaUrl: semconv.SchemaURL,
		ScopeLogs: []*logsv1.ScopeLogs{{
			Scope:      &commonv1.InstrumentationScope{Name: scopeName},
			LogRecords: records,
		}},
	}})
}

func (t *Transport) uploadSpans(ctx context.Context, spans []*tracev1.Span) error {
	return t.uploader.UploadTraces(ctx, []*tracev1.ResourceSpans{{
		Resource:   t.resource,
		SchemaUrl:  semconv.SchemaURL,
		ScopeSpans: []*tracev1.ScopeSpans{{
			Scope: &commonv1.InstrumentationScope{Name: scopeName},
			Spans: spans,
		}},
	}})
}
