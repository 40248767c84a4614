package otlp

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	collogsv1 "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	logsv1 "go.opentelemetry.io/proto/otlp/logs/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"net"
	"sync"
	"testing"
	"time"
)

type logsCollector struct {
	collogsv1.UnimplementedLogsServiceServer
	mu       sync.Mutex
	requests []*collogsv1.ExportLogsServiceRequest
	keys     []string
}

func (c *logsCollector) Export(ctx context.Context, req *collogsv1.ExportLogsServiceRequest) (*collogsv1.ExportLogsServiceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		c.keys = append(c.keys, md.Get("x-augur-key")...)
	}
	return &collogsv1.ExportLogsServiceResponse{}, nil
}

func (c *logsCollector) records() []*logsv1.LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var records []*logsv1.LogRecord
	for _, req := range c.requests {
		for _, resourceLogs := range req.ResourceLogs {
			for _, scopeLogs := range resourceLogs.ScopeLogs {
				records = append(records, scopeLogs.LogRecords...)
			}
		}
	}
	return records
}

type traceCollector struct {
	coltracev1.UnimplementedTraceServiceServer
	mu       sync.Mutex
	requests []*coltracev1.ExportTraceServiceRequest
}

func (c *traceCollector) Export(_ context.Context, req *coltracev1.ExportTraceServiceRequest) (*coltracev1.ExportTraceServiceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return &coltracev1.ExportTraceServiceResponse{}, nil
}

func (c *traceCollector) resourceSpans() []*tracev1.ResourceSpans {
	c.mu.Lock()
	defer c.mu.Unlock()
	var spans []*tracev1.ResourceSpans
	for _, req := range c.requests {
		spans = append(spans, req.ResourceSpans...)
	}
	return spans
}

func startCollector(t *testing.T) (string, *logsCollector, *traceCollector) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	srv := grpc.NewServer()
	logs := &logsCollector{}
	traces := &traceCollector{}
	collogsv1.RegisterLogsServiceServer(srv, logs)
	coltracev1.RegisterTraceServiceServer(srv, traces)
	go func() {
		_ = srv.Serve(listener)
	}()
	t.Cleanup(srv.Stop)
	return listener.Addr().String(), logs, traces
}

func TestTransport(t *testing.T) {
	t.Run("Uploads events as logs and transactions as spans over gRPC", func(t *testing.T) {
		endpoint, logs, traces := startCollector(t)
		otlpTransport, err := NewTransport(context.Background(), Options{
			Endpoint:       endpoint,
			Insecure:       true,
			Headers:        map[string]string{"x-augur-key": "public"},
			ServiceName:    "checkout",
			ServiceVersion: "1.4.0",
			Logger:         zap.NewNop(),
		})
		assert.Nil(t, err)
		defer otlpTransport.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		outcome, err := otlpTransport.Send(ctx, &transport.Envelope{
			Kind:    transport.EventKind,
			EventID: "abc",
			Event:   &model.Event{EventID: "abc", Level: model.ErrorLevel, Message: "payment failed", Timestamp: time.Now()},
		})
		assert.Nil(t, err)
		assert.Equal(t, transport.Queued, outcome)
		_, err = otlpTransport.Send(ctx, &transport.Envelope{Kind: transport.TransactionKind, Event: testTransaction()})
		assert.Nil(t, err)
		_, err = otlpTransport.Send(ctx, &transport.Envelope{Kind: transport.SessionKind, Session: &model.SessionPayload{SessionID: "s1", Status: "ok", Init: true}})
		assert.Nil(t, err)

		assert.Nil(t, otlpTransport.Flush(ctx))

		records := logs.records()
		assert.Len(t, records, 2)
		assert.Equal(t, "payment failed", records[0].Body.GetStringValue())
		assert.Equal(t, logsv1.SeverityNumber_SEVERITY_NUMBER_ERROR, records[0].SeverityNumber)
		assert.Equal(t, "session ok", records[1].Body.GetStringValue())
		assert.Contains(t, logs.keys, "public")

		resourceSpans := traces.resourceSpans()
		assert.Len(t, resourceSpans, 1)
		assert.Len(t, resourceSpans[0].ScopeSpans[0].Spans, 2)
		serviceName := ""
		for _, attribute := range resourceSpans[0].Resource.Attributes {
			if attribute.Key == "service.name" {
				serviceName = attribute.Value.GetStringValue()
			}
		}
		assert.Equal(t, "checkout", serviceName)
	})

	t.Run("Drops envelopes after close", func(t *testing.T) {
		endpoint, logs, _ := startCollector(t)
		otlpTransport, err := NewTransport(context.Background(), Options{Endpoint: endpoint, Insecure: true})
		assert.Nil(t, err)

		_, _ = otlpTransport.Send(context.Background(), &transport.Envelope{Kind: transport.MetricsKind, Metrics: "jobs 1\n"})
		assert.Nil(t, otlpTransport.Close())
		outcome, err := otlpTransport.Send(context.Background(), &transport.Envelope{Kind: transport.MetricsKind, Metrics: "jobs 2\n"})

		assert.Equal(t, transport.Dropped, outcome)
		assert.ErrorIs(t, err, transport.ErrClosed)
		assert.Len(t, logs.records(), 1)
	})

	t.Run("Rejects unknown protocols", func(t *testing.T) {
		_, err := NewTransport(context.Background(), Options{Endpoint: "localhost:4317", Protocol: "carrier-pigeon"})
		assert.NotNil(t, err)
	})
}
