package otlp

import (
	"bytes"
	"context"
	"fmt"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	collogsv1 "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	logsv1 "go.opentelemetry.io/proto/otlp/logs/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"io"
	"net/http"
	"time"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	logsPath = "/v1/logs"
)

// Uploader ships converted telemetry to a collector.
type Uploader interface {
	UploadLogs(ctx context.Context, logs []*logsv1.ResourceLogs) error
	UploadTraces(ctx context.Context, spans []*tracev1.ResourceSpans) error
	Close(ctx context.Context) error
}

type grpcUploader struct {
	conn    *grpc.ClientConn
	logs    collogsv1.LogsServiceClient
	traces  coltracev1.TraceServiceClient
	headers metadata.MD
}

// NewGRPCUploader dials the collector's OTLP gRPC endpoint. Requests are gzip compressed.
func NewGRPCUploader(endpoint string, insecureConn bool, headers map[string]string) (Uploader, error) {
	creds := credentials.NewClientTLSFromCert(nil, "")
	if insecureConn {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.UseCompressor(gzip.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", endpoint, err)
	}
	return &grpcUploader{
		conn:    conn,
		logs:    collogsv1.NewLogsServiceClient(conn),
		traces:  coltracev1.NewTraceServiceClient(conn),
		headers: metadata.New(headers),
	}, nil
}

func (u *grpcUploader) UploadLogs(ctx context.Context, logs []*logsv1.ResourceLogs) error {
	ctx = metadata.NewOutgoingContext(ctx, u.headers)
	res, err := u.logs.Export(ctx, &collogsv1.ExportLogsServiceRequest{ResourceLogs: logs})
	if err != nil {
		return fmt.Errorf("failed to export logs: %w", err)
	}
	if rejected := res.GetPartialSuccess().GetRejectedLogRecords(); rejected > 0 {
		return fmt.Errorf("collector rejected %d log records: %s", rejected, res.GetPartialSuccess().GetErrorMessage())
	}
	return nil
}

func (u *grpcUploader) UploadTraces(ctx context.Context, spans []*tracev1.ResourceSpans) error {
	ctx = metadata.NewOutgoingContext(ctx, u.headers)
	res, err := u.traces.Export(ctx, &coltracev1.ExportTraceServiceRequest{ResourceSpans: spans})
	if err != nil {
		return fmt.Errorf("failed to export traces: %w", err)
	}
	if rejected := res.GetPartialSuccess().GetRejectedSpans(); rejected > 0 {
		return fmt.Errorf("collector rejected %d spans: %s", rejected, res.GetPartialSuccess().GetErrorMessage())
	}
	return nil
}

func (u *grpcUploader) Close(context.Context) error {
	return u.conn.Close()
}

// traceClient is the upload side of an otlptrace client.
type traceClient interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	UploadTraces(ctx context.Context, spans []*tracev1.ResourceSpans) error
}

type httpUploader struct {
	traces  traceClient
	client  *http.Client
	logsURL string
	headers map[string]string
	started bool
}

// NewHTTPUploader uploads traces with the OTLP/HTTP trace client and posts logs as protobuf
// to the collector's /v1/logs endpoint.
func NewHTTPUploader(ctx context.Context, endpoint string, insecureConn bool, headers map[string]string) (Uploader, error) {
	options := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithHeaders(headers),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	scheme := "https://"
	if insecureConn {
		options = append(options, otlptracehttp.WithInsecure())
		scheme = "http://"
	}
	traces := otlptracehttp.NewClient(options...)
	if err := traces.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start OTLP/HTTP trace client for %s: %w", endpoint, err)
	}
	return &httpUploader{
		traces:  traces,
		client:  &http.Client{Timeout: 10 * time.Second},
		logsURL: scheme + endpoint + logsPath,
		headers: headers,
		started: true,
	}, nil
}

func (u *httpUploader) UploadLogs(ctx context.Context, logs []*logsv1.ResourceLogs) error {
	body, err := proto.Marshal(&collogsv1.ExportLogsServiceRequest{ResourceLogs: logs})
	if err != nil {
		return fmt.Errorf("failed to marshal logs: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.logsURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create logs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	for key, value := range u.headers {
		req.Header.Set(key, value)
	}
	res, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to export logs: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(res.Body)
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("failed to export logs: collector answered %s", res.Status)
	}
	return nil
}

func (u *httpUploader) UploadTraces(ctx context.Context, spans []*tracev1.ResourceSpans) error {
	if err := u.traces.UploadTraces(ctx, spans); err != nil {
		return fmt.Errorf("failed to export traces: %w", err)
	}
	return nil
}

func (u *httpUploader) Close(ctx context.Context) error {
	if !u.started {
		return nil
	}
	u.started = false
	return u.traces.Stop(ctx)
}
