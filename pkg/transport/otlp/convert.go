package otlp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	logsv1 "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"sort"
	"strings"
	"time"
)

const (
	AttributeEventID   = "augur.event.id"
	AttributeEventKind = "augur.event.kind"
	AttributeEventJSON = "augur.event.json"
	AttributeDsn       = "augur.dsn"

	AttributeMechanismType    = "augur.mechanism.type"
	AttributeMechanismHandled = "augur.mechanism.handled"
	AttributeLogger           = "augur.logger"
	AttributeTransaction      = "augur.transaction"
	tagPrefix                 = "augur.tag."
)

// logRecordFromEnvelope converts event, session and metrics envelopes into log records.
func logRecordFromEnvelope(envelope *transport.Envelope) (*logsv1.LogRecord, error) {
	switch envelope.Kind {
	case transport.EventKind:
		if envelope.Event == nil {
			return nil, fmt.Errorf("%s envelope %s has no event", envelope.Kind, envelope.EventID)
		}
		return logRecordFromEvent(envelope.Event)
	case transport.SessionKind:
		if envelope.Session == nil {
			return nil, fmt.Errorf("%s envelope has no session", envelope.Kind)
		}
		return logRecordFromSession(envelope.Session), nil
	case transport.MetricsKind:
		return &logsv1.LogRecord{
			TimeUnixNano:         unixNano(envelope.SentAt),
			ObservedTimeUnixNano: unixNano(time.Now()),
			SeverityNumber:       logsv1.SeverityNumber_SEVERITY_NUMBER_INFO,
			SeverityText:         "INFO",
			Body:                 stringValue(envelope.Metrics),
			Attributes:           []*commonv1.KeyValue{stringAttribute(AttributeEventKind, string(transport.MetricsKind))},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", transport.ErrUnsupportedKind, envelope.Kind)
	}
}

func logRecordFromEvent(event *model.Event) (*logsv1.LogRecord, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.EventID, err)
	}
	severityNumber, severityText := severity(event.Level)
	attributes := []*commonv1.KeyValue{
		stringAttribute(AttributeEventID, event.EventID),
		stringAttribute(AttributeEventKind, string(transport.EventKind)),
		stringAttribute(AttributeEventJSON, string(raw)),
	}
	if event.Release != "" {
		attributes = append(attributes, stringAttribute(string(semconv.ServiceVersionKey), event.Release))
	}
	if event.Environment != "" {
		attributes = append(attributes, stringAttribute(string(semconv.DeploymentEnvironmentKey), event.Environment))
	}
	if event.Logger != "" {
		attributes = append(attributes, stringAttribute(AttributeLogger, event.Logger))
	}
	if event.Transaction != "" {
		attributes = append(attributes, stringAttribute(AttributeTransaction, event.Transaction))
	}

	body := event.Message
	if exception := outermostException(event); exception != nil {
		attributes = append(attributes,
			stringAttribute(string(semconv.ExceptionTypeKey), exception.Type),
			stringAttribute(string(semconv.ExceptionMessageKey), exception.Value),
			stringAttribute(string(semconv.ExceptionStacktraceKey), formatStacktrace(exception.Stacktrace)),
		)
		if exception.Mechanism != nil {
			attributes = append(attributes,
				stringAttribute(AttributeMechanismType, exception.Mechanism.Type),
				boolAttribute(AttributeMechanismHandled, exception.Mechanism.IsHandled()),
			)
		}
		if body == "" {
			body = exception.Type + ": " + exception.Value
		}
	}
	attributes = append(attributes, tagAttributes(event.Tags)...)

	record := &logsv1.LogRecord{
		TimeUnixNano:         unixNano(event.Timestamp),
		ObservedTimeUnixNano: unixNano(time.Now()),
		SeverityNumber:       severityNumber,
		SeverityText:         severityText,
		Body:                 stringValue(body),
		Attributes:           attributes,
	}
	if tc, ok := event.TraceContext(); ok {
		record.TraceId = decodeID(tc.TraceID, 16)
		record.SpanId = decodeID(tc.SpanID, 8)
	}
	return record, nil
}

func logRecordFromSession(sess *model.SessionPayload) *logsv1.LogRecord {
	return &logsv1.LogRecord{
		TimeUnixNano:         unixNano(sess.Timestamp),
		ObservedTimeUnixNano: unixNano(time.Now()),
		SeverityNumber:       logsv1.SeverityNumber_SEVERITY_NUMBER_INFO,
		SeverityText:         "INFO",
		Body:                 stringValue("session " + sess.Status),
		Attributes: []*commonv1.KeyValue{
			stringAttribute(AttributeEventKind, string(transport.SessionKind)),
			stringAttribute("session.id", sess.SessionID),
			stringAttribute("session.distinct_id", sess.DistinctID),
			stringAttribute("session.status", sess.Status),
			intAttribute("session.errors", int64(sess.Errors)),
			boolAttribute("session.init", sess.Init),
			intAttribute("session.sequence", int64(sess.Sequence)),
			doubleAttribute("session.duration", sess.Duration),
			stringAttribute("session.started", sess.Started.UTC().Format(time.RFC3339Nano)),
			stringAttribute(string(semconv.ServiceVersionKey), sess.Attributes.Release),
			stringAttribute(string(semconv.DeploymentEnvironmentKey), sess.Attributes.Environment),
		},
	}
}

// spansFromTransaction converts a transaction event into its root span followed by the
// collected child spans.
func spansFromTransaction(event *model.Event) ([]*tracev1.Span, error) {
	if event == nil {
		return nil, fmt.Errorf("%s envelope has no event", transport.TransactionKind)
	}
	root, ok := event.RootSpan()
	if !ok {
		return nil, fmt.Errorf("transaction %s has no trace context", event.EventID)
	}
	spans := make([]*tracev1.Span, 0, len(event.Spans)+1)
	spans = append(spans, spanFromPayload(root))
	for _, child := range event.Spans {
		spans = append(spans, spanFromPayload(child))
	}
	return spans, nil
}

func spanFromPayload(payload model.SpanPayload) *tracev1.Span {
	attributes := make([]*commonv1.KeyValue, 0, len(payload.Data)+len(payload.Tags)+1)
	if payload.Op != "" {
		attributes = append(attributes, stringAttribute(augur.AttributeOp, payload.Op))
	}
	keys := make([]string, 0, len(payload.Data))
	for key := range payload.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		attributes = append(attributes, &commonv1.KeyValue{Key: key, Value: anyValue(payload.Data[key])})
	}
	attributes = append(attributes, tagAttributes(payload.Tags)...)

	kind, _ := payload.Data[augur.AttributeKind].(string)
	return &tracev1.Span{
		TraceId:           decodeID(payload.TraceID, 16),
		SpanId:            decodeID(payload.SpanID, 8),
		ParentSpanId:      decodeID(payload.ParentSpanID, 8),
		Name:              payload.Description,
		Kind:              spanKind(kind),
		StartTimeUnixNano: unixNano(payload.StartTimestamp),
		EndTimeUnixNano:   unixNano(payload.Timestamp),
		Attributes:        attributes,
		Status:            spanStatus(payload.Status),
	}
}

func spanKind(kind string) tracev1.Span_SpanKind {
	switch kind {
	case augur.KindServer:
		return tracev1.Span_SPAN_KIND_SERVER
	case augur.KindClient:
		return tracev1.Span_SPAN_KIND_CLIENT
	case "PRODUCER":
		return tracev1.Span_SPAN_KIND_PRODUCER
	case "CONSUMER":
		return tracev1.Span_SPAN_KIND_CONSUMER
	default:
		return tracev1.Span_SPAN_KIND_INTERNAL
	}
}

func spanStatus(status model.SpanStatus) *tracev1.Status {
	switch status {
	case model.UNSET:
		return &tracev1.Status{Code: tracev1.Status_STATUS_CODE_UNSET}
	case model.OK:
		return &tracev1.Status{Code: tracev1.Status_STATUS_CODE_OK}
	default:
		return &tracev1.Status{Code: tracev1.Status_STATUS_CODE_ERROR, Message: string(status)}
	}
}

func severity(level model.Level) (logsv1.SeverityNumber, string) {
	switch level {
	case model.DebugLevel:
		return logsv1.SeverityNumber_SEVERITY_NUMBER_DEBUG, "DEBUG"
	case model.WarningLevel:
		return logsv1.SeverityNumber_SEVERITY_NUMBER_WARN, "WARN"
	case model.ErrorLevel:
		return logsv1.SeverityNumber_SEVERITY_NUMBER_ERROR, "ERROR"
	case model.FatalLevel:
		return logsv1.SeverityNumber_SEVERITY_NUMBER_FATAL, "FATAL"
	default:
		return logsv1.SeverityNumber_SEVERITY_NUMBER_INFO, "INFO"
	}
}

func outermostException(event *model.Event) *model.Exception {
	if event.Exception == nil || len(event.Exception.Values) == 0 {
		return nil
	}
	return &event.Exception.Values[len(event.Exception.Values)-1]
}

// formatStacktrace renders frames innermost first, the way Go prints them.
func formatStacktrace(stacktrace *model.Stacktrace) string {
	if stacktrace == nil {
		return ""
	}
	var sb strings.Builder
	for i := len(stacktrace.Frames) - 1; i >= 0; i-- {
		frame := stacktrace.Frames[i]
		function := frame.Function
		if frame.Module != "" {
			function = frame.Module + "." + function
		}
		path := frame.AbsPath
		if path == "" {
			path = frame.Filename
		}
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", function, path, frame.Lineno)
	}
	return sb.String()
}

func tagAttributes(tags map[string]string) []*commonv1.KeyValue {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	attributes := make([]*commonv1.KeyValue, len(keys))
	for i, key := range keys {
		attributes[i] = stringAttribute(tagPrefix+key, tags[key])
	}
	return attributes
}

// protoResource converts an SDK resource into its wire form.
func protoResource(res *resource.Resource) *resourcev1.Resource {
	attributes := make([]*commonv1.KeyValue, 0, res.Len())
	for _, kv := range res.Attributes() {
		attributes = append(attributes, &commonv1.KeyValue{Key: string(kv.Key), Value: attributeValue(kv.Value)})
	}
	return &resourcev1.Resource{Attributes: attributes}
}

func attributeValue(value attribute.Value) *commonv1.AnyValue {
	switch value.Type() {
	case attribute.BOOL:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_BoolValue{BoolValue: value.AsBool()}}
	case attribute.INT64:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: value.AsInt64()}}
	case attribute.FLOAT64:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_DoubleValue{DoubleValue: value.AsFloat64()}}
	default:
		return stringValue(value.Emit())
	}
}

func anyValue(value interface{}) *commonv1.AnyValue {
	switch v := value.(type) {
	case string:
		return stringValue(v)
	case bool:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_BoolValue{BoolValue: v}}
	case int:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: int64(v)}}
	case int8:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: int64(v)}}
	case int16:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: int64(v)}}
	case int32:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: int64(v)}}
	case int64:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: v}}
	case uint8:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: int64(v)}}
	case uint16:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: int64(v)}}
	case uint32:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: int64(v)}}
	case float32:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_DoubleValue{DoubleValue: float64(v)}}
	case float64:
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_DoubleValue{DoubleValue: v}}
	case []interface{}:
		values := make([]*commonv1.AnyValue, len(v))
		for i, item := range v {
			values[i] = anyValue(item)
		}
		return &commonv1.AnyValue{Value: &commonv1.AnyValue_ArrayValue{ArrayValue: &commonv1.ArrayValue{Values: values}}}
	case nil:
		return stringValue("")
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return stringValue(fmt.Sprint(v))
		}
		return stringValue(string(raw))
	}
}

func stringValue(s string) *commonv1.AnyValue {
	return &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: s}}
}

func stringAttribute(key string, value string) *commonv1.KeyValue {
	return &commonv1.KeyValue{Key: key, Value: stringValue(value)}
}

func boolAttribute(key string, value bool) *commonv1.KeyValue {
	return &commonv1.KeyValue{Key: key, Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_BoolValue{BoolValue: value}}}
}

func intAttribute(key string, value int64) *commonv1.KeyValue {
	return &commonv1.KeyValue{Key: key, Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: value}}}
}

func doubleAttribute(key string, value float64) *commonv1.KeyValue {
	return &commonv1.KeyValue{Key: key, Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_DoubleValue{DoubleValue: value}}}
}

// decodeID decodes a hex trace or span id. Invalid ids are omitted.
func decodeID(id string, size int) []byte {
	if id == "" {
		return nil
	}
	b, err := hex.DecodeString(id)
	if err != nil || len(b) != size {
		return nil
	}
	return b
}

func unixNano(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}
