package augur

import (
	"context"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/route"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"sync"
	"time"
)

const (
	AttributeOrigin = "sentry.origin"
	AttributeSource = "sentry.source"
	AttributeKind   = "otel.kind"
	AttributeOp     = "sentry.op"

	OriginManual = "manual"
	KindInternal = "INTERNAL"
	KindServer   = "SERVER"
	KindClient   = "CLIENT"
)

// SpanOptions describes a span to start.
type SpanOptions struct {
	Name       string
	Op         string
	Origin     string
	Source     string
	Kind       string
	Attributes map[string]any
	Tags       map[string]string
	StartTime  time.Time
	// Parent overrides the span active on the current scope.
	Parent *Span
	// ForceTransaction makes the span the root of its own transaction even when it has a parent.
	ForceTransaction bool
	// OnlyIfParent yields a non-recording span when there is no parent.
	OnlyIfParent bool
}

// Span is a timed unit of work. A span without a parent is a transaction: it collects its
// ended descendants and is captured as a transaction event when it ends. Spans move from
// active to ended once; mutations after End are ignored.
type Span struct {
	mu           sync.RWMutex
	traceID      trace.TraceID
	spanID       trace.SpanID
	parentSpanID trace.SpanID
	name         string
	op           string
	status       model.SpanStatus
	attributes   map[string]any
	tags         map[string]string
	startTime    time.Time
	endTime      time.Time
	ended        bool
	sampled      bool
	recording    bool

	root          *Span
	isTransaction bool
	children      []model.SpanPayload
	dsc           map[string]string
	sampleRate    float64

	client    *Client
	current   *Scope
	isolation *Scope
}

type endConfig struct {
	endTime time.Time
}

type EndOption func(*endConfig)

// WithEndTime ends the span at t instead of now.
func WithEndTime(t time.Time) EndOption {
	return func(c *endConfig) {
		c.endTime = t
	}
}

// StartSpan starts a span, makes it the active span of a forked current scope for the
// callback and ends it when the callback returns or panics. A returned error sets the span
// status unless the callback already set one.
func StartSpan(ctx context.Context, options SpanOptions, callback func(ctx context.Context, span *Span) error) error {
	span := startSpan(ctx, options)
	spanCtx, scope := NewScopeContext(ctx)
	scope.SetSpan(span)
	defer func() {
		if r := recover(); r != nil {
			span.setStatusIfUnset(model.InternalError)
			span.End()
			panic(r)
		}
	}()
	err := callback(spanCtx, span)
	if err != nil {
		span.setStatusIfUnset(model.InternalError)
	}
	span.End()
	return err
}

// StartInactiveSpan starts a span without making it active. The caller must end it.
func StartInactiveSpan(ctx context.Context, options SpanOptions) *Span {
	return startSpan(ctx, options)
}

// ContextWithSpan returns a context whose forked current scope has span active.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	spanCtx, scope := NewScopeContext(ctx)
	scope.SetSpan(span)
	return spanCtx
}

// SpanFromContext returns the active span of the current scope, or nil.
func SpanFromContext(ctx context.Context) *Span {
	return CurrentScope(ctx).Span()
}

func startSpan(ctx context.Context, options SpanOptions) (span *Span) {
	client := CurrentClient(ctx)
	current := CurrentScope(ctx)
	isolation := IsolationScope(ctx)
	defer func() {
		if r := recover(); r != nil {
			client.Logger().Error("Failed to start span", zap.Error(fmt.Errorf("%v", r)))
			span = nonRecordingSpan(options)
		}
	}()

	parent := options.Parent
	if parent == nil {
		parent = current.Span()
	}
	if parent == nil && options.OnlyIfParent {
		return nonRecordingSpan(options)
	}

	span = newSpan(options, client)
	span.current = current
	span.isolation = isolation

	switch {
	case parent != nil && !options.ForceTransaction:
		parent.mu.RLock()
		span.traceID = parent.traceID
		span.parentSpanID = parent.spanID
		span.sampled = parent.sampled
		span.root = parent.root
		parent.mu.RUnlock()
		if span.root == nil {
			span.root = parent
		}
		span.dsc = span.root.dynamicSamplingContext()
	case parent != nil:
		parent.mu.RLock()
		span.traceID = parent.traceID
		span.parentSpanID = parent.spanID
		span.sampled = parent.sampled
		parent.mu.RUnlock()
		span.root = span
		span.isTransaction = true
		span.dsc = parent.dynamicSamplingContext()
	default:
		pc := current.PropagationContext()
		span.traceID = pc.TraceID
		span.parentSpanID = pc.ParentSpanID
		span.root = span
		span.isTransaction = true
		decision := client.sampleTrace(SamplingContext{
			Name:       span.name,
			Op:         span.op,
			Source:     options.Source,
			Attributes: span.attributes,
		}, pc.Sampled)
		span.sampled = decision.sampled
		span.sampleRate = decision.rate
		span.dsc = pc.DynamicSamplingContext
		if len(span.dsc) == 0 {
			span.dsc = client.dynamicSamplingContext(span, decision)
		}
		if client.Enabled() {
			current.recordSamplingDecision(pc.TraceID, decision.sampled, span.dsc)
		}
	}
	span.recording = span.sampled
	client.decorateSpan(span)
	return span
}

func newSpan(options SpanOptions, client *Client) *Span {
	startTime := options.StartTime
	if startTime.IsZero() {
		startTime = time.Now()
	}
	origin := options.Origin
	if origin == "" {
		origin = OriginManual
	}
	kind := options.Kind
	if kind == "" {
		kind = KindInternal
	}
	attributes := make(map[string]any, len(options.Attributes)+3)
	for k, v := range options.Attributes {
		attributes[k] = v
	}
	attributes[AttributeOrigin] = origin
	attributes[AttributeKind] = kind
	if options.Source != "" {
		attributes[AttributeSource] = options.Source
	}
	tags := make(map[string]string, len(options.Tags))
	for k, v := range options.Tags {
		tags[k] = v
	}
	return &Span{
		spanID:     newSpanID(),
		name:       options.Name,
		op:         options.Op,
		attributes: attributes,
		tags:       tags,
		startTime:  startTime,
		client:     client,
	}
}

func nonRecordingSpan(options SpanOptions) *Span {
	span := newSpan(options, nil)
	span.traceID = newTraceID()
	return span
}

func (s *Span) TraceID() trace.TraceID {
	if s == nil {
		return trace.TraceID{}
	}
	return s.traceID
}

func (s *Span) SpanID() trace.SpanID {
	if s == nil {
		return trace.SpanID{}
	}
	return s.spanID
}

func (s *Span) ParentSpanID() trace.SpanID {
	if s == nil {
		return trace.SpanID{}
	}
	return s.parentSpanID
}

func (s *Span) Sampled() bool {
	if s == nil {
		return false
	}
	return s.sampled
}

// IsRecording reports whether the span is sampled and still active.
func (s *Span) IsRecording() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording && !s.ended
}

func (s *Span) IsTransaction() bool {
	if s == nil {
		return false
	}
	return s.isTransaction
}

// Root returns the transaction the span belongs to, or nil for non-recording spans.
func (s *Span) Root() *Span {
	if s == nil {
		return nil
	}
	return s.root
}

func (s *Span) Name() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Span) Op() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.op
}

func (s *Span) Status() model.SpanStatus {
	if s == nil {
		return model.UNSET
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Span) StartTime() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.startTime
}

// EndTime returns the recorded end, or the zero time while the span is active.
func (s *Span) EndTime() time.Time {
	if s == nil {
		return time.Time{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endTime
}

func (s *Span) Ended() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}

func (s *Span) Attribute(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.attributes[key]
	return v, ok
}

func (s *Span) Attributes() map[string]any {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	attributes := make(map[string]any, len(s.attributes))
	for k, v := range s.attributes {
		attributes[k] = v
	}
	return attributes
}

// mutate runs fn under the write lock while the span is active.
func (s *Span) mutate(fn func()) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	fn()
}

// SetAttribute sets an attribute. A nil value removes it.
func (s *Span) SetAttribute(key string, value any) {
	if key == "" {
		return
	}
	s.mutate(func() {
		if value == nil {
			delete(s.attributes, key)
			return
		}
		s.attributes[key] = value
	})
}

func (s *Span) SetAttributes(attributes map[string]any) {
	for k, v := range attributes {
		s.SetAttribute(k, v)
	}
}

func (s *Span) SetTag(key string, value string) {
	if key == "" {
		return
	}
	s.mutate(func() {
		s.tags[key] = value
	})
}

func (s *Span) SetOp(op string) {
	s.mutate(func() {
		s.op = op
	})
}

func (s *Span) UpdateName(name string) {
	s.mutate(func() {
		s.name = name
	})
}

// SetNameAndSource renames the span and records where the name came from.
func (s *Span) SetNameAndSource(name string, source string) {
	s.mutate(func() {
		s.name = name
		s.attributes[AttributeSource] = source
	})
}

func (s *Span) SetStatus(status model.SpanStatus) {
	s.mutate(func() {
		s.status = status
	})
}

func (s *Span) setStatusIfUnset(status model.SpanStatus) {
	s.mutate(func() {
		if s.status == model.UNSET {
			s.status = status
		}
	})
}

// End records the end time. Only the first call has an effect.
func (s *Span) End(options ...EndOption) {
	if s == nil {
		return
	}
	config := endConfig{}
	for _, option := range options {
		option(&config)
	}
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.endTime = config.endTime
	if s.endTime.IsZero() {
		s.endTime = time.Now()
	}
	if s.endTime.Before(s.startTime) {
		s.endTime = s.startTime
	}
	payload := s.payloadLocked()
	recording := s.recording
	s.mu.Unlock()

	if !recording {
		return
	}
	if s.isTransaction {
		s.finishTransaction(payload)
		return
	}
	if s.root != nil {
		s.root.addChild(payload)
	}
}

// addChild collects an ended descendant. Children ending after their transaction are dropped.
func (s *Span) addChild(payload model.SpanPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.children = append(s.children, payload)
}

func (s *Span) finishTransaction(payload model.SpanPayload) {
	s.mu.RLock()
	children := append([]model.SpanPayload(nil), s.children...)
	s.mu.RUnlock()

	source := route.SourceCustom
	if v, ok := payload.Data[AttributeSource].(string); ok && v != "" {
		source = v
	}
	tc := s.TraceContext()
	if tc.Status == "" {
		tc.Status = string(model.OK)
	}
	traceContext := tc.ToMap()
	traceContext["data"] = payload.Data
	event := &model.Event{
		Type:            model.TransactionEventType,
		Transaction:     payload.Description,
		TransactionInfo: &model.TransactionInfo{Source: source},
		StartTimestamp:  payload.StartTimestamp,
		Timestamp:       payload.Timestamp,
		Tags:            payload.Tags,
		Contexts:        map[string]map[string]any{"trace": traceContext},
		Spans:           children,
	}
	s.client.captureTransaction(event, s.isolation, s.current)
}

func (s *Span) payloadLocked() model.SpanPayload {
	data := make(map[string]interface{}, len(s.attributes))
	for k, v := range s.attributes {
		data[k] = v
	}
	tags := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		tags[k] = v
	}
	if len(tags) == 0 {
		tags = nil
	}
	payload := model.SpanPayload{
		TraceID:        s.traceID.String(),
		SpanID:         s.spanID.String(),
		Op:             s.op,
		Description:    s.name,
		Status:         s.status,
		StartTimestamp: s.startTime.UTC(),
		Timestamp:      s.endTime.UTC(),
		Data:           data,
		Tags:           tags,
	}
	if origin, ok := s.attributes[AttributeOrigin].(string); ok {
		payload.Origin = origin
	}
	if s.parentSpanID.IsValid() {
		payload.ParentSpanID = s.parentSpanID.String()
	}
	return payload
}

// ToPayload snapshots the span in its wire form.
func (s *Span) ToPayload() model.SpanPayload {
	if s == nil {
		return model.SpanPayload{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payloadLocked()
}

// TraceContext links events captured while the span is active to it.
func (s *Span) TraceContext() model.TraceContext {
	if s == nil {
		return model.TraceContext{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tc := model.TraceContext{
		TraceID: s.traceID.String(),
		SpanID:  s.spanID.String(),
		Op:      s.op,
		Status:  string(s.status),
	}
	if origin, ok := s.attributes[AttributeOrigin].(string); ok {
		tc.Origin = origin
	}
	if s.parentSpanID.IsValid() {
		tc.ParentSpanID = s.parentSpanID.String()
	}
	return tc
}

// ToSentryTrace renders the span as an outbound sentry-trace header value.
func (s *Span) ToSentryTrace() string {
	if s == nil {
		return ""
	}
	sampled := s.sampled
	return formatSentryTrace(s.traceID, s.spanID, &sampled)
}

// ToTraceparent renders the span as an outbound W3C traceparent header value.
func (s *Span) ToTraceparent() string {
	if s == nil {
		return ""
	}
	return formatTraceparent(s.traceID, s.spanID, s.sampled)
}

// ToBaggage renders the dynamic sampling context of the span's trace.
func (s *Span) ToBaggage() string {
	if s == nil {
		return ""
	}
	return formatBaggage(s.dynamicSamplingContext())
}

func (s *Span) dynamicSamplingContext() map[string]string {
	root := s
	if s.root != nil {
		root = s.root
	}
	root.mu.RLock()
	defer root.mu.RUnlock()
	dsc := make(map[string]string, len(root.dsc))
	for k, v := range root.dsc {
		dsc[k] = v
	}
	return dsc
}
