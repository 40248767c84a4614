package augur

import (
	"encoding/hex"
	"fmt"
	"github.com/valyala/fastrand"
	"go.opentelemetry.io/otel/trace"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

const (
	SentryTraceHeader = "sentry-trace"
	BaggageHeader     = "baggage"
	TraceparentHeader = "traceparent"

	baggagePrefix       = "sentry-"
	traceContextVersion = 0
)

var sentryTraceRegexp = regexp.MustCompile(`^[ \t]*([0-9a-f]{32})?-?([0-9a-f]{16})?-?([01])?[ \t]*$`)

// PropagationContext is the trace state carried across process and service boundaries.
// It is what new root spans attach to when no span is active.
type PropagationContext struct {
	TraceID      trace.TraceID
	SpanID       trace.SpanID
	ParentSpanID trace.SpanID
	// Sampled is nil until a sampling decision has been made for the trace.
	Sampled *bool
	// DynamicSamplingContext holds the sentry-* baggage entries, without prefix.
	DynamicSamplingContext map[string]string
}

func NewPropagationContext() PropagationContext {
	return PropagationContext{
		TraceID: newTraceID(),
		SpanID:  newSpanID(),
	}
}

// PropagationContextFromHeaders continues a trace from sentry-trace and baggage header values.
// A missing or malformed sentry-trace yields a fresh context.
func PropagationContextFromHeaders(sentryTrace string, baggage string) PropagationContext {
	pc := NewPropagationContext()
	matches := sentryTraceRegexp.FindStringSubmatch(sentryTrace)
	if sentryTrace == "" || matches == nil {
		return pc
	}
	if traceID, err := trace.TraceIDFromHex(matches[1]); err == nil {
		pc.TraceID = traceID
	}
	if parentSpanID, err := trace.SpanIDFromHex(matches[2]); err == nil {
		pc.ParentSpanID = parentSpanID
	}
	switch matches[3] {
	case "1":
		pc.Sampled = boolPtr(true)
	case "0":
		pc.Sampled = boolPtr(false)
	}
	pc.DynamicSamplingContext = parseBaggage(baggage)
	return pc
}

// PropagationContextFromTraceparent continues a trace from a W3C traceparent header value.
func PropagationContextFromTraceparent(traceparent string) (PropagationContext, bool) {
	traceID, parentSpanID, sampled, ok := parseTraceparent(traceparent)
	if !ok {
		return PropagationContext{}, false
	}
	pc := NewPropagationContext()
	pc.TraceID = traceID
	pc.ParentSpanID = parentSpanID
	pc.Sampled = boolPtr(sampled)
	return pc, true
}

// Clone returns a copy that does not share the dynamic sampling context map.
func (pc PropagationContext) Clone() PropagationContext {
	c := pc
	if pc.Sampled != nil {
		c.Sampled = boolPtr(*pc.Sampled)
	}
	if pc.DynamicSamplingContext != nil {
		c.DynamicSamplingContext = make(map[string]string, len(pc.DynamicSamplingContext))
		for k, v := range pc.DynamicSamplingContext {
			c.DynamicSamplingContext[k] = v
		}
	}
	return c
}

func (pc PropagationContext) SentryTrace() string {
	return formatSentryTrace(pc.TraceID, pc.SpanID, pc.Sampled)
}

func (pc PropagationContext) Baggage() string {
	return formatBaggage(pc.DynamicSamplingContext)
}

func formatSentryTrace(traceID trace.TraceID, spanID trace.SpanID, sampled *bool) string {
	header := fmt.Sprintf("%s-%s", traceID.String(), spanID.String())
	if sampled != nil {
		if *sampled {
			header += "-1"
		} else {
			header += "-0"
		}
	}
	return header
}

func formatTraceparent(traceID trace.TraceID, spanID trace.SpanID, sampled bool) string {
	var flags byte
	if sampled {
		flags = 1
	}
	return fmt.Sprintf("%x-%s-%s-%x", []byte{traceContextVersion}, traceID.String(), spanID.String(), []byte{flags})
}

func formatBaggage(dsc map[string]string) string {
	if len(dsc) == 0 {
		return ""
	}
	keys := make([]string, 0, len(dsc))
	for k := range dsc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]string, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, baggagePrefix+url.QueryEscape(k)+"="+url.QueryEscape(dsc[k]))
	}
	return strings.Join(entries, ",")
}

func parseBaggage(baggage string) map[string]string {
	dsc := map[string]string{}
	for _, member := range strings.Split(baggage, ",") {
		member = strings.TrimSpace(member)
		if i := strings.IndexByte(member, ';'); i >= 0 {
			member = member[:i]
		}
		key, value, ok := strings.Cut(member, "=")
		if !ok {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSpace(key))
		if err != nil || !strings.HasPrefix(key, baggagePrefix) {
			continue
		}
		value, err = url.QueryUnescape(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		dsc[strings.TrimPrefix(key, baggagePrefix)] = value
	}
	return dsc
}

// parseTraceparent parses "version-traceid-spanid-flags". Only version 00 is accepted and all-zero
// ids are rejected.
func parseTraceparent(header string) (trace.TraceID, trace.SpanID, bool, bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 {
		return trace.TraceID{}, trace.SpanID{}, false, false
	}
	ver, err := hex.DecodeString(parts[0])
	if err != nil || len(ver) != 1 || int(ver[0]) != traceContextVersion {
		return trace.TraceID{}, trace.SpanID{}, false, false
	}
	traceID, err := trace.TraceIDFromHex(parts[1])
	if err != nil {
		return trace.TraceID{}, trace.SpanID{}, false, false
	}
	spanID, err := trace.SpanIDFromHex(parts[2])
	if err != nil {
		return trace.TraceID{}, trace.SpanID{}, false, false
	}
	opts, err := hex.DecodeString(parts[3])
	if err != nil || len(opts) != 1 {
		return trace.TraceID{}, trace.SpanID{}, false, false
	}
	return traceID, spanID, opts[0]&1 == 1, true
}

func newTraceID() trace.TraceID {
	var id trace.TraceID
	for !id.IsValid() {
		fillRandom(id[:])
	}
	return id
}

func newSpanID() trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		fillRandom(id[:])
	}
	return id
}

func fillRandom(b []byte) {
	for i := 0; i < len(b); i += 4 {
		n := fastrand.Uint32()
		for j := 0; j < 4 && i+j < len(b); j++ {
			b[i+j] = byte(n >> (8 * j))
		}
	}
}

func boolPtr(b bool) *bool {
	return &b
}
