package model

import "time"

type SpanStatus string

const (
	UNSET         SpanStatus = ""
	OK            SpanStatus = "ok"
	ERROR         SpanStatus = "unknown_error"
	InternalError SpanStatus = "internal_error"
	NotFound      SpanStatus = "not_found"
	Unauthorized  SpanStatus = "unauthenticated"
	Cancelled     SpanStatus = "cancelled"
)

// SpanPayload is the read-only form of an ended span, attached to its transaction event.
type SpanPayload struct {
	TraceID        string                 `json:"trace_id"`
	SpanID         string                 `json:"span_id"`
	ParentSpanID   string                 `json:"parent_span_id,omitempty"`
	Op             string                 `json:"op,omitempty"`
	Description    string                 `json:"description,omitempty"`
	Status         SpanStatus             `json:"status,omitempty"`
	StartTimestamp time.Time              `json:"start_timestamp"`
	Timestamp      time.Time              `json:"timestamp"`
	Origin         string                 `json:"origin,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Tags           map[string]string      `json:"tags,omitempty"`
}

// SpanStatusFromHTTPCode maps an HTTP response code onto a span status.
func SpanStatusFromHTTPCode(code int) SpanStatus {
	switch {
	case code < 400:
		return OK
	case code == 401:
		return Unauthorized
	case code == 404:
		return NotFound
	case code == 499:
		return Cancelled
	case code >= 500:
		return InternalError
	default:
		return ERROR
	}
}
