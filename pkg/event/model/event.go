package model

import "time"

type EventType string

const (
	ErrorEventType       EventType = ""
	TransactionEventType EventType = "transaction"
)

type Event struct {
	EventID         string                    `json:"event_id"`
	Type            EventType                 `json:"type,omitempty"`
	Timestamp       time.Time                 `json:"timestamp"`
	StartTimestamp  time.Time                 `json:"start_timestamp,omitempty"`
	Level           Level                     `json:"level,omitempty"`
	Platform        string                    `json:"platform,omitempty"`
	Logger          string                    `json:"logger,omitempty"`
	Message         string                    `json:"message,omitempty"`
	Transaction     string                    `json:"transaction,omitempty"`
	TransactionInfo *TransactionInfo          `json:"transaction_info,omitempty"`
	ServerName      string                    `json:"server_name,omitempty"`
	Release         string                    `json:"release,omitempty"`
	Environment     string                    `json:"environment,omitempty"`
	Tags            map[string]string         `json:"tags,omitempty"`
	Extra           map[string]interface{}    `json:"extra,omitempty"`
	User            *User                     `json:"user,omitempty"`
	Breadcrumbs     []Breadcrumb              `json:"breadcrumbs,omitempty"`
	Contexts        map[string]map[string]any `json:"contexts,omitempty"`
	Exception       *ExceptionList            `json:"exception,omitempty"`
	DebugMeta       *DebugMeta                `json:"debug_meta,omitempty"`
	Fingerprint     []string                  `json:"fingerprint,omitempty"`
	Request         *Request                  `json:"request,omitempty"`
	Spans           []SpanPayload             `json:"spans,omitempty"`
}

// TransactionInfo carries the name source of a transaction ("url", "route", "custom", ...).
type TransactionInfo struct {
	Source string `json:"source"`
}

type ExceptionList struct {
	Values []Exception `json:"values"`
}

type Exception struct {
	Type       string      `json:"type,omitempty"`
	Value      string      `json:"value,omitempty"`
	Module     string      `json:"module,omitempty"`
	Stacktrace *Stacktrace `json:"stacktrace,omitempty"`
	Mechanism  *Mechanism  `json:"mechanism,omitempty"`
}

type Stacktrace struct {
	Frames []Frame `json:"frames"`
}

// Frame is mutable in place by post-processing stages, each stage owning the fields it rewrites.
type Frame struct {
	Filename        string `json:"filename,omitempty"`
	Function        string `json:"function,omitempty"`
	Module          string `json:"module,omitempty"`
	AbsPath         string `json:"abs_path,omitempty"`
	Lineno          int    `json:"lineno,omitempty"`
	InstructionAddr string `json:"instruction_addr,omitempty"`
	AddrMode        string `json:"addr_mode,omitempty"`
	Platform        string `json:"platform,omitempty"`
	InApp           bool   `json:"in_app"`
}

// Mechanism describes how an exception was captured. Handled is a pointer so that a producer
// forgetting to set it can be told apart from an explicit false.
type Mechanism struct {
	Type    string                 `json:"type"`
	Handled *bool                  `json:"handled,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (m *Mechanism) IsHandled() bool {
	return m != nil && m.Handled != nil && *m.Handled
}

type DebugMeta struct {
	Images []DebugImage `json:"images,omitempty"`
}

type DebugImage struct {
	Type      string `json:"type"`
	CodeID    string `json:"code_id,omitempty"`
	CodeFile  string `json:"code_file,omitempty"`
	DebugID   string `json:"debug_id,omitempty"`
	DebugFile string `json:"debug_file,omitempty"`
}

type Breadcrumb struct {
	Type      string                 `json:"type,omitempty"`
	Category  string                 `json:"category,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Level     Level                  `json:"level,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type User struct {
	ID        string            `json:"id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	Username  string            `json:"username,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

func (u User) IsEmpty() bool {
	return u.ID == "" && u.Email == "" && u.IPAddress == "" && u.Username == "" && len(u.Data) == 0
}

type Request struct {
	URL         string            `json:"url,omitempty"`
	Method      string            `json:"method,omitempty"`
	QueryString string            `json:"query_string,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// TraceContext links an event to the span or propagation context that was active when it was captured.
type TraceContext struct {
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	Op           string `json:"op,omitempty"`
	Status       string `json:"status,omitempty"`
	Origin       string `json:"origin,omitempty"`
}

func (tc TraceContext) ToMap() map[string]any {
	m := map[string]any{
		"trace_id": tc.TraceID,
		"span_id":  tc.SpanID,
	}
	if tc.ParentSpanID != "" {
		m["parent_span_id"] = tc.ParentSpanID
	}
	if tc.Op != "" {
		m["op"] = tc.Op
	}
	if tc.Status != "" {
		m["status"] = tc.Status
	}
	if tc.Origin != "" {
		m["origin"] = tc.Origin
	}
	return m
}

// TraceContext returns the trace context recorded under contexts.trace, if any.
func (e *Event) TraceContext() (TraceContext, bool) {
	raw, ok := e.Contexts["trace"]
	if !ok {
		return TraceContext{}, false
	}
	str := func(key string) string {
		v, _ := raw[key].(string)
		return v
	}
	tc := TraceContext{
		TraceID:      str("trace_id"),
		SpanID:       str("span_id"),
		ParentSpanID: str("parent_span_id"),
		Op:           str("op"),
		Status:       str("status"),
		Origin:       str("origin"),
	}
	return tc, tc.TraceID != ""
}

// IsError reports whether the event counts against session health.
func (e *Event) IsError() bool {
	if e.Type == TransactionEventType {
		return false
	}
	if e.Exception != nil && len(e.Exception.Values) > 0 {
		return true
	}
	return e.Level == ErrorLevel || e.Level == FatalLevel
}

// HasUnhandledException reports whether any exception was captured with handled=false.
func (e *Event) HasUnhandledException() bool {
	if e.Exception == nil {
		return false
	}
	for _, exception := range e.Exception.Values {
		if exception.Mechanism != nil && exception.Mechanism.Handled != nil && !*exception.Mechanism.Handled {
			return true
		}
	}
	return false
}

// RootSpan rebuilds the span a transaction event was emitted for from its trace context.
func (e *Event) RootSpan() (SpanPayload, bool) {
	tc, ok := e.TraceContext()
	if !ok {
		return SpanPayload{}, false
	}
	data, _ := e.Contexts["trace"]["data"].(map[string]interface{})
	return SpanPayload{
		TraceID:        tc.TraceID,
		SpanID:         tc.SpanID,
		ParentSpanID:   tc.ParentSpanID,
		Op:             tc.Op,
		Description:    e.Transaction,
		Status:         SpanStatus(tc.Status),
		StartTimestamp: e.StartTimestamp,
		Timestamp:      e.Timestamp,
		Origin:         tc.Origin,
		Data:           data,
		Tags:           e.Tags,
	}, true
}
