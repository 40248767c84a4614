package augur

import (
	"github.com/Avi18971911/augur-go/pkg/event/model"
)

// scopeData is a point-in-time snapshot of a scope, used to merge the global, isolation and
// current scopes into one view when an event is captured.
type scopeData struct {
	tags               map[string]string
	extra              map[string]interface{}
	contexts           map[string]map[string]any
	user               model.User
	level              model.Level
	fingerprint        []string
	transactionName    string
	request            *model.Request
	breadcrumbs        []model.Breadcrumb
	maxBreadcrumbs     int
	eventProcessors    []EventProcessor
	propagationContext PropagationContext
	span               *Span
}

func (s *Scope) data() scopeData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := scopeData{
		tags:               make(map[string]string, len(s.tags)),
		extra:              make(map[string]interface{}, len(s.extra)),
		contexts:           make(map[string]map[string]any, len(s.contexts)),
		user:               cloneUser(s.user),
		level:              s.level,
		fingerprint:        append([]string(nil), s.fingerprint...),
		transactionName:    s.transactionName,
		request:            s.request,
		breadcrumbs:        append([]model.Breadcrumb(nil), s.breadcrumbs...),
		maxBreadcrumbs:     s.maxBreadcrumbs,
		eventProcessors:    append([]EventProcessor(nil), s.eventProcessors...),
		propagationContext: s.propagationContext.Clone(),
		span:               s.span,
	}
	for k, v := range s.tags {
		d.tags[k] = v
	}
	for k, v := range s.extra {
		d.extra[k] = v
	}
	for k, v := range s.contexts {
		d.contexts[k] = cloneContext(v)
	}
	return d
}

// mergeScopes layers the scopes in order, later scopes taking precedence.
func mergeScopes(scopes ...*Scope) scopeData {
	merged := scopeData{
		tags:           map[string]string{},
		extra:          map[string]interface{}{},
		contexts:       map[string]map[string]any{},
		maxBreadcrumbs: DefaultMaxBreadcrumbs,
	}
	for _, scope := range scopes {
		if scope == nil {
			continue
		}
		merged.merge(scope.data())
	}
	return merged
}

func (d *scopeData) merge(src scopeData) {
	for k, v := range src.tags {
		d.tags[k] = v
	}
	for k, v := range src.extra {
		d.extra[k] = v
	}
	for k, v := range src.contexts {
		d.contexts[k] = v
	}
	if !src.user.IsEmpty() {
		d.user = src.user
	}
	if src.level != "" {
		d.level = src.level
	}
	if len(src.fingerprint) > 0 {
		d.fingerprint = src.fingerprint
	}
	if src.transactionName != "" {
		d.transactionName = src.transactionName
	}
	if src.request != nil {
		d.request = src.request
	}
	d.breadcrumbs = append(d.breadcrumbs, src.breadcrumbs...)
	d.maxBreadcrumbs = src.maxBreadcrumbs
	d.eventProcessors = append(d.eventProcessors, src.eventProcessors...)
	d.propagationContext = src.propagationContext
	if src.span != nil {
		d.span = src.span
	}
}

// applyToEvent copies the merged scope onto the event. Values already on the event win over
// scope values, except for the level which the scope overrides when set.
func (d *scopeData) applyToEvent(event *model.Event) {
	if len(d.tags) > 0 {
		tags := make(map[string]string, len(d.tags)+len(event.Tags))
		for k, v := range d.tags {
			tags[k] = v
		}
		for k, v := range event.Tags {
			tags[k] = v
		}
		event.Tags = tags
	}
	if len(d.extra) > 0 {
		extra := make(map[string]interface{}, len(d.extra)+len(event.Extra))
		for k, v := range d.extra {
			extra[k] = v
		}
		for k, v := range event.Extra {
			extra[k] = v
		}
		event.Extra = extra
	}
	if len(d.contexts) > 0 {
		contexts := make(map[string]map[string]any, len(d.contexts)+len(event.Contexts))
		for k, v := range d.contexts {
			contexts[k] = v
		}
		for k, v := range event.Contexts {
			contexts[k] = v
		}
		event.Contexts = contexts
	}
	if event.User == nil && !d.user.IsEmpty() {
		user := d.user
		event.User = &user
	}
	if d.level != "" {
		event.Level = d.level
	}
	if event.Type != model.TransactionEventType && d.transactionName != "" && event.Transaction == "" {
		event.Transaction = d.transactionName
	}
	if len(d.fingerprint) > 0 {
		event.Fingerprint = append(event.Fingerprint, d.fingerprint...)
	}
	if event.Request == nil && d.request != nil {
		request := *d.request
		event.Request = &request
	}
	breadcrumbs := append(event.Breadcrumbs, d.breadcrumbs...)
	event.Breadcrumbs = trimBreadcrumbs(breadcrumbs, d.maxBreadcrumbs)
	if len(event.Breadcrumbs) == 0 {
		event.Breadcrumbs = nil
	}

	if event.Contexts == nil {
		event.Contexts = map[string]map[string]any{}
	}
	if _, ok := event.Contexts["trace"]; !ok {
		event.Contexts["trace"] = d.traceContext().ToMap()
	}
}

func (d *scopeData) traceContext() model.TraceContext {
	if d.span != nil {
		return d.span.TraceContext()
	}
	tc := model.TraceContext{
		TraceID: d.propagationContext.TraceID.String(),
		SpanID:  d.propagationContext.SpanID.String(),
	}
	if d.propagationContext.ParentSpanID.IsValid() {
		tc.ParentSpanID = d.propagationContext.ParentSpanID.String()
	}
	return tc
}
