package augur

import (
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/session"
	"go.opentelemetry.io/otel/trace"
	"sync"
	"time"
)

const DefaultMaxBreadcrumbs = 100

// Scope holds the contextual state attached to captured events: tags, extra data, user,
// breadcrumbs, event processors, the propagation context and references to the active span,
// the tracked session and the client. Scopes are forked rather than shared; a fork never
// mutates its parent. The active span, session and client are references whose lifetime the
// scope does not own.
type Scope struct {
	mu                    sync.RWMutex
	tags                  map[string]string
	extra                 map[string]interface{}
	contexts              map[string]map[string]any
	user                  model.User
	level                 model.Level
	fingerprint           []string
	transactionName       string
	request               *model.Request
	breadcrumbs           []model.Breadcrumb
	maxBreadcrumbs        int
	eventProcessors       []EventProcessor
	propagationContext    PropagationContext
	propagationContextSet bool
	span                  *Span
	session               *session.Session
	client                *Client
}

func NewScope() *Scope {
	return &Scope{
		tags:               make(map[string]string),
		extra:              make(map[string]interface{}),
		contexts:           make(map[string]map[string]any),
		maxBreadcrumbs:     DefaultMaxBreadcrumbs,
		propagationContext: NewPropagationContext(),
	}
}

// Fork returns an independent copy of the scope. Collections are copied, the client is shared.
func (s *Scope) Fork() *Scope {
	if s == nil {
		return NewScope()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	fork := &Scope{
		tags:                  make(map[string]string, len(s.tags)),
		extra:                 make(map[string]interface{}, len(s.extra)),
		contexts:              make(map[string]map[string]any, len(s.contexts)),
		user:                  cloneUser(s.user),
		level:                 s.level,
		fingerprint:           append([]string(nil), s.fingerprint...),
		transactionName:       s.transactionName,
		breadcrumbs:           append([]model.Breadcrumb(nil), s.breadcrumbs...),
		maxBreadcrumbs:        s.maxBreadcrumbs,
		eventProcessors:       append([]EventProcessor(nil), s.eventProcessors...),
		propagationContext:    s.propagationContext.Clone(),
		propagationContextSet: s.propagationContextSet,
		span:                  s.span,
		session:               s.session,
		client:                s.client,
	}
	for k, v := range s.tags {
		fork.tags[k] = v
	}
	for k, v := range s.extra {
		fork.extra[k] = v
	}
	for k, v := range s.contexts {
		fork.contexts[k] = cloneContext(v)
	}
	if s.request != nil {
		request := *s.request
		fork.request = &request
	}
	return fork
}

func (s *Scope) SetTag(key string, value string) {
	if s == nil || key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
}

func (s *Scope) SetTags(tags map[string]string) {
	for k, v := range tags {
		s.SetTag(k, v)
	}
}

func (s *Scope) RemoveTag(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, key)
}

func (s *Scope) Tags() map[string]string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		tags[k] = v
	}
	return tags
}

func (s *Scope) SetExtra(key string, value interface{}) {
	if s == nil || key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[key] = value
}

func (s *Scope) SetExtras(extra map[string]interface{}) {
	for k, v := range extra {
		s.SetExtra(k, v)
	}
}

func (s *Scope) Extra() map[string]interface{} {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	extra := make(map[string]interface{}, len(s.extra))
	for k, v := range s.extra {
		extra[k] = v
	}
	return extra
}

func (s *Scope) SetUser(user model.User) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = cloneUser(user)
	if s.session != nil && user.ID != "" {
		s.session.Update(session.Update{UserID: user.ID})
	}
}

func (s *Scope) User() model.User {
	if s == nil {
		return model.User{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

func (s *Scope) SetLevel(level model.Level) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
}

func (s *Scope) SetFingerprint(fingerprint []string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprint = append([]string(nil), fingerprint...)
}

func (s *Scope) SetContext(key string, value map[string]any) {
	if s == nil || key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.contexts, key)
		return
	}
	s.contexts[key] = cloneContext(value)
}

func (s *Scope) SetTransactionName(name string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactionName = name
}

func (s *Scope) SetRequest(request *model.Request) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.request = request
}

// SetMaxBreadcrumbs bounds the number of retained breadcrumbs. Negative limits are ignored.
func (s *Scope) SetMaxBreadcrumbs(limit int) {
	if s == nil || limit < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxBreadcrumbs = limit
	s.breadcrumbs = trimBreadcrumbs(s.breadcrumbs, limit)
}

// AddBreadcrumb appends a breadcrumb, evicting the oldest ones beyond the limit.
func (s *Scope) AddBreadcrumb(breadcrumb model.Breadcrumb) {
	if s == nil {
		return
	}
	if breadcrumb.Timestamp.IsZero() {
		breadcrumb.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxBreadcrumbs == 0 {
		return
	}
	s.breadcrumbs = trimBreadcrumbs(append(s.breadcrumbs, breadcrumb), s.maxBreadcrumbs)
}

func (s *Scope) Breadcrumbs() []model.Breadcrumb {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Breadcrumb(nil), s.breadcrumbs...)
}

func (s *Scope) ClearBreadcrumbs() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breadcrumbs = nil
}

// AddEventProcessor appends a processor. Scope processors run in registration order.
func (s *Scope) AddEventProcessor(processor EventProcessor) {
	if s == nil || processor == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventProcessors = append(s.eventProcessors, processor)
}

// SetPropagationContext installs a propagation context unless one was explicitly set before.
// It reports whether the context was installed.
func (s *Scope) SetPropagationContext(pc PropagationContext) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.propagationContextSet {
		return false
	}
	s.propagationContext = pc.Clone()
	s.propagationContextSet = true
	return true
}

// ReplacePropagationContext installs a propagation context unconditionally.
func (s *Scope) ReplacePropagationContext(pc PropagationContext) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.propagationContext = pc.Clone()
	s.propagationContextSet = true
}

func (s *Scope) PropagationContext() PropagationContext {
	if s == nil {
		return PropagationContext{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.propagationContext.Clone()
}

// recordSamplingDecision stores the decision for the scope's trace if none was recorded yet.
func (s *Scope) recordSamplingDecision(traceID trace.TraceID, sampled bool, dsc map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.propagationContext.TraceID != traceID || s.propagationContext.Sampled != nil {
		return
	}
	s.propagationContext.Sampled = boolPtr(sampled)
	if s.propagationContext.DynamicSamplingContext == nil {
		s.propagationContext.DynamicSamplingContext = make(map[string]string, len(dsc))
	}
	for k, v := range dsc {
		if _, ok := s.propagationContext.DynamicSamplingContext[k]; !ok {
			s.propagationContext.DynamicSamplingContext[k] = v
		}
	}
}

func (s *Scope) SetSpan(span *Span) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span = span
}

func (s *Scope) Span() *Span {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.span
}

func (s *Scope) SetSession(sess *session.Session) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

func (s *Scope) Session() *session.Session {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Scope) SetClient(client *Client) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

func (s *Scope) Client() *Client {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Update applies a capture context on top of the scope.
func (s *Scope) Update(captureContext *CaptureContext) {
	if s == nil || captureContext == nil {
		return
	}
	s.SetTags(captureContext.Tags)
	s.SetExtras(captureContext.Extra)
	if captureContext.User != nil {
		s.SetUser(*captureContext.User)
	}
	if captureContext.Level != "" {
		s.SetLevel(captureContext.Level)
	}
	if captureContext.Fingerprint != nil {
		s.SetFingerprint(captureContext.Fingerprint)
	}
	for k, v := range captureContext.Contexts {
		s.SetContext(k, v)
	}
}

// Clear resets the scope's data, keeping the client, the session and the breadcrumb limit.
func (s *Scope) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = make(map[string]string)
	s.extra = make(map[string]interface{})
	s.contexts = make(map[string]map[string]any)
	s.user = model.User{}
	s.level = ""
	s.fingerprint = nil
	s.transactionName = ""
	s.request = nil
	s.breadcrumbs = nil
	s.eventProcessors = nil
	s.propagationContext = NewPropagationContext()
	s.propagationContextSet = false
	s.span = nil
}

func trimBreadcrumbs(breadcrumbs []model.Breadcrumb, limit int) []model.Breadcrumb {
	if len(breadcrumbs) <= limit {
		return breadcrumbs
	}
	trimmed := make([]model.Breadcrumb, limit)
	copy(trimmed, breadcrumbs[len(breadcrumbs)-limit:])
	return trimmed
}

func cloneUser(user model.User) model.User {
	if user.Data != nil {
		data := make(map[string]string, len(user.Data))
		for k, v := range user.Data {
			data[k] = v
		}
		user.Data = data
	}
	return user
}

func cloneContext(context map[string]any) map[string]any {
	c := make(map[string]any, len(context))
	for k, v := range context {
		c[k] = v
	}
	return c
}
