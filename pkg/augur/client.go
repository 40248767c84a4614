package augur

import (
	"context"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/event_bus"
	"github.com/Avi18971911/augur-go/pkg/session"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	envelopeTopic = "augur:envelope"
	sendTimeout   = 30 * time.Second

	CategoryError       = "error"
	CategoryTransaction = "transaction"
	CategorySession     = "session"
	CategoryMetrics     = "metrics"

	dropReasonInternal = "internal_sdk_error"
)

// Client owns the configuration, the integrations, the client-level processors and the
// transport. Captured events leave the client through an asynchronous event bus, so capture
// calls never wait on the transport.
type Client struct {
	options     Options
	dsn         *Dsn
	transport   transport.Transport
	debugLogger *zap.Logger
	enabled     atomic.Bool

	integrations     map[string]Integration
	integrationOrder []Integration
	integrationsMu   sync.RWMutex

	eventProcessors   []EventProcessor
	eventProcessorsMu sync.RWMutex

	droppedEvents  *metrics.Set
	eventBus       event_bus.AugurEventBus[*transport.Envelope]
	trackedSession atomic.Pointer[session.Session]
	closeOnce      sync.Once
}

// NewClient creates a client. A client without a DSN or a transport is created disabled; an
// unparsable DSN is an error.
func NewClient(options Options) (*Client, error) {
	logger := newLogger(options)
	client := &Client{
		options:       options,
		transport:     options.Transport,
		debugLogger:   logger,
		integrations:  make(map[string]Integration),
		droppedEvents: metrics.NewSet(),
	}
	if options.Environment == "" {
		client.options.Environment = "production"
	}
	if options.ServerName == "" {
		if hostname, err := os.Hostname(); err == nil {
			client.options.ServerName = hostname
		}
	}
	if options.Dsn != "" {
		dsn, err := ParseDsn(options.Dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create client: %w", err)
		}
		client.dsn = dsn
	}

	client.eventBus = event_bus.NewAugurEventBus[*transport.Envelope](
		EventBus.New(),
		client.snapshotEnvelope,
		logger,
	)
	if err := client.eventBus.Subscribe(envelopeTopic, client.send, true); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	switch {
	case !options.isEnabled():
		logger.Debug("Client disabled by options")
	case client.dsn == nil:
		logger.Debug("Client disabled, no dsn configured")
	case client.transport == nil:
		logger.Debug("Client disabled", zap.Error(ErrMissingTransport))
	default:
		client.enabled.Store(true)
	}

	if client.Enabled() {
		for _, integration := range options.Integrations {
			client.AddIntegration(integration)
		}
	}
	return client, nil
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled.Load()
}

func (c *Client) Options() Options {
	return c.options
}

func (c *Client) Dsn() *Dsn {
	return c.dsn
}

func (c *Client) Transport() transport.Transport {
	return c.transport
}

// Logger returns the SDK debug logger. It is safe to call on a nil client.
func (c *Client) Logger() *zap.Logger {
	if c == nil || c.debugLogger == nil {
		return zap.NewNop()
	}
	return c.debugLogger
}

// AddIntegration installs an integration. Adding an integration whose name is already
// installed is a no-op.
func (c *Client) AddIntegration(integration Integration) {
	if c == nil || integration == nil {
		return
	}
	name := integration.Name()
	c.integrationsMu.Lock()
	if _, ok := c.integrations[name]; ok {
		c.integrationsMu.Unlock()
		c.debugLogger.Debug("Integration already installed", zap.String("integration", name))
		return
	}
	c.integrations[name] = integration
	c.integrationOrder = append(c.integrationOrder, integration)
	c.integrationsMu.Unlock()

	if once, ok := integration.(SetupOnceIntegration); ok {
		setupOnce(once)
	}
	if setup, ok := integration.(SetupIntegration); ok {
		setup.Setup(c)
	}
	c.debugLogger.Debug("Integration installed", zap.String("integration", name))
}

// Integration returns the installed integration with the given name, or nil.
func (c *Client) Integration(name string) Integration {
	if c == nil {
		return nil
	}
	c.integrationsMu.RLock()
	defer c.integrationsMu.RUnlock()
	return c.integrations[name]
}

func (c *Client) installedIntegrations() []Integration {
	c.integrationsMu.RLock()
	defer c.integrationsMu.RUnlock()
	return append([]Integration(nil), c.integrationOrder...)
}

// AddEventProcessor registers a processor that runs after the scope processors.
func (c *Client) AddEventProcessor(processor EventProcessor) {
	if c == nil || processor == nil {
		return
	}
	c.eventProcessorsMu.Lock()
	defer c.eventProcessorsMu.Unlock()
	c.eventProcessors = append(c.eventProcessors, processor)
}

func (c *Client) pipeline(scopeProcessors []EventProcessor) []namedProcessor {
	var processors []namedProcessor
	if len(c.options.IgnoreErrors) > 0 {
		processors = append(processors, namedProcessor{name: "ignore_errors", processor: c.ignoreErrors})
	}
	for _, integration := range c.installedIntegrations() {
		if ep, ok := integration.(EventProcessorIntegration); ok {
			var reason string
			if reporter, ok := integration.(DropReasonReporter); ok {
				reason = reporter.DropReason()
			}
			processors = append(processors, namedProcessor{
				name:   integration.Name(),
				reason: reason,
				processor: func(event *model.Event, hint *EventHint) *model.Event {
					return ep.ProcessEvent(event, hint, c)
				},
			})
		}
	}
	for i, processor := range scopeProcessors {
		processors = append(processors, namedProcessor{name: fmt.Sprintf("scope[%d]", i), processor: processor})
	}
	c.eventProcessorsMu.RLock()
	for i, processor := range c.eventProcessors {
		processors = append(processors, namedProcessor{name: fmt.Sprintf("client[%d]", i), processor: processor})
	}
	c.eventProcessorsMu.RUnlock()
	return processors
}

func (c *Client) ignoreErrors(event *model.Event, _ *EventHint) *model.Event {
	if event.Type == model.TransactionEventType {
		return event
	}
	candidates := []string{event.Message}
	if event.Exception != nil {
		for _, exception := range event.Exception.Values {
			candidates = append(candidates, exception.Value, exception.Type+": "+exception.Value)
		}
	}
	for _, pattern := range c.options.IgnoreErrors {
		for _, candidate := range candidates {
			if pattern != "" && strings.Contains(candidate, pattern) {
				return nil
			}
		}
	}
	return event
}

// captureEvent runs the event through sampling, scope merging and the processor pipeline and
// hands the survivor to the transport. It returns the event id, or "" when the event was dropped.
func (c *Client) captureEvent(
	event *model.Event,
	hint *EventHint,
	isolation *Scope,
	current *Scope,
) (eventID string) {
	if !c.Enabled() || event == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			c.debugLogger.Error("Failed to capture event", zap.Error(fmt.Errorf("%v", r)))
			eventID = ""
		}
	}()
	if hint == nil {
		hint = &EventHint{}
	}
	event = c.prepareEvent(event, hint)
	category := categoryOf(event)

	if event.Type != model.TransactionEventType && !sample(c.options.sampleRate()) {
		c.recordDroppedEvent(dropReasonSampleRate, category)
		return ""
	}

	merged := mergeScopes(GlobalScope(), isolation, current)
	merged.applyToEvent(event)

	event, reason := runProcessors(event, hint, c.pipeline(merged.eventProcessors), c.debugLogger)
	if event == nil {
		c.recordDroppedEvent(reason, category)
		return ""
	}

	beforeSend := c.options.BeforeSend
	if event.Type == model.TransactionEventType {
		beforeSend = c.options.BeforeSendTransaction
	}
	if beforeSend != nil {
		event, _ = runProcessors(event, hint, []namedProcessor{{name: dropReasonBeforeSend, processor: beforeSend}}, c.debugLogger)
		if event == nil {
			c.recordDroppedEvent(dropReasonBeforeSend, category)
			return ""
		}
	}

	ensureMechanism(event, c.debugLogger)
	c.updateSession(event, isolation, current)

	kind := transport.EventKind
	if event.Type == model.TransactionEventType {
		kind = transport.TransactionKind
	}
	c.dispatch(&transport.Envelope{
		Kind:    kind,
		EventID: event.EventID,
		Event:   event,
	})
	return event.EventID
}

func (c *Client) captureTransaction(event *model.Event, isolation *Scope, current *Scope) string {
	if c == nil {
		return ""
	}
	return c.captureEvent(event, nil, isolation, current)
}

func (c *Client) prepareEvent(event *model.Event, hint *EventHint) *model.Event {
	event = event.Clone()
	if event.EventID == "" {
		event.EventID = hint.EventID
	}
	if event.EventID == "" {
		event.EventID = newEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" && event.Type != model.TransactionEventType {
		event.Level = model.ErrorLevel
		if event.Exception == nil {
			event.Level = model.InfoLevel
		}
	}
	if event.Platform == "" {
		event.Platform = defaultPlatform
	}
	if event.Release == "" {
		event.Release = c.options.Release
	}
	if event.Environment == "" {
		event.Environment = c.options.Environment
	}
	if event.ServerName == "" {
		event.ServerName = c.options.ServerName
	}
	return event
}

// updateSession counts an error event against the tracked session. Only the first error and
// crashes are sent right away; the final state is sent when the session ends.
func (c *Client) updateSession(event *model.Event, isolation *Scope, current *Scope) {
	if !event.IsError() {
		return
	}
	sess := current.Session()
	if sess == nil {
		sess = isolation.Session()
	}
	if sess == nil {
		sess = GlobalScope().Session()
	}
	if sess == nil {
		return
	}
	firstError := sess.Errors() == 0
	crashed := event.HasUnhandledException()
	if sess.Update(session.Update{Errored: true, Crashed: crashed}) && (firstError || crashed) {
		c.captureSession(sess)
	}
}

func (c *Client) captureSession(sess *session.Session) {
	if !c.Enabled() || sess == nil {
		return
	}
	payload := sess.ToPayload()
	c.dispatch(&transport.Envelope{
		Kind:    transport.SessionKind,
		Session: &payload,
	})
}

// CaptureMetrics ships a metrics payload in Prometheus text format.
func (c *Client) CaptureMetrics(payload string) {
	if !c.Enabled() || payload == "" {
		return
	}
	c.dispatch(&transport.Envelope{
		Kind:    transport.MetricsKind,
		Metrics: payload,
	})
}

func (c *Client) dispatch(envelope *transport.Envelope) {
	envelope.SentAt = time.Now().UTC()
	if c.dsn != nil {
		envelope.DSN = c.dsn.String()
	}
	if err := c.eventBus.Publish(envelopeTopic, envelope); err != nil {
		c.debugLogger.Error("Failed to dispatch envelope",
			zap.String("kind", string(envelope.Kind)),
			zap.Error(err),
		)
		c.recordDroppedEvent(dropReasonInternal, categoryOfKind(envelope.Kind))
	}
}

// snapshotEnvelope copies an envelope as it is handed to the transport. Values with no JSON
// form are removed from the copy so that one bad field does not fail the whole event.
func (c *Client) snapshotEnvelope(envelope *transport.Envelope) *transport.Envelope {
	snapshot := envelope.Clone()
	if dropped := snapshot.Event.DropUnencodable(); len(dropped) > 0 {
		c.debugLogger.Warn("Dropped values that cannot be encoded",
			zap.String("event_id", snapshot.EventID),
			zap.Strings("fields", dropped),
		)
	}
	return snapshot
}

func (c *Client) send(envelope *transport.Envelope) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	outcome, err := c.transport.Send(ctx, envelope)
	switch outcome {
	case transport.Dropped:
		c.recordDroppedEvent(dropReasonQueueOverflow, categoryOfKind(envelope.Kind))
	case transport.Failed:
		c.recordDroppedEvent(dropReasonNetworkError, categoryOfKind(envelope.Kind))
	}
	if err != nil {
		return fmt.Errorf("failed to send %s envelope %s: %w", envelope.Kind, envelope.EventID, err)
	}
	return nil
}

func (c *Client) recordDroppedEvent(reason string, category string) {
	c.droppedEvents.GetOrCreateCounter(droppedEventsMetric(reason, category)).Inc()
	c.debugLogger.Debug("Event dropped",
		zap.String("reason", reason),
		zap.String("category", category),
	)
}

// DroppedEvents returns how many events of category were dropped for reason.
func (c *Client) DroppedEvents(reason string, category string) uint64 {
	if c == nil {
		return 0
	}
	return c.droppedEvents.GetOrCreateCounter(droppedEventsMetric(reason, category)).Get()
}

// WriteDroppedEvents writes the drop counters in Prometheus text format.
func (c *Client) WriteDroppedEvents(w io.Writer) {
	c.droppedEvents.WritePrometheus(w)
}

func droppedEventsMetric(reason string, category string) string {
	return fmt.Sprintf(`augur_dropped_events_total{reason=%q,category=%q}`, reason, category)
}

func (c *Client) decorateSpan(span *Span) {
	if c == nil {
		return
	}
	for _, integration := range c.installedIntegrations() {
		if decorator, ok := integration.(SpanDecoratorIntegration); ok {
			decorator.DecorateSpan(span)
		}
	}
}

func (c *Client) dynamicSamplingContext(span *Span, decision samplingDecision) map[string]string {
	dsc := map[string]string{
		"trace_id": span.traceID.String(),
		"sampled":  strconv.FormatBool(decision.sampled),
	}
	if c == nil {
		return dsc
	}
	if c.dsn != nil {
		dsc["public_key"] = c.dsn.PublicKey
	}
	if c.options.Release != "" {
		dsc["release"] = c.options.Release
	}
	if c.options.Environment != "" {
		dsc["environment"] = c.options.Environment
	}
	if c.options.TracesSampler != nil || c.options.EnableTracing {
		dsc["sample_rate"] = formatRate(decision.rate)
	}
	if source, _ := span.attributes[AttributeSource].(string); span.name != "" && source != "url" {
		dsc["transaction"] = span.name
	}
	return dsc
}

// Flush waits until integrations have shipped their buffers, every dispatched envelope has
// reached the transport and the transport has flushed. It reports whether that happened before
// ctx was done.
func (c *Client) Flush(ctx context.Context) bool {
	if c == nil {
		return true
	}
	g, groupCtx := errgroup.WithContext(ctx)
	for _, integration := range c.installedIntegrations() {
		if flusher, ok := integration.(FlushIntegration); ok {
			g.Go(func() error {
				if err := flusher.Flush(groupCtx, c); err != nil {
					return fmt.Errorf("failed to flush integration %s: %w", flusher.Name(), err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		c.debugLogger.Error("Failed to flush integrations", zap.Error(err))
	}
	if err := c.waitForDispatch(ctx); err != nil {
		c.debugLogger.Warn("Flush incomplete", zap.Error(err))
		return false
	}
	if c.transport == nil {
		return true
	}
	if err := c.transport.Flush(ctx); err != nil {
		c.debugLogger.Warn("Failed to flush transport", zap.Error(err))
		return false
	}
	return true
}

func (c *Client) waitForDispatch(ctx context.Context) error {
	if err := c.eventBus.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushTimeout, err)
	}
	return nil
}

// Close ends the tracked session unless it already ended, flushes and closes the transport.
// When ctx is already done there is no time left for a clean exit, and the session is ended as
// abnormal instead. The client captures nothing afterwards.
func (c *Client) Close(ctx context.Context) {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		if sess := c.trackedSession.Load(); sess != nil {
			if ctx.Err() != nil {
				c.abandonSession(sess)
			} else {
				c.endSession(sess)
			}
		}
		c.Flush(ctx)
		c.enabled.Store(false)
		if c.transport != nil {
			if err := c.transport.Close(); err != nil {
				c.debugLogger.Error("Failed to close transport", zap.Error(err))
			}
		}
	})
}

// StartSession starts a session on the isolation scope of ctx, ending the one it replaces.
func (c *Client) StartSession(ctx context.Context) *session.Session {
	if !c.Enabled() {
		return nil
	}
	scope := IsolationScope(ctx)
	if previous := scope.Session(); previous != nil {
		c.endSession(previous)
	}
	sess := session.NewSession(c.options.Release, c.options.Environment)
	if user := scope.User(); user.ID != "" {
		sess.Update(session.Update{UserID: user.ID})
	}
	scope.SetSession(sess)
	c.captureSession(sess)
	return sess
}

// EndSession ends the session on the isolation scope of ctx.
func (c *Client) EndSession(ctx context.Context) {
	scope := IsolationScope(ctx)
	if sess := scope.Session(); sess != nil {
		c.endSession(sess)
		scope.SetSession(nil)
	}
}

// endSession finalizes sess unless it is already terminal. The transition itself is atomic,
// so a session is never finalized twice.
func (c *Client) endSession(sess *session.Session) {
	if sess.Status().IsTerminal() {
		return
	}
	if sess.End() {
		c.captureSession(sess)
	}
}

func (c *Client) abandonSession(sess *session.Session) {
	if sess.MarkAbnormal() {
		c.captureSession(sess)
	}
}

func categoryOf(event *model.Event) string {
	if event.Type == model.TransactionEventType {
		return CategoryTransaction
	}
	return CategoryError
}

func categoryOfKind(kind transport.Kind) string {
	switch kind {
	case transport.TransactionKind:
		return CategoryTransaction
	case transport.SessionKind:
		return CategorySession
	case transport.MetricsKind:
		return CategoryMetrics
	default:
		return CategoryError
	}
}

func newEventID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
