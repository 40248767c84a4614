// Package metricsaggregator aggregates custom application metrics in memory and ships them to
// the backend whenever the client flushes.
package metricsaggregator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/VictoriaMetrics/metrics"
	"go.uber.org/zap"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const IntegrationName = "MetricsAggregator"

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_:]`)

var ErrKindMismatch = errors.New("metric already recorded with another kind")

type metricKind string

const (
	counterKind      metricKind = "counter"
	gaugeKind        metricKind = "gauge"
	distributionKind metricKind = "distribution"
)

// Aggregator accumulates counters, gauges and distributions between flushes. Each flush ships
// the accumulated values and starts over. A name keeps the kind it was first recorded with
// until the next flush; values of another kind are dropped.
type Aggregator struct {
	set    *metrics.Set
	kinds  map[string]metricKind
	logger *zap.Logger
	mu     sync.Mutex
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		set:    metrics.NewSet(),
		kinds:  make(map[string]metricKind),
		logger: logger,
	}
}

func (a *Aggregator) Increment(name string, value float64, tags map[string]string) {
	a.record(counterKind, name, tags, func(set *metrics.Set, metric string) {
		set.GetOrCreateFloatCounter(metric).Add(value)
	})
}

func (a *Aggregator) Gauge(name string, value float64, tags map[string]string) {
	a.record(gaugeKind, name, tags, func(set *metrics.Set, metric string) {
		set.GetOrCreateGauge(metric, nil).Set(value)
	})
}

func (a *Aggregator) Distribution(name string, value float64, tags map[string]string) {
	a.record(distributionKind, name, tags, func(set *metrics.Set, metric string) {
		set.GetOrCreateHistogram(metric).Update(value)
	})
}

// record never lets a failure reach the caller: mismatched kinds and anything the metrics set
// rejects are logged and the value is dropped.
func (a *Aggregator) record(
	kind metricKind,
	name string,
	tags map[string]string,
	update func(set *metrics.Set, metric string),
) {
	baseName := sanitizeIdentifier(name)
	metric := metricName(name, tags)
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("Dropped metric value",
				zap.String("metric", metric),
				zap.Any("panic", r),
			)
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()
	if recorded, ok := a.kinds[baseName]; ok && recorded != kind {
		a.logger.Warn("Dropped metric value",
			zap.String("metric", metric),
			zap.Error(fmt.Errorf("%w: %s is a %s, not a %s", ErrKindMismatch, baseName, recorded, kind)),
		)
		return
	}
	update(a.set, metric)
	a.kinds[baseName] = kind
}

// Drain returns the accumulated metrics in Prometheus text format and resets the aggregator.
func (a *Aggregator) Drain() string {
	a.mu.Lock()
	set := a.set
	a.set = metrics.NewSet()
	a.kinds = make(map[string]metricKind)
	a.mu.Unlock()

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	return buf.String()
}

// sanitizeIdentifier turns s into a valid metric or label name.
func sanitizeIdentifier(s string) string {
	s = invalidNameChars.ReplaceAllString(s, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

// metricName builds the series name. Tags with an empty key are skipped.
func metricName(name string, tags map[string]string) string {
	name = sanitizeIdentifier(name)
	keys := make([]string, 0, len(tags))
	for key := range tags {
		if key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return name
	}
	sort.Strings(keys)
	labels := make([]string, len(keys))
	for i, key := range keys {
		labels[i] = fmt.Sprintf("%s=%q", sanitizeIdentifier(key), tags[key])
	}
	return name + "{" + strings.Join(labels, ",") + "}"
}

// Integration ships its aggregator's metrics every time the client flushes.
type Integration struct {
	aggregator *Aggregator
}

func New() *Integration {
	return &Integration{aggregator: NewAggregator(nil)}
}

func (i *Integration) Name() string {
	return IntegrationName
}

// Setup routes dropped values to the client's debug logger.
func (i *Integration) Setup(client *augur.Client) {
	i.aggregator.mu.Lock()
	defer i.aggregator.mu.Unlock()
	i.aggregator.logger = client.Logger()
}

func (i *Integration) Aggregator() *Aggregator {
	return i.aggregator
}

func (i *Integration) Flush(_ context.Context, client *augur.Client) error {
	payload := i.aggregator.Drain()
	if payload == "" {
		return nil
	}
	client.Logger().Debug("Shipping aggregated metrics", zap.Int("bytes", len(payload)))
	client.CaptureMetrics(payload)
	return nil
}

// FromContext returns the aggregator of the client of ctx, or nil when the client has no
// metrics aggregator installed.
func FromContext(ctx context.Context) *Aggregator {
	integration, ok := augur.CurrentClient(ctx).Integration(IntegrationName).(*Integration)
	if !ok {
		return nil
	}
	return integration.aggregator
}

// Increment adds value to a counter of the client of ctx.
func Increment(ctx context.Context, name string, value float64, tags map[string]string) {
	if aggregator := FromContext(ctx); aggregator != nil {
		aggregator.Increment(name, value, tags)
	}
}

func Gauge(ctx context.Context, name string, value float64, tags map[string]string) {
	if aggregator := FromContext(ctx); aggregator != nil {
		aggregator.Gauge(name, value, tags)
	}
}

func Distribution(ctx context.Context, name string, value float64, tags map[string]string) {
	if aggregator := FromContext(ctx); aggregator != nil {
		aggregator.Distribution(name, value, tags)
	}
}
