package augur

import (
	"github.com/valyala/fastrand"
	"strconv"
)

// SamplingContext is what a TracesSampler sees for a root span.
type SamplingContext struct {
	Name       string
	Op         string
	Source     string
	Attributes map[string]any
}

// TracesSampler returns the probability of recording a trace.
type TracesSampler func(ctx SamplingContext) float64

type samplingDecision struct {
	sampled bool
	rate    float64
}

// sampleTrace returns the decision for a root span. A trace that was already decided, locally
// or upstream, keeps its decision; otherwise the sampler wins over the configured rate.
func (c *Client) sampleTrace(ctx SamplingContext, decided *bool) samplingDecision {
	if c == nil || !c.Enabled() {
		return samplingDecision{}
	}
	switch {
	case decided != nil:
		rate := 0.0
		if *decided {
			rate = 1
		}
		return samplingDecision{sampled: *decided, rate: rate}
	case c.options.TracesSampler != nil:
		rate := c.options.TracesSampler(ctx)
		return samplingDecision{sampled: sample(rate), rate: rate}
	case c.options.EnableTracing:
		rate := c.options.TracesSampleRate
		return samplingDecision{sampled: sample(rate), rate: rate}
	default:
		return samplingDecision{}
	}
}

func sample(rate float64) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 1 {
		return true
	}
	return float64(fastrand.Uint32())/float64(1<<32) < rate
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
