package routing

import (
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/augur/augurtest"
	"github.com/Avi18971911/augur-go/pkg/route"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"testing"
)

func tracingHarness(t *testing.T) *augurtest.Harness {
	return augurtest.NewHarness(t, augur.Options{EnableTracing: true, TracesSampleRate: 1})
}

func TestInstrumentation_Start(t *testing.T) {
	t.Run("Starts a pageload transaction named by the raw path", func(t *testing.T) {
		harness := tracingHarness(t)
		instrumentation := New(nil, Options{InstrumentationName: "test-router"})

		ctx, span := instrumentation.Start(harness.Ctx, "/")

		assert.Same(t, span, augur.SpanFromContext(ctx))
		assert.True(t, span.IsTransaction())
		assert.Equal(t, "/", span.Name())
		assert.Equal(t, OpPageload, span.Op())
		origin, _ := span.Attribute(augur.AttributeOrigin)
		assert.Equal(t, "auto.pageload.augur.routing", origin)
		source, _ := span.Attribute(augur.AttributeSource)
		assert.Equal(t, route.SourceURL, source)
	})

	t.Run("Does not start a pageload transaction when disabled", func(t *testing.T) {
		harness := tracingHarness(t)
		off := false
		instrumentation := New(nil, Options{StartTransactionOnPageLoad: &off})

		ctx, span := instrumentation.Start(harness.Ctx, "/")

		assert.Nil(t, span)
		assert.Same(t, harness.Ctx, ctx)
	})
}

func TestInstrumentation_OnLocationChange(t *testing.T) {
	t.Run("Normalizes parameterized paths to their route", func(t *testing.T) {
		harness := tracingHarness(t)
		instrumentation := New(route.NewMatcher("/users/:id", "/users"), Options{})

		ctx, pageload := instrumentation.Start(harness.Ctx, "/users")
		_, navigation := instrumentation.OnLocationChange(ctx, "/users/123", Push)
		_, unmatched := instrumentation.OnLocationChange(ctx, "/foo/bar", Pop)
		unmatched.End()

		assert.True(t, pageload.Ended())
		assert.True(t, navigation.Ended())
		assert.NotEqual(t, pageload.TraceID(), navigation.TraceID())
		assert.True(t, navigation.IsTransaction())

		envelopes := harness.Flush(t, transport.TransactionKind)
		sources := map[string]string{}
		for _, envelope := range envelopes {
			sources[envelope.Event.Transaction] = envelope.Event.TransactionInfo.Source
			assert.Equal(t, "augur-routing", envelope.Event.Tags[TagInstrumentation])
		}
		assert.Equal(t, map[string]string{
			"/users":     route.SourceRoute,
			"/users/:id": route.SourceRoute,
			"/foo/bar":   route.SourceURL,
		}, sources)
	})

	t.Run("Only push and pop start navigation transactions", func(t *testing.T) {
		harness := tracingHarness(t)
		instrumentation := New(nil, Options{})
		ctx, pageload := instrumentation.Start(harness.Ctx, "/")

		_, span := instrumentation.OnLocationChange(ctx, "hello", Replace)

		assert.Nil(t, span)
		assert.False(t, pageload.Ended())
		assert.Same(t, pageload, instrumentation.Active())
	})

	t.Run("Navigation transactions carry the navigation origin", func(t *testing.T) {
		harness := tracingHarness(t)
		instrumentation := New(nil, Options{})

		_, span := instrumentation.OnLocationChange(harness.Ctx, "/about", Push)

		assert.Equal(t, OpNavigation, span.Op())
		origin, _ := span.Attribute(augur.AttributeOrigin)
		assert.Equal(t, "auto.navigation.augur.routing", origin)
	})
}

func TestInstrumentation_MatchedRoute(t *testing.T) {
	t.Run("Renames the active transaction to the matched route", func(t *testing.T) {
		harness := tracingHarness(t)
		instrumentation := New(nil, Options{})
		_, span := instrumentation.OnLocationChange(harness.Ctx, "/organizations/1234/v1/758", Push)

		instrumentation.MatchedRoute("/organizations/:orgid/v1/:teamid")

		assert.Equal(t, "/organizations/:orgid/v1/:teamid", span.Name())
		source, _ := span.Attribute(augur.AttributeSource)
		assert.Equal(t, route.SourceRoute, source)
	})
}
