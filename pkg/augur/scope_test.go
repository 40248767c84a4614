package augur

import (
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestScope_Fork(t *testing.T) {
	t.Run("Mutating a fork does not alter the original", func(t *testing.T) {
		scope := NewScope()
		scope.SetTag("shared", "original")
		scope.SetExtra("key", "original")
		scope.AddBreadcrumb(model.Breadcrumb{Message: "first"})
		scope.SetContext("app", map[string]any{"name": "original"})

		fork := scope.Fork()
		fork.SetTag("shared", "fork")
		fork.SetTag("fork_only", "yes")
		fork.SetExtra("key", "fork")
		fork.AddBreadcrumb(model.Breadcrumb{Message: "second"})
		fork.SetContext("app", map[string]any{"name": "fork"})

		assert.Equal(t, map[string]string{"shared": "original"}, scope.Tags())
		assert.Equal(t, "original", scope.Extra()["key"])
		assert.Len(t, scope.Breadcrumbs(), 1)
		assert.Equal(t, "original", scope.data().contexts["app"]["name"])

		assert.Equal(t, "fork", fork.Tags()["shared"])
		assert.Len(t, fork.Breadcrumbs(), 2)
	})

	t.Run("Shares the client by reference", func(t *testing.T) {
		client := &Client{}
		scope := NewScope()
		scope.SetClient(client)
		assert.Same(t, client, scope.Fork().Client())
	})

	t.Run("Forking a nil scope yields an empty scope", func(t *testing.T) {
		var scope *Scope
		fork := scope.Fork()
		assert.NotNil(t, fork)
		assert.Empty(t, fork.Tags())
	})
}

func TestScope_AddBreadcrumb(t *testing.T) {
	t.Run("Retains exactly the most recent breadcrumbs in order", func(t *testing.T) {
		scope := NewScope()
		scope.SetMaxBreadcrumbs(3)
		for _, message := range []string{"a", "b", "c", "d"} {
			scope.AddBreadcrumb(model.Breadcrumb{Message: message})
		}
		breadcrumbs := scope.Breadcrumbs()
		assert.Len(t, breadcrumbs, 3)
		assert.Equal(t, "b", breadcrumbs[0].Message)
		assert.Equal(t, "c", breadcrumbs[1].Message)
		assert.Equal(t, "d", breadcrumbs[2].Message)
	})

	t.Run("A limit of zero disables breadcrumbs", func(t *testing.T) {
		scope := NewScope()
		scope.SetMaxBreadcrumbs(0)
		scope.AddBreadcrumb(model.Breadcrumb{Message: "ignored"})
		assert.Empty(t, scope.Breadcrumbs())
	})

	t.Run("Negative limits are ignored", func(t *testing.T) {
		scope := NewScope()
		scope.SetMaxBreadcrumbs(-1)
		scope.AddBreadcrumb(model.Breadcrumb{Message: "kept"})
		assert.Len(t, scope.Breadcrumbs(), 1)
	})

	t.Run("Stamps breadcrumbs without a timestamp", func(t *testing.T) {
		scope := NewScope()
		scope.AddBreadcrumb(model.Breadcrumb{Message: "now"})
		assert.False(t, scope.Breadcrumbs()[0].Timestamp.IsZero())
	})
}

func TestScope_SetPropagationContext(t *testing.T) {
	t.Run("Refuses to overwrite an explicitly set context", func(t *testing.T) {
		scope := NewScope()
		first := NewPropagationContext()
		second := NewPropagationContext()

		assert.True(t, scope.SetPropagationContext(first))
		assert.False(t, scope.SetPropagationContext(second))
		assert.Equal(t, first.TraceID, scope.PropagationContext().TraceID)
	})

	t.Run("Replace overwrites unconditionally", func(t *testing.T) {
		scope := NewScope()
		scope.SetPropagationContext(NewPropagationContext())
		replacement := NewPropagationContext()
		scope.ReplacePropagationContext(replacement)
		assert.Equal(t, replacement.TraceID, scope.PropagationContext().TraceID)
	})

	t.Run("The generated context of a new scope can be replaced", func(t *testing.T) {
		scope := NewScope()
		pc := NewPropagationContext()
		assert.True(t, scope.SetPropagationContext(pc))
	})
}

func TestScope_Clear(t *testing.T) {
	t.Run("Resets data but keeps the client", func(t *testing.T) {
		client := &Client{}
		scope := NewScope()
		scope.SetClient(client)
		scope.SetTag("k", "v")
		scope.SetUser(model.User{ID: "42"})
		scope.AddBreadcrumb(model.Breadcrumb{Message: "crumb"})

		scope.Clear()

		assert.Empty(t, scope.Tags())
		assert.True(t, scope.User().IsEmpty())
		assert.Empty(t, scope.Breadcrumbs())
		assert.Same(t, client, scope.Client())
	})
}

func TestScope_NilReceiver(t *testing.T) {
	t.Run("Operations on a nil scope are ignored", func(t *testing.T) {
		var scope *Scope
		assert.NotPanics(t, func() {
			scope.SetTag("k", "v")
			scope.SetExtra("k", "v")
			scope.SetUser(model.User{ID: "1"})
			scope.AddBreadcrumb(model.Breadcrumb{})
			scope.AddEventProcessor(func(event *model.Event, _ *EventHint) *model.Event { return event })
			scope.Update(&CaptureContext{Tags: map[string]string{"k": "v"}})
		})
	})
}

func TestMergeScopes(t *testing.T) {
	t.Run("Current overrides isolation overrides global", func(t *testing.T) {
		global := NewScope()
		isolation := NewScope()
		current := NewScope()
		global.SetTag("level", "global")
		global.SetTag("global_only", "g")
		isolation.SetTag("level", "isolation")
		isolation.SetTag("isolation_only", "i")
		current.SetTag("level", "current")

		merged := mergeScopes(global, isolation, current)
		event := &model.Event{}
		merged.applyToEvent(event)

		assert.Equal(t, "current", event.Tags["level"])
		assert.Equal(t, "g", event.Tags["global_only"])
		assert.Equal(t, "i", event.Tags["isolation_only"])
	})

	t.Run("Event values win over scope values", func(t *testing.T) {
		current := NewScope()
		current.SetTag("k", "scope")
		event := &model.Event{Tags: map[string]string{"k": "event"}}
		merged := mergeScopes(current)
		merged.applyToEvent(event)
		assert.Equal(t, "event", event.Tags["k"])
	})

	t.Run("Breadcrumbs are concatenated and trimmed", func(t *testing.T) {
		global := NewScope()
		current := NewScope()
		current.SetMaxBreadcrumbs(2)
		global.AddBreadcrumb(model.Breadcrumb{Message: "global"})
		current.AddBreadcrumb(model.Breadcrumb{Message: "current-1"})
		current.AddBreadcrumb(model.Breadcrumb{Message: "current-2"})

		event := &model.Event{}
		merged := mergeScopes(global, current)
		merged.applyToEvent(event)

		assert.Len(t, event.Breadcrumbs, 2)
		assert.Equal(t, "current-1", event.Breadcrumbs[0].Message)
		assert.Equal(t, "current-2", event.Breadcrumbs[1].Message)
	})

	t.Run("Links the event to the propagation context without an active span", func(t *testing.T) {
		current := NewScope()
		pc := NewPropagationContext()
		current.ReplacePropagationContext(pc)
		event := &model.Event{}
		merged := mergeScopes(current)
		merged.applyToEvent(event)

		tc, ok := event.TraceContext()
		assert.True(t, ok)
		assert.Equal(t, pc.TraceID.String(), tc.TraceID)
	})
}
