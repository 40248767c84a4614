package augur

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"time"
)

// CaptureContext is applied to a fork of the current scope for a single capture.
type CaptureContext struct {
	Level       model.Level
	Tags        map[string]string
	Extra       map[string]interface{}
	User        *model.User
	Fingerprint []string
	Contexts    map[string]map[string]any
	// Mechanism overrides the capture path's default mechanism.
	Mechanism *model.Mechanism
}

// CaptureException captures err with the client of ctx. Errors passed here were caught by the
// caller, so the mechanism defaults to {generic, handled}. It returns the event id, or "" when
// the event was dropped or the client is disabled.
func CaptureException(ctx context.Context, err error, captureContext *CaptureContext) string {
	return CurrentClient(ctx).CaptureException(ctx, err, captureContext)
}

// CaptureMessage captures a message event with the client of ctx.
func CaptureMessage(ctx context.Context, message string, captureContext *CaptureContext) string {
	return CurrentClient(ctx).CaptureMessage(ctx, message, captureContext)
}

// CaptureEvent captures a prebuilt event with the client of ctx.
func CaptureEvent(ctx context.Context, event *model.Event, hint *EventHint) string {
	return CurrentClient(ctx).CaptureEvent(ctx, event, hint)
}

// Recover captures a value obtained from recover(). Nil values are ignored.
//
//	defer func() {
//		if r := recover(); r != nil {
//			augur.Recover(ctx, r, nil)
//			panic(r)
//		}
//	}()
func Recover(ctx context.Context, recovered any, captureContext *CaptureContext) string {
	return CurrentClient(ctx).Recover(ctx, recovered, captureContext)
}

// AddBreadcrumb records a breadcrumb on the isolation scope of ctx.
func AddBreadcrumb(ctx context.Context, breadcrumb *model.Breadcrumb) {
	CurrentClient(ctx).AddBreadcrumb(ctx, breadcrumb)
}

func (c *Client) CaptureException(ctx context.Context, err error, captureContext *CaptureContext) string {
	if !c.Enabled() || err == nil {
		return ""
	}
	event := &model.Event{
		Level:     model.ErrorLevel,
		Exception: &model.ExceptionList{Values: ExceptionsFromError(err, 1)},
	}
	mechanism := defaultMechanism()
	if captureContext != nil && captureContext.Mechanism != nil {
		mechanism = mergeMechanism(mechanism, *captureContext.Mechanism)
	}
	AddExceptionMechanism(event, mechanism)
	return c.captureWithContext(ctx, event, &EventHint{OriginalException: err, Mechanism: &mechanism}, captureContext)
}

func (c *Client) CaptureMessage(ctx context.Context, message string, captureContext *CaptureContext) string {
	if !c.Enabled() {
		return ""
	}
	event := &model.Event{
		Level:   model.InfoLevel,
		Message: message,
	}
	return c.captureWithContext(ctx, event, &EventHint{SyntheticMessage: message}, captureContext)
}

func (c *Client) CaptureEvent(ctx context.Context, event *model.Event, hint *EventHint) string {
	if !c.Enabled() {
		return ""
	}
	return c.captureEvent(event, hint, IsolationScope(ctx), CurrentScope(ctx))
}

func (c *Client) Recover(ctx context.Context, recovered any, captureContext *CaptureContext) string {
	if !c.Enabled() || recovered == nil {
		return ""
	}
	event := &model.Event{
		Level:     model.FatalLevel,
		Exception: &model.ExceptionList{Values: exceptionFromRecovered(recovered, 1)},
	}
	mechanism := model.Mechanism{Type: MechanismPanic, Handled: boolPtr(false)}
	if captureContext != nil && captureContext.Mechanism != nil {
		mechanism = mergeMechanism(mechanism, *captureContext.Mechanism)
	}
	AddExceptionMechanism(event, mechanism)
	hint := &EventHint{RecoveredException: recovered, Mechanism: &mechanism}
	if err, ok := recovered.(error); ok {
		hint.OriginalException = err
	}
	return c.captureWithContext(ctx, event, hint, captureContext)
}

func (c *Client) captureWithContext(
	ctx context.Context,
	event *model.Event,
	hint *EventHint,
	captureContext *CaptureContext,
) string {
	current := CurrentScope(ctx)
	if captureContext != nil {
		current = current.Fork()
		current.Update(captureContext)
	}
	return c.captureEvent(event, hint, IsolationScope(ctx), current)
}

func (c *Client) AddBreadcrumb(ctx context.Context, breadcrumb *model.Breadcrumb) {
	if !c.Enabled() || breadcrumb == nil || c.options.maxBreadcrumbs() == 0 {
		return
	}
	b := *breadcrumb
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now().UTC()
	}
	if c.options.BeforeBreadcrumb != nil {
		result := c.options.BeforeBreadcrumb(b)
		if result == nil {
			return
		}
		b = *result
	}
	IsolationScope(ctx).AddBreadcrumb(b)
}

// SetTag sets a tag on the isolation scope of ctx.
func SetTag(ctx context.Context, key string, value string) {
	IsolationScope(ctx).SetTag(key, value)
}

// SetUser sets the user on the isolation scope of ctx.
func SetUser(ctx context.Context, user model.User) {
	IsolationScope(ctx).SetUser(user)
}

// SetExtra sets extra data on the isolation scope of ctx.
func SetExtra(ctx context.Context, key string, value interface{}) {
	IsolationScope(ctx).SetExtra(key, value)
}

// SetContext sets a named context on the isolation scope of ctx.
func SetContext(ctx context.Context, key string, value map[string]any) {
	IsolationScope(ctx).SetContext(key, value)
}

// Flush flushes the client of ctx.
func Flush(ctx context.Context) bool {
	return CurrentClient(ctx).Flush(ctx)
}
