package captureconsole

import (
	"context"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"strings"
	"sync/atomic"
)

const IntegrationName = "CaptureConsole"

const (
	LevelDebug  = "debug"
	LevelInfo   = "info"
	LevelWarn   = "warn"
	LevelError  = "error"
	LevelLog    = "log"
	LevelAssert = "assert"
	LevelTrace  = "trace"
)

var DefaultLevels = []string{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelLog, LevelAssert, LevelTrace}

type Options struct {
	// Levels limits which console levels are captured. Empty means DefaultLevels.
	Levels []string
}

// Integration turns console-style log calls into events. Log frameworks reach it through the
// logrus hook and the zap core adapters.
type Integration struct {
	levels map[string]struct{}
	client atomic.Pointer[augur.Client]
}

func New(options Options) *Integration {
	levels := options.Levels
	if len(levels) == 0 {
		levels = DefaultLevels
	}
	i := &Integration{levels: make(map[string]struct{}, len(levels))}
	for _, level := range levels {
		i.levels[level] = struct{}{}
	}
	return i
}

func (i *Integration) Name() string {
	return IntegrationName
}

func (i *Integration) Setup(client *augur.Client) {
	i.client.Store(client)
}

// Handle captures one console call. Calls are ignored when the client of ctx is not the client
// the integration was set up for, or when the level is not enabled.
func (i *Integration) Handle(ctx context.Context, level string, args ...any) {
	client := i.client.Load()
	if client == nil || augur.CurrentClient(ctx) != client {
		return
	}
	if _, ok := i.levels[level]; !ok {
		return
	}

	augur.WithScope(ctx, func(ctx context.Context, scope *augur.Scope) {
		scope.AddEventProcessor(func(event *model.Event, _ *augur.EventHint) *model.Event {
			event.Logger = "console"
			handled := false
			augur.AddExceptionMechanism(event, model.Mechanism{Type: augur.MechanismConsole, Handled: &handled})
			return event
		})
		captureContext := &augur.CaptureContext{
			Level: model.LevelFromString(level),
			Extra: map[string]interface{}{"arguments": extraArguments(args)},
		}

		if level == LevelAssert {
			if len(args) == 0 || !truthy(args[0]) {
				rest := []any{}
				if len(args) > 1 {
					rest = args[1:]
				}
				message := join(rest)
				if message == "" {
					message = "console.assert"
				}
				captureContext.Extra["arguments"] = extraArguments(rest)
				client.CaptureMessage(ctx, "Assertion failed: "+message, captureContext)
			}
			return
		}

		if level == LevelError {
			if err := firstError(args); err != nil {
				client.CaptureException(ctx, err, captureContext)
				return
			}
		}
		client.CaptureMessage(ctx, join(args), captureContext)
	})
}

func firstError(args []any) error {
	for _, arg := range args {
		if err, ok := arg.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	default:
		return true
	}
}

func join(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	return strings.Join(parts, " ")
}

// extraArguments keeps arguments serializable; errors are reported by their message.
func extraArguments(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		if err, ok := arg.(error); ok {
			out[i] = err.Error()
			continue
		}
		out[i] = arg
	}
	return out
}
