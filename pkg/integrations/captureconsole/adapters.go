package captureconsole

import (
	"context"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap/zapcore"
)

type logrusHook struct {
	integration *Integration
	ctx         context.Context
}

// LogrusHook returns a hook forwarding logrus entries. Scopes are resolved from the entry's
// context, or from ctx for entries logged without one.
func (i *Integration) LogrusHook(ctx context.Context) logrus.Hook {
	return &logrusHook{integration: i, ctx: ctx}
}

func (h *logrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *logrusHook) Fire(entry *logrus.Entry) error {
	ctx := entry.Context
	if ctx == nil {
		ctx = h.ctx
	}
	args := []any{entry.Message}
	if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
		args = append(args, err)
	}
	h.integration.Handle(ctx, logrusLevel(entry.Level), args...)
	return nil
}

func logrusLevel(level logrus.Level) string {
	switch level {
	case logrus.TraceLevel:
		return LevelTrace
	case logrus.DebugLevel:
		return LevelDebug
	case logrus.InfoLevel:
		return LevelInfo
	case logrus.WarnLevel:
		return LevelWarn
	default:
		return LevelError
	}
}

type consoleCore struct {
	integration *Integration
	ctx         context.Context
	fields      []zapcore.Field
}

// WrapCore tees core with a core that forwards every written entry to the integration. Scopes
// are resolved from ctx.
func (i *Integration) WrapCore(ctx context.Context, core zapcore.Core) zapcore.Core {
	return zapcore.NewTee(core, &consoleCore{integration: i, ctx: ctx})
}

func (c *consoleCore) Enabled(zapcore.Level) bool {
	return true
}

func (c *consoleCore) With(fields []zapcore.Field) zapcore.Core {
	return &consoleCore{
		integration: c.integration,
		ctx:         c.ctx,
		fields:      append(append([]zapcore.Field(nil), c.fields...), fields...),
	}
}

func (c *consoleCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return checked.AddCore(entry, c)
}

func (c *consoleCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	args := []any{entry.Message}
	for _, field := range append(append([]zapcore.Field(nil), c.fields...), fields...) {
		if field.Type != zapcore.ErrorType {
			continue
		}
		if err, ok := field.Interface.(error); ok {
			args = append(args, err)
		}
	}
	c.integration.Handle(c.ctx, zapLevel(entry.Level), args...)
	return nil
}

func (c *consoleCore) Sync() error {
	return nil
}

func zapLevel(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return LevelDebug
	case zapcore.InfoLevel:
		return LevelInfo
	case zapcore.WarnLevel:
		return LevelWarn
	default:
		return LevelError
	}
}
