package augur

import (
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"go.uber.org/zap"
)

const (
	MechanismGeneric = "generic"
	MechanismConsole = "console"
	MechanismPanic   = "panic"
	MechanismHTTP    = "http"
)

func defaultMechanism() model.Mechanism {
	return model.Mechanism{Type: MechanismGeneric, Handled: boolPtr(true)}
}

// AddExceptionMechanism merges mechanism onto the outermost exception of the event, the last
// one in the list. Fields left empty in mechanism keep their current value, falling back to
// {generic, handled}.
func AddExceptionMechanism(event *model.Event, mechanism model.Mechanism) {
	if event == nil || event.Exception == nil || len(event.Exception.Values) == 0 {
		return
	}
	exception := &event.Exception.Values[len(event.Exception.Values)-1]
	merged := defaultMechanism()
	if exception.Mechanism != nil {
		merged = mergeMechanism(merged, *exception.Mechanism)
	}
	merged = mergeMechanism(merged, mechanism)
	exception.Mechanism = &merged
}

func mergeMechanism(base model.Mechanism, override model.Mechanism) model.Mechanism {
	if override.Type != "" {
		base.Type = override.Type
	}
	if override.Handled != nil {
		base.Handled = boolPtr(*override.Handled)
	}
	if len(override.Data) > 0 {
		data := make(map[string]interface{}, len(base.Data)+len(override.Data))
		for k, v := range base.Data {
			data[k] = v
		}
		for k, v := range override.Data {
			data[k] = v
		}
		base.Data = data
	}
	return base
}

// ensureMechanism gives every exception a mechanism with an explicit handled flag. A missing
// flag means the producer forgot to tag the capture path.
func ensureMechanism(event *model.Event, logger *zap.Logger) {
	if event.Exception == nil {
		return
	}
	for i := range event.Exception.Values {
		exception := &event.Exception.Values[i]
		if exception.Mechanism != nil && exception.Mechanism.Handled != nil {
			continue
		}
		logger.Debug("Exception captured without mechanism.handled, defaulting to generic handled",
			zap.String("event_id", event.EventID),
			zap.String("exception_type", exception.Type),
		)
		merged := defaultMechanism()
		if exception.Mechanism != nil {
			merged = mergeMechanism(merged, *exception.Mechanism)
		}
		exception.Mechanism = &merged
	}
}
