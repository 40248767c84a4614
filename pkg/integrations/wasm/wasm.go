package wasm

import (
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"regexp"
)

const IntegrationName = "Wasm"

var wasmFrame = regexp.MustCompile(`^(.*?):wasm-function\[\d+\]:(0x[a-fA-F0-9]+)$`)

// Integration rewrites WebAssembly frames so they can be symbolicated server side against the
// registered module images. It is the only stage writing instruction_addr, addr_mode, filename
// and platform of those frames, and debug_meta.images.
type Integration struct {
	registry *Registry
}

func New(registry *Registry) *Integration {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Integration{registry: registry}
}

func (i *Integration) Name() string {
	return IntegrationName
}

func (i *Integration) Registry() *Registry {
	return i.registry
}

func (i *Integration) ProcessEvent(event *model.Event, _ *augur.EventHint, _ *augur.Client) *model.Event {
	if event.Exception == nil {
		return event
	}
	haveWasm := false
	for e := range event.Exception.Values {
		stacktrace := event.Exception.Values[e].Stacktrace
		if stacktrace == nil {
			continue
		}
		if i.patchFrames(stacktrace.Frames) {
			haveWasm = true
		}
	}
	if haveWasm {
		if event.DebugMeta == nil {
			event.DebugMeta = &model.DebugMeta{}
		}
		event.DebugMeta.Images = append(event.DebugMeta.Images, i.registry.Images()...)
	}
	return event
}

func (i *Integration) patchFrames(frames []model.Frame) bool {
	patched := false
	for f := range frames {
		frame := &frames[f]
		if frame.Filename == "" {
			continue
		}
		match := wasmFrame.FindStringSubmatch(frame.Filename)
		if match == nil {
			continue
		}
		index := i.registry.Image(match[1])
		if index < 0 {
			continue
		}
		frame.InstructionAddr = match[2]
		frame.AddrMode = fmt.Sprintf("rel:%d", index)
		frame.Filename = match[1]
		frame.Platform = "native"
		patched = true
	}
	return patched
}
