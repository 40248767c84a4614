package augur

import (
	"errors"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

const (
	maxErrorDepth  = 10
	maxStackFrames = 50
)

// ExceptionsFromError converts err and the errors it wraps into exceptions, outermost last.
// The outermost exception carries the stack trace of the capture site.
func ExceptionsFromError(err error, skip int) []model.Exception {
	if err == nil {
		return nil
	}
	var chain []error
	for current := err; current != nil && len(chain) < maxErrorDepth; current = errors.Unwrap(current) {
		chain = append(chain, current)
	}
	exceptions := make([]model.Exception, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		exceptions = append(exceptions, model.Exception{
			Type:  errorType(chain[i]),
			Value: chain[i].Error(),
		})
	}
	frames := currentFrames(skip + 1)
	if len(frames) > 0 {
		exceptions[len(exceptions)-1].Stacktrace = &model.Stacktrace{Frames: frames}
	}
	return exceptions
}

func errorType(err error) string {
	t := reflect.TypeOf(err)
	if t == nil {
		return "error"
	}
	return t.String()
}

// currentFrames returns the caller's stack, oldest frame first. Frames without a function
// name are skipped.
func currentFrames(skip int) []model.Frame {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}
	callersFrames := runtime.CallersFrames(pcs[:n])
	var frames []model.Frame
	for {
		frame, more := callersFrames.Next()
		if f, ok := toFrame(frame); ok {
			frames = append(frames, f)
		}
		if !more {
			break
		}
	}
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

func toFrame(frame runtime.Frame) (model.Frame, bool) {
	if frame.Function == "" {
		return model.Frame{}, false
	}
	module, function := splitFunctionName(frame.Function)
	return model.Frame{
		Filename: filepath.Base(frame.File),
		AbsPath:  frame.File,
		Function: function,
		Module:   module,
		Lineno:   frame.Line,
		InApp:    isInApp(module),
	}, true
}

// splitFunctionName splits "github.com/org/pkg.(*Type).Method" into the package path and
// "(*Type).Method".
func splitFunctionName(name string) (string, string) {
	lastSlash := strings.LastIndex(name, "/")
	dot := strings.Index(name[lastSlash+1:], ".")
	if dot < 0 {
		return "", name
	}
	dot += lastSlash + 1
	return name[:dot], name[dot+1:]
}

func isInApp(module string) bool {
	if module == "main" {
		return true
	}
	// standard library import paths have no dot in their first element
	first, _, _ := strings.Cut(module, "/")
	if !strings.Contains(first, ".") {
		return false
	}
	return !strings.HasPrefix(module, "github.com/Avi18971911/augur-go/pkg/")
}

// exceptionFromRecovered builds an exception for a value passed to panic.
func exceptionFromRecovered(recovered any, skip int) []model.Exception {
	if err, ok := recovered.(error); ok {
		return ExceptionsFromError(err, skip+1)
	}
	exception := model.Exception{
		Type:  MechanismPanic,
		Value: fmt.Sprint(recovered),
	}
	if frames := currentFrames(skip + 1); len(frames) > 0 {
		exception.Stacktrace = &model.Stacktrace{Frames: frames}
	}
	return []model.Exception{exception}
}
