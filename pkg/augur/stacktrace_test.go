package augur

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestExceptionsFromError(t *testing.T) {
	t.Run("Walks the wrap chain outermost last", func(t *testing.T) {
		root := errors.New("root")
		err := fmt.Errorf("outer: %w", fmt.Errorf("middle: %w", root))

		exceptions := ExceptionsFromError(err, 0)

		assert.Len(t, exceptions, 3)
		assert.Equal(t, "root", exceptions[0].Value)
		assert.Equal(t, "middle: root", exceptions[1].Value)
		assert.Equal(t, "outer: middle: root", exceptions[2].Value)
		assert.Nil(t, exceptions[0].Stacktrace)
		assert.NotNil(t, exceptions[2].Stacktrace)
	})

	t.Run("Stops after the maximum depth", func(t *testing.T) {
		err := errors.New("root")
		for i := 0; i < 20; i++ {
			err = fmt.Errorf("level %d: %w", i, err)
		}
		assert.Len(t, ExceptionsFromError(err, 0), maxErrorDepth)
	})

	t.Run("The last frame is the capture site", func(t *testing.T) {
		exceptions := ExceptionsFromError(errors.New("here"), 0)
		frames := exceptions[0].Stacktrace.Frames
		last := frames[len(frames)-1]
		assert.Equal(t, "stacktrace_test.go", last.Filename)
		assert.Contains(t, last.Function, "TestExceptionsFromError")
		assert.Equal(t, "github.com/Avi18971911/augur-go/pkg/augur", last.Module)
	})

	t.Run("Nil errors yield no exceptions", func(t *testing.T) {
		assert.Nil(t, ExceptionsFromError(nil, 0))
	})
}

func TestSplitFunctionName(t *testing.T) {
	t.Run("Splits package path and function", func(t *testing.T) {
		for _, tc := range []struct {
			name     string
			module   string
			function string
		}{
			{"github.com/org/repo/pkg.(*Type).Method", "github.com/org/repo/pkg", "(*Type).Method"},
			{"main.main", "main", "main"},
			{"net/http.HandlerFunc.ServeHTTP", "net/http", "HandlerFunc.ServeHTTP"},
		} {
			module, function := splitFunctionName(tc.name)
			assert.Equal(t, tc.module, module)
			assert.Equal(t, tc.function, function)
		}
	})

	t.Run("Classifies application frames", func(t *testing.T) {
		assert.True(t, isInApp("main"))
		assert.True(t, isInApp("github.com/acme/shop/checkout"))
		assert.False(t, isInApp("net/http"))
		assert.False(t, isInApp("runtime"))
		assert.False(t, isInApp("github.com/Avi18971911/augur-go/pkg/augur"))
	})
}
