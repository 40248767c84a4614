package dedupe

import (
	"errors"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/augur/augurtest"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestIntegration_ProcessEvent(t *testing.T) {
	t.Run("Drops the second identical event", func(t *testing.T) {
		integration, err := New(time.Minute)
		assert.Nil(t, err)
		harness := augurtest.NewHarness(t, augur.Options{Integrations: []augur.Integration{integration}})
		err = errors.New("payment gateway timeout")

		for i := 0; i < 2; i++ {
			// same call site, so the stack traces match
			harness.Client.CaptureException(harness.Ctx, err, nil)
		}
		harness.Client.CaptureException(harness.Ctx, errors.New("a different failure"), nil)

		envelopes := harness.Flush(t, transport.EventKind)
		assert.Len(t, envelopes, 2)
		assert.Equal(t, uint64(1), harness.Client.DroppedEvents(augur.DropReasonDuplicate, augur.CategoryError))
	})

	t.Run("Forgets events after the window", func(t *testing.T) {
		integration, err := New(50 * time.Millisecond)
		assert.Nil(t, err)
		event := &model.Event{Message: "retry exhausted"}

		assert.NotNil(t, integration.ProcessEvent(event, nil, nil))
		assert.Nil(t, integration.ProcessEvent(event, nil, nil))
		time.Sleep(100 * time.Millisecond)
		assert.NotNil(t, integration.ProcessEvent(event, nil, nil))
	})

	t.Run("Never drops transactions", func(t *testing.T) {
		integration, err := New(time.Minute)
		assert.Nil(t, err)
		transaction := &model.Event{Type: model.TransactionEventType, Transaction: "GET /health"}

		assert.NotNil(t, integration.ProcessEvent(transaction, nil, nil))
		assert.NotNil(t, integration.ProcessEvent(transaction, nil, nil))
	})
}

func TestFingerprint(t *testing.T) {
	t.Run("Differs by exception value and frames", func(t *testing.T) {
		base := &model.Event{Exception: &model.ExceptionList{Values: []model.Exception{{
			Type:       "*errors.errorString",
			Value:      "boom",
			Stacktrace: &model.Stacktrace{Frames: []model.Frame{{Filename: "main.go", Function: "main", Lineno: 10}}},
		}}}}
		otherValue := &model.Event{Exception: &model.ExceptionList{Values: []model.Exception{{
			Type:       "*errors.errorString",
			Value:      "bang",
			Stacktrace: &model.Stacktrace{Frames: []model.Frame{{Filename: "main.go", Function: "main", Lineno: 10}}},
		}}}}
		otherLine := &model.Event{Exception: &model.ExceptionList{Values: []model.Exception{{
			Type:       "*errors.errorString",
			Value:      "boom",
			Stacktrace: &model.Stacktrace{Frames: []model.Frame{{Filename: "main.go", Function: "main", Lineno: 11}}},
		}}}}

		assert.Equal(t, Fingerprint(base), Fingerprint(base))
		assert.NotEqual(t, Fingerprint(base), Fingerprint(otherValue))
		assert.NotEqual(t, Fingerprint(base), Fingerprint(otherLine))
	})
}
