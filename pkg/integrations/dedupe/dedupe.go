package dedupe

import (
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
	"strconv"
	"time"
)

const (
	IntegrationName = "Dedupe"
	DefaultWindow   = 30 * time.Second
)

// Integration drops error events identical to one sent within the window. Transactions are
// never deduplicated.
type Integration struct {
	window time.Duration
	seen   *ristretto.Cache
}

func New(window time.Duration) (*Integration, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 14,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dedupe cache: %w", err)
	}
	return &Integration{window: window, seen: cache}, nil
}

func (i *Integration) Name() string {
	return IntegrationName
}

func (i *Integration) DropReason() string {
	return augur.DropReasonDuplicate
}

func (i *Integration) ProcessEvent(event *model.Event, _ *augur.EventHint, client *augur.Client) *model.Event {
	if event.Type == model.TransactionEventType {
		return event
	}
	key := Fingerprint(event)
	if _, found := i.seen.Get(key); found {
		client.Logger().Debug("Dropping duplicate event",
			zap.String("event_id", event.EventID),
			zap.Uint64("fingerprint", key),
		)
		return nil
	}
	i.seen.SetWithTTL(key, event.EventID, 1, i.window)
	i.seen.Wait()
	return event
}

// Fingerprint hashes what makes two error events the same: the message, the explicit
// fingerprint and every exception with its frames.
func Fingerprint(event *model.Event) uint64 {
	digest := xxhash.New()
	write := func(s string) {
		_, _ = digest.WriteString(s)
		_, _ = digest.WriteString("\x00")
	}
	write(event.Message)
	for _, part := range event.Fingerprint {
		write(part)
	}
	if event.Exception != nil {
		for _, exception := range event.Exception.Values {
			write(exception.Type)
			write(exception.Value)
			if exception.Stacktrace == nil {
				continue
			}
			for _, frame := range exception.Stacktrace.Frames {
				write(frame.Filename)
				write(frame.Function)
				write(strconv.Itoa(frame.Lineno))
			}
		}
	}
	return digest.Sum64()
}
