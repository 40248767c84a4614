package session

import (
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/google/uuid"
	"sync"
	"time"
)

type Status string

const (
	OK       Status = "ok"
	Exited   Status = "exited"
	Crashed  Status = "crashed"
	Abnormal Status = "abnormal"
)

// IsTerminal reports whether a session in this status must not be updated anymore.
func (s Status) IsTerminal() bool {
	return s == Exited || s == Crashed || s == Abnormal
}

type Update struct {
	Errored bool
	Crashed bool
	UserID  string
}

// Session tracks the health of one unit of work (a process run or a request).
// Once the status leaves OK it is final.
type Session struct {
	id          string
	distinctID  string
	status      Status
	errors      int
	started     time.Time
	timestamp   time.Time
	duration    time.Duration
	init        bool
	sequence    uint64
	release     string
	environment string
	mu          sync.Mutex
}

func NewSession(release string, environment string) *Session {
	now := time.Now().UTC()
	return &Session{
		id:          uuid.NewString(),
		status:      OK,
		started:     now,
		timestamp:   now,
		init:        true,
		release:     release,
		environment: environment,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Errors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}

// Update applies an update unless the session is already terminal. It returns whether the
// session changed.
func (s *Session) Update(update Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	if update.UserID != "" && s.distinctID == "" {
		s.distinctID = update.UserID
	}
	if update.Errored || update.Crashed {
		s.errors++
	}
	if update.Crashed {
		s.status = Crashed
		s.duration = time.Since(s.started)
	}
	s.touch()
	return true
}

// End moves an OK session to Exited. Ending a terminal session is a no-op and returns false.
func (s *Session) End() bool {
	return s.close(Exited)
}

// MarkAbnormal ends the session as abnormal, e.g. when the process is going away without a clean exit.
func (s *Session) MarkAbnormal() bool {
	return s.close(Abnormal)
}

func (s *Session) close(status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return false
	}
	s.status = status
	s.duration = time.Since(s.started)
	s.touch()
	return true
}

func (s *Session) touch() {
	s.timestamp = time.Now().UTC()
	s.sequence++
}

// ToPayload snapshots the session. The init flag is only reported on the first snapshot.
func (s *Session) ToPayload() model.SessionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload := model.SessionPayload{
		SessionID:  s.id,
		DistinctID: s.distinctID,
		Status:     string(s.status),
		Errors:     s.errors,
		Init:       s.init,
		Started:    s.started,
		Timestamp:  s.timestamp,
		Duration:   s.duration.Seconds(),
		Sequence:   s.sequence,
		Attributes: model.SessionAttributes{
			Release:     s.release,
			Environment: s.environment,
		},
	}
	s.init = false
	return payload
}
