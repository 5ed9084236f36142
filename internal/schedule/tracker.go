package schedule

import (
	"sync"
	"time"

	"github.com/eurogig/webtimelapse/internal/config"
)

// State is the coarse phase of the process.
type State string

const (
	StateStarting   State = "starting"
	StateCapturing  State = "capturing"
	StateAssembling State = "assembling"
	StateDone       State = "done"
)

// Status is a point-in-time view of a session for the API and tray.
type Status struct {
	SessionID     string    `json:"session_id"`
	State         State     `json:"state"`
	URL           string    `json:"url"`
	Mode          string    `json:"mode"`
	ExpectedShots int       `json:"expected_shots"`
	Attempted     int       `json:"attempted"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	LastName      string    `json:"last_name,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	LastAt        time.Time `json:"last_at,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	StopRequested bool      `json:"stop_requested"`
	Video         string    `json:"video,omitempty"`
}

// Tracker keeps the live Status. It is an Observer and is safe for
// concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	status   Status
	onChange func(Status)
}

// NewTracker starts tracking a session.
func NewTracker(sessionID string, s config.Session, startedAt time.Time) *Tracker {
	return &Tracker{status: Status{
		SessionID:     sessionID,
		State:         StateStarting,
		URL:           s.URL,
		Mode:          string(s.Mode()),
		ExpectedShots: s.ExpectedShots(),
		StartedAt:     startedAt,
	}}
}

// OnChange registers fn to be called, outside the lock, after every update.
func (t *Tracker) OnChange(fn func(Status)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Observe implements Observer.
func (t *Tracker) Observe(ev Event) {
	t.update(func(s *Status) {
		s.Attempted++
		if ev.Err != nil {
			s.Failed++
			s.LastError = ev.Err.Error()
			return
		}
		s.Succeeded++
		s.LastName = ev.Name
		s.LastAt = ev.Time
	})
}

// SetState moves the session to a new phase.
func (t *Tracker) SetState(state State) {
	t.update(func(s *Status) { s.State = state })
}

// SetVideo records the assembled video path.
func (t *Tracker) SetVideo(path string) {
	t.update(func(s *Status) { s.Video = path })
}

// MarkStopRequested records a user stop request.
func (t *Tracker) MarkStopRequested() {
	t.update(func(s *Status) { s.StopRequested = true })
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Tracker) update(fn func(*Status)) {
	t.mu.Lock()
	fn(&t.status)
	snap, cb := t.status, t.onChange
	t.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}
