package polling

import (
	"encoding/json"
	"time"
)

// State is the server-side state of an asynchronous job
type State string

const (
	StateAsk       State = "ask"
	StateConfirm   State = "confirm"
	StateRequested State = "requested"
	StateReceived  State = "received"
	StateError     State = "error"
)

// InProgress reports whether the job is still being worked on.
// The empty state is used by marker-only targets (grade polling).
func (s State) InProgress() bool {
	return s == "" || s == StateRequested
}

// Terminal reports whether polling never starts or resumes from this state
func (s State) Terminal() bool {
	return s == StateReceived || s == StateError
}

// Marker is an opaque, ordered value used to detect new results.
// ISO-8601 timestamps order correctly as strings.
type Marker string

// NewerThan reports whether m is strictly newer than other
func (m Marker) NewerThan(other Marker) bool {
	if m == "" {
		return false
	}
	return other == "" || m > other
}

// Target identifies one outstanding asynchronous job
type Target struct {
	ID        string          `json:"id"`
	StatusURL string          `json:"statusUrl"`
	State     State           `json:"state,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Marker    Marker          `json:"marker,omitempty"`
	Checks    int             `json:"checks"`
	Finished  bool            `json:"finished"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Status is what one status check returns
type Status struct {
	State   State
	Marker  Marker
	Payload json.RawMessage
}

// resolves reports whether st ends polling for t
func (t *Target) resolves(st Status) bool {
	if st.Marker.NewerThan(t.Marker) {
		return true
	}
	return !st.State.InProgress()
}

// apply copies the fields of a resolving status into the target
func (t *Target) apply(st Status) {
	if st.State != "" {
		t.State = st.State
	}
	if st.Marker != "" {
		t.Marker = st.Marker
	}
	t.Payload = st.Payload
}

// Outcome tells how a poll ended
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeForbidden Outcome = "forbidden"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeExhausted Outcome = "exhausted"
)

// Result is delivered once per poll, when it stops
type Result struct {
	Outcome Outcome
	Target  Target
	Err     error
}

// Config configures the polling behavior
type Config struct {
	Schedule        Schedule
	MaxChecks       int           `validate:"gte=0"` // 0 = unlimited
	Retention       time.Duration `validate:"gte=0"` // how long finished targets stay in the store
	CleanupInterval time.Duration `validate:"gt=0"`
}

// DefaultConfig polls with the default schedule forever
func DefaultConfig() Config {
	return Config{
		Schedule:        DefaultSchedule(),
		Retention:       10 * time.Minute,
		CleanupInterval: time.Minute,
	}
}
