package polling

import (
	"math"
	"time"

	"gopkg.in/cenkalti/backoff.v1"

	"github.com/notebookgrader/grader-client/validation"
)

// Default schedule values
const (
	DefaultInitialDelay = 10 * time.Second
	DefaultMultiplier   = 1.2
	DefaultMaxDelay     = 5 * time.Minute
)

// Schedule is a geometric backoff without jitter:
// delay[0] = InitialDelay, delay[i+1] = min(delay[i]*Multiplier, MaxDelay).
//
// Schedule implements backoff.BackOff. It is not safe for concurrent use;
// every poll works on its own copy.
type Schedule struct {
	InitialDelay time.Duration `json:"initialDelay" validate:"gt=0"`
	Multiplier   float64       `json:"multiplier" validate:"gte=1"`
	MaxDelay     time.Duration `json:"maxDelay" validate:"gtefield=InitialDelay"`

	current time.Duration
}

var _ backoff.BackOff = (*Schedule)(nil)

// NewSchedule returns a schedule positioned on its first delay
func NewSchedule(initial time.Duration, multiplier float64, max time.Duration) *Schedule {
	s := &Schedule{InitialDelay: initial, Multiplier: multiplier, MaxDelay: max}
	s.Reset()
	return s
}

// DefaultSchedule starts at 10s, grows by 1.2x and caps at 5 minutes
func DefaultSchedule() Schedule {
	return Schedule{
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Validate checks the schedule parameters
func (s Schedule) Validate() error {
	return validation.Struct(s)
}

// Reset moves the schedule back to InitialDelay
func (s *Schedule) Reset() {
	s.current = s.InitialDelay
}

// NextBackOff returns the current delay and advances to the next one
func (s *Schedule) NextBackOff() time.Duration {
	if s.current <= 0 {
		s.Reset()
	}
	d := s.current
	s.current = s.grow(d)
	return d
}

// Delays returns the first n delays of the schedule without consuming it
func (s Schedule) Delays(n int) []time.Duration {
	c := s
	c.Reset()
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, c.NextBackOff())
	}
	return out
}

func (s *Schedule) grow(d time.Duration) time.Duration {
	if d >= s.MaxDelay {
		return s.MaxDelay
	}
	next := time.Duration(math.Round(float64(d) * s.Multiplier))
	if next < d {
		next = d
	}
	if next > s.MaxDelay {
		return s.MaxDelay
	}
	return next
}
