// Package nav models the page redirects that end a failed interaction.
package nav

import (
	"net/http"
	"sync"

	"github.com/notebookgrader/grader-client/grader"
)

// Destination is where a failed interaction sends the user
type Destination string

const (
	AccessDenied  Destination = "access-denied"
	InternalError Destination = "internal-error"
)

// Destinations maps each Destination to a URL
type Destinations struct {
	AccessDenied  string `json:"access_denied" validate:"required"`
	InternalError string `json:"internal_error" validate:"required"`
}

// URL returns the URL of d
func (ds Destinations) URL(d Destination) string {
	if d == AccessDenied {
		return ds.AccessDenied
	}
	return ds.InternalError
}

// Navigator performs redirects
type Navigator interface {
	Redirect(d Destination)
}

// For maps a failed request to its destination:
// forbidden goes to the access-denied page, everything else to the generic error page.
func For(err error) Destination {
	if grader.StatusCode(err) == http.StatusForbidden {
		return AccessDenied
	}
	return InternalError
}

// Func adapts a function to Navigator
type Func func(d Destination)

func (f Func) Redirect(d Destination) { f(d) }

// Recorder is a Navigator that remembers every redirect
type Recorder struct {
	mu        sync.Mutex
	redirects []Destination
}

func (r *Recorder) Redirect(d Destination) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects = append(r.redirects, d)
}

// Redirects returns the redirects recorded so far
func (r *Recorder) Redirects() []Destination {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Destination, len(r.redirects))
	copy(out, r.redirects)
	return out
}

// Count returns how many times d was recorded
func (r *Recorder) Count(d Destination) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, got := range r.redirects {
		if got == d {
			n++
		}
	}
	return n
}
