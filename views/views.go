// Package views holds the view-models of the grading application pages.
// Each view-model keeps its state in its own mutex-guarded container, runs
// its background status checks on its own polling.Manager and sends the user
// away through a nav.Navigator when the server refuses or fails a request.
package views

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/logger"
	"github.com/notebookgrader/grader-client/nav"
	"github.com/notebookgrader/grader-client/objstore"
	"github.com/notebookgrader/grader-client/polling"
)

var (
	ErrBusy           = errors.New("a request is already in progress")
	ErrReadonly       = errors.New("the file is read-only")
	ErrNoFile         = errors.New("there is no file")
	ErrNotConfirmed   = errors.New("feedback request was not confirmed")
	ErrNothingToRate  = errors.New("there is no received feedback to rate")
	ErrRatingDisabled = errors.New("star rating is not enabled")
	ErrNotPolling     = errors.New("nothing is being watched")
)

// Env carries the collaborators shared by every view-model
type Env struct {
	Client    *grader.Client
	Storage   *objstore.Client
	Navigator nav.Navigator
	Log       logger.Logger
	// Polling is the poll configuration; the zero value means polling.DefaultConfig
	Polling polling.Config
	// Location is where dates are displayed; nil means time.Local
	Location *time.Location
	// Now replaces the wall clock (tests)
	Now func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Log == nil {
		e.Log = logger.Discard()
	}
	if e.Navigator == nil {
		e.Navigator = nav.Func(func(nav.Destination) {})
	}
	if e.Polling == (polling.Config{}) {
		e.Polling = polling.DefaultConfig()
	}
	if e.Location == nil {
		e.Location = time.Local
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Storage == nil {
		e.Storage = objstore.New(0, e.Log)
	}
	return e
}

func (e Env) manager(fetcher polling.Fetcher) *polling.Manager {
	return polling.NewManager(fetcher, e.Navigator, e.Log, e.Polling)
}

// fail sends the user to the page matching err. Nothing happens when the
// caller gave up on the request.
func (e Env) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	dest := nav.For(err)
	e.Log.Error("request failed", err, dest)
	e.Navigator.Redirect(dest)
	return err
}

// displayLayout renders dates like "Mon, Jan 2, 2006, 3:04 PM"
const displayLayout = "Mon, Jan 2, 2006, 3:04 PM"

func (e Env) display(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(e.Location).Format(displayLayout)
}
