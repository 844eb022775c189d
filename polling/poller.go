package polling

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/notebookgrader/grader-client/logger"
	"github.com/notebookgrader/grader-client/nav"
)

var (
	ErrAlreadyPolling = errors.New("target is already being polled")
	ErrTerminalTarget = errors.New("target is already in a terminal state")
	ErrNoStatusURL    = errors.New("target has no status URL")
	ErrExhausted      = errors.New("maximum number of status checks reached")
	ErrShutdown       = errors.New("poll manager is shut down")
)

// Fetcher performs one status check
type Fetcher interface {
	FetchStatus(ctx context.Context, statusURL string) (Status, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, statusURL string) (Status, error)

func (f FetcherFunc) FetchStatus(ctx context.Context, statusURL string) (Status, error) {
	return f(ctx, statusURL)
}

// Poller checks one target at a time until it resolves
type Poller struct {
	fetcher   Fetcher
	store     *Store
	navigator nav.Navigator
	log       logger.Logger
	maxChecks int

	// after replaces the timer wait when set (tests)
	after func(time.Duration) <-chan time.Time
}

// NewPoller creates a new poller
func NewPoller(fetcher Fetcher, store *Store, navigator nav.Navigator, log logger.Logger, config Config) *Poller {
	return &Poller{
		fetcher:   fetcher,
		store:     store,
		navigator: navigator,
		log:       log,
		maxChecks: config.MaxChecks,
	}
}

// Run polls the stored target with the given id until it resolves, a check
// fails, the backoff stops, or ctx is cancelled. Checks are strictly
// sequential: the next one is only scheduled after the previous resolved.
func (p *Poller) Run(ctx context.Context, id string, sched backoff.BackOff) Result {
	b := sched
	if p.maxChecks > 0 {
		b = backoff.WithMaxTries(b, uint64(p.maxChecks))
	}
	b = backoff.WithContext(b, ctx)
	b.Reset()

	for {
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			if ctx.Err() != nil {
				return p.finish(id, OutcomeCancelled, ctx.Err())
			}
			return p.finish(id, OutcomeExhausted, ErrExhausted)
		}

		if !p.sleep(ctx, delay) {
			return p.finish(id, OutcomeCancelled, ctx.Err())
		}

		target, err := p.store.Get(id)
		if err != nil {
			return p.finish(id, OutcomeFailed, err)
		}

		p.log.Debug("checking status", target.StatusURL, delay)
		st, err := p.fetcher.FetchStatus(ctx, target.StatusURL)

		// A response to a cancelled poll is dropped.
		if ctx.Err() != nil {
			return p.finish(id, OutcomeCancelled, ctx.Err())
		}

		if err != nil {
			return p.fail(id, err)
		}

		var resolved bool
		if _, err := p.store.Update(id, func(t *Target) {
			t.Checks++
			if t.resolves(st) {
				t.apply(st)
				resolved = true
			}
		}); err != nil {
			return p.finish(id, OutcomeFailed, err)
		}

		if resolved {
			return p.finish(id, OutcomeCompleted, nil)
		}
	}
}

// fail ends the poll on a transport failure and redirects exactly once
func (p *Poller) fail(id string, err error) Result {
	dest := nav.For(err)
	outcome := OutcomeFailed
	if dest == nav.AccessDenied {
		outcome = OutcomeForbidden
	}

	res := p.finish(id, outcome, errors.Wrap(err, "checking status"))
	p.log.Error("status check failed", res.Err, dest)
	if p.navigator != nil {
		p.navigator.Redirect(dest)
	}
	return res
}

func (p *Poller) finish(id string, outcome Outcome, err error) Result {
	target, ferr := p.store.Finish(id)
	if ferr != nil {
		p.log.Warn("finishing poll", ferr)
		if err == nil {
			err = ferr
		}
	}
	return Result{Outcome: outcome, Target: target, Err: err}
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	var fire <-chan time.Time
	if p.after != nil {
		fire = p.after(d)
	} else {
		timer := time.NewTimer(d)
		defer timer.Stop()
		fire = timer.C
	}

	select {
	case <-ctx.Done():
		return false
	case <-fire:
		return ctx.Err() == nil
	}
}
