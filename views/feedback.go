package views

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/polling"
	"github.com/notebookgrader/grader-client/validation"
)

// feedbackErrorMessage is shown when the request itself could not be sent
const feedbackErrorMessage = "An error occurred."

// Feedback is the state of an AI feedback button
type Feedback struct {
	State        polling.State
	FeedbackURL  string
	ErrorMessage string
	Stars        int
}

// FeedbackButton drives the AI feedback of one homework:
// ask -> confirm -> requested -> received | error.
type FeedbackButton struct {
	env       Env
	url       string
	ratingURL string
	rating    bool
	manager   *polling.Manager

	mu     sync.Mutex
	state  Feedback
	handle *polling.Handle
}

// NewFeedbackButton creates the button of homework id. rating enables Rate.
func NewFeedbackButton(env Env, id string, rating bool) *FeedbackButton {
	env = env.withDefaults()
	routes := grader.RoutesFor(env.Client.BaseURL(), id)
	return &FeedbackButton{
		env:       env,
		url:       routes.AIFeedback,
		ratingURL: routes.AIFeedbackRating,
		rating:    rating,
		manager:   env.manager(feedbackStatus(env.Client)),
		state:     Feedback{State: polling.StateAsk},
	}
}

// State returns a snapshot of the button
func (b *FeedbackButton) State() Feedback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Ask asks the user to confirm the request
func (b *FeedbackButton) Ask() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state.State {
	case polling.StateAsk, polling.StateError:
		b.state.State = polling.StateConfirm
		b.state.ErrorMessage = ""
	}
}

// Cancel withdraws an unconfirmed request
func (b *FeedbackButton) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.State == polling.StateConfirm {
		b.state.State = polling.StateAsk
	}
}

// Confirm sends the feedback request and watches it while the server works on it
func (b *FeedbackButton) Confirm(ctx context.Context) error {
	b.mu.Lock()
	if b.state.State != polling.StateConfirm {
		b.mu.Unlock()
		return ErrNotConfirmed
	}
	b.state.State = polling.StateRequested
	b.mu.Unlock()

	fb, err := b.env.Client.RequestFeedback(ctx, b.url)
	if err != nil {
		b.env.Log.Error("feedback request failed", err)
		b.mu.Lock()
		b.state.State = polling.StateError
		b.state.ErrorMessage = feedbackErrorMessage
		b.mu.Unlock()
		return err
	}
	// An answer that is not requested is shown as is: received with its URL,
	// error with the server message. Older web clients fell into the generic
	// feedbackErrorMessage here instead.
	if b.apply(fb) == polling.StateRequested {
		return b.watch()
	}
	return nil
}

// Load fetches the current state and resumes watching a pending request
func (b *FeedbackButton) Load(ctx context.Context) error {
	fb, err := b.env.Client.FeedbackStatus(ctx, b.url)
	if err != nil {
		return b.env.fail(ctx, err)
	}
	if b.apply(fb) == polling.StateRequested {
		return b.watch()
	}
	return nil
}

// Rate sends a 1 to 5 star rating of the received feedback
func (b *FeedbackButton) Rate(ctx context.Context, stars int) error {
	if !b.rating {
		return ErrRatingDisabled
	}
	if err := validation.Struct(grader.Rating{Stars: stars}); err != nil {
		return err
	}

	b.mu.Lock()
	received := b.state.State == polling.StateReceived
	b.mu.Unlock()
	if !received {
		return ErrNothingToRate
	}

	if _, err := b.env.Client.RateFeedback(ctx, b.ratingURL, stars); err != nil {
		return b.env.fail(ctx, err)
	}
	b.mu.Lock()
	b.state.Stars = stars
	b.mu.Unlock()
	return nil
}

// Wait blocks until the pending request is answered or ctx is done
func (b *FeedbackButton) Wait(ctx context.Context) (polling.Result, error) {
	b.mu.Lock()
	h := b.handle
	b.mu.Unlock()
	if h == nil {
		return polling.Result{}, ErrNotPolling
	}
	return h.Wait(ctx)
}

// Close stops watching
func (b *FeedbackButton) Close() {
	b.manager.Shutdown()
}

func (b *FeedbackButton) apply(fb grader.Feedback) polling.State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.State = polling.State(fb.State)
	b.state.FeedbackURL = fb.FeedbackURL
	if b.state.State == polling.StateError {
		b.state.ErrorMessage = fb.Message
	} else {
		b.state.ErrorMessage = ""
	}
	return b.state.State
}

func (b *FeedbackButton) watch() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handle != nil {
		select {
		case <-b.handle.Done():
		default:
			return nil
		}
	}
	h, err := b.manager.StartPolling(polling.Target{
		ID:        "feedback",
		StatusURL: b.url,
		State:     polling.StateRequested,
	}, polling.Schedule{}, b.polled)
	if err != nil {
		return err
	}
	b.handle = h
	return nil
}

func (b *FeedbackButton) polled(res polling.Result) {
	if res.Outcome != polling.OutcomeCompleted {
		return
	}
	var fb grader.Feedback
	if err := json.Unmarshal(res.Target.Payload, &fb); err != nil {
		b.env.Log.Error("decoding feedback", err)
		return
	}
	b.apply(fb)
}
