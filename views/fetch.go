package views

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/polling"
)

// gradeStatus checks a grades endpoint. The newest grade date is the marker;
// the grades travel as payload.
func gradeStatus(c *grader.Client) polling.Fetcher {
	return polling.FetcherFunc(func(ctx context.Context, statusURL string) (polling.Status, error) {
		grades, err := c.Grades(ctx, statusURL)
		if err != nil {
			return polling.Status{}, err
		}
		payload, err := json.Marshal(grades)
		if err != nil {
			return polling.Status{}, errors.Wrap(err, "encoding grades")
		}
		return polling.Status{Marker: polling.Marker(grades.Latest()), Payload: payload}, nil
	})
}

// feedbackStatus checks an AI feedback endpoint
func feedbackStatus(c *grader.Client) polling.Fetcher {
	return polling.FetcherFunc(func(ctx context.Context, statusURL string) (polling.Status, error) {
		fb, err := c.FeedbackStatus(ctx, statusURL)
		if err != nil {
			return polling.Status{}, err
		}
		payload, err := json.Marshal(fb)
		if err != nil {
			return polling.Status{}, errors.Wrap(err, "encoding feedback")
		}
		return polling.Status{State: polling.State(fb.State), Payload: payload}, nil
	})
}
