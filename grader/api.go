package grader

import (
	"context"

	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/validation"
)

// HomeworkDetails loads the dates and limits of a homework
func (c *Client) HomeworkDetails(ctx context.Context, ref string) (HomeworkDetails, error) {
	var out HomeworkDetails
	err := c.Get(ctx, ref, &out)
	return out, errors.Wrap(err, "loading homework details")
}

// Grades loads the grades of a homework, newest first
func (c *Client) Grades(ctx context.Context, ref string) (Grades, error) {
	var out Grades
	err := c.Get(ctx, ref, &out)
	return out, errors.Wrap(err, "loading grades")
}

// RequestGrade asks the server to grade the current notebook
func (c *Client) RequestGrade(ctx context.Context, ref string) (GradeOutcome, error) {
	var out GradeOutcome
	err := c.Post(ctx, ref, nil, &out)
	return out, errors.Wrap(err, "requesting grade")
}

// ObtainAssignment shares the assignment notebook with the student and
// returns its Colab URL. The URL is empty outside of the availability window.
func (c *Client) ObtainAssignment(ctx context.Context, ref string) (string, error) {
	var out driveURL
	err := c.Post(ctx, ref, nil, &out)
	return out.DriveURL, errors.Wrap(err, "obtaining assignment")
}

// FeedbackStatus loads the AI feedback state
func (c *Client) FeedbackStatus(ctx context.Context, ref string) (Feedback, error) {
	var out Feedback
	err := c.Get(ctx, ref, &out)
	return out, errors.Wrap(err, "loading feedback")
}

// RequestFeedback asks for AI feedback
func (c *Client) RequestFeedback(ctx context.Context, ref string) (Feedback, error) {
	var out Feedback
	err := c.Post(ctx, ref, nil, &out)
	return out, errors.Wrap(err, "requesting feedback")
}

// RateFeedback sends a 1 to 5 star rating of the received feedback
func (c *Client) RateFeedback(ctx context.Context, ref string, stars int) (Feedback, error) {
	r := Rating{Stars: stars}
	if err := validation.Struct(r); err != nil {
		return Feedback{}, err
	}
	var out Feedback
	err := c.Post(ctx, ref, r, &out)
	return out, errors.Wrap(err, "rating feedback")
}

// AccessURL loads the invitation URL of an assignment
func (c *Client) AccessURL(ctx context.Context, ref string) (string, error) {
	var out accessURL
	err := c.Get(ctx, ref, &out)
	return out.AccessURL, errors.Wrap(err, "loading access URL")
}

// RegenerateAccessURL replaces the invitation URL. Only the assignment owner
// gets a new one; others receive the current URL.
func (c *Client) RegenerateAccessURL(ctx context.Context, ref string) (string, error) {
	var out accessURL
	err := c.Post(ctx, ref, nil, &out)
	return out.AccessURL, errors.Wrap(err, "regenerating access URL")
}

// NotebookVersion loads the Colab links of an assignment
func (c *Client) NotebookVersion(ctx context.Context, ref string) (NotebookVersion, error) {
	var out NotebookVersion
	err := c.Get(ctx, ref, &out)
	return out, errors.Wrap(err, "loading notebook version")
}

// DownloadGrades exports the participants grades as CSV
func (c *Client) DownloadGrades(ctx context.Context, ref string) (GradesFile, error) {
	var out GradesFile
	err := c.Get(ctx, ref, &out)
	return out, errors.Wrap(err, "downloading grades")
}

// FileState loads the file held by an upload widget
func (c *Client) FileState(ctx context.Context, ref string) (FileState, error) {
	var out FileState
	err := c.Get(ctx, ref, &out)
	return out, errors.Wrap(err, "loading file state")
}

// FileAction posts one step of an upload or deletion
func (c *Client) FileAction(ctx context.Context, ref string, action FileAction) (FileActionResult, error) {
	if err := validation.Struct(action); err != nil {
		return FileActionResult{}, err
	}
	var out FileActionResult
	err := c.Post(ctx, ref, action, &out)
	return out, errors.Wrapf(err, "file action %q", action.Action)
}
