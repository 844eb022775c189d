package views

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/polling"
)

// Features switches the optional parts of the homework page
type Features struct {
	// GradePolling watches for the grade after a grading request
	GradePolling bool
	// AIFeedback embeds the AI feedback button
	AIFeedback bool
	// StarRating lets the student rate the received feedback
	StarRating bool
}

// AllFeatures enables everything
func AllFeatures() Features {
	return Features{GradePolling: true, AIFeedback: true, StarRating: true}
}

// GradeView is a grade with its date ready for display
type GradeView struct {
	grader.Grade
	Date    time.Time
	Display string
}

// HomeworkState is what the homework page shows
type HomeworkState struct {
	AvailableFrom      time.Time
	SubmissionDeadline time.Time
	AvailableUntil     time.Time

	DateAvailable     string
	DateDeadline      string
	DateCloses        string
	DriveURL          string
	CanObtain         bool
	MaxIn24h          int
	NumAIFeedback     int
	ObtainDisabled    bool
	Grades            []GradeView
	HasPending        bool
	MostRecentRequest time.Time

	IsGrading      bool
	GradingError   bool
	GradingOutcome string
	CellSource     string
}

// Homework is the student homework page
type Homework struct {
	env      Env
	id       string
	routes   grader.Routes
	features Features
	manager  *polling.Manager
	feedback *FeedbackButton

	mu      sync.Mutex
	state   HomeworkState
	grading *polling.Handle
}

// NewHomework creates the page of homework id
func NewHomework(env Env, id string, features Features) *Homework {
	env = env.withDefaults()
	h := &Homework{
		env:      env,
		id:       id,
		routes:   grader.RoutesFor(env.Client.BaseURL(), id),
		features: features,
		manager:  env.manager(gradeStatus(env.Client)),
	}
	if features.AIFeedback {
		h.feedback = NewFeedbackButton(env, id, features.StarRating)
	}
	return h
}

// Feedback returns the AI feedback button, nil when the feature is off
func (h *Homework) Feedback() *FeedbackButton {
	return h.feedback
}

// State returns a snapshot of the page
func (h *Homework) State() HomeworkState {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.state
	s.Grades = append([]GradeView(nil), h.state.Grades...)
	return s
}

// Init loads the homework and its grades. Pending grading requests are
// watched when grade polling is on.
func (h *Homework) Init(ctx context.Context) error {
	details, err := h.env.Client.HomeworkDetails(ctx, h.routes.HomeworkDetails)
	if err != nil {
		return h.env.fail(ctx, err)
	}
	grades, err := h.env.Client.Grades(ctx, h.routes.Grades)
	if err != nil {
		return h.env.fail(ctx, err)
	}

	h.mu.Lock()
	h.state.AvailableFrom = h.parse(details.AvailableFrom)
	h.state.SubmissionDeadline = h.parse(details.SubmissionDeadline)
	h.state.AvailableUntil = h.parse(details.AvailableUntil)
	h.state.DateAvailable = h.env.display(h.state.AvailableFrom)
	h.state.DateDeadline = h.env.display(h.state.SubmissionDeadline)
	h.state.DateCloses = h.env.display(h.state.AvailableUntil)
	h.state.DriveURL = details.DriveURL
	h.state.CanObtain = details.CanObtainNotebook
	h.state.MaxIn24h = details.MaxIn24h
	h.state.NumAIFeedback = details.NumAIFeedback
	h.setGrades(grades)
	h.state.MostRecentRequest = h.parse(grades.MostRecentRequest)
	h.state.HasPending = grades.HasPendingRequests
	watch := grades.HasPendingRequests && h.features.GradePolling
	if watch {
		h.state.IsGrading = true
	}
	h.mu.Unlock()

	if watch {
		if err := h.watchGrades(); err != nil {
			return err
		}
	}
	if h.feedback != nil {
		return h.feedback.Load(ctx)
	}
	return nil
}

// AssignmentIsAvailable reports whether the notebook can be obtained now
func (h *Homework) AssignmentIsAvailable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.env.Now().Before(h.state.AvailableFrom) && h.state.CanObtain
}

// AssignmentNotYetOpen reports whether the assignment opens in the future
func (h *Homework) AssignmentNotYetOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Now().Before(h.state.AvailableFrom)
}

// SubmissionOpen reports whether the assignment has not closed yet
func (h *Homework) SubmissionOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.env.Now().Before(h.state.AvailableUntil)
}

// AvailableGrades is how many grading requests are left in the last 24 hours
func (h *Homework) AvailableGrades() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.env.Now()
	recent := 0
	for _, g := range h.state.Grades {
		if g.Date.Add(24 * time.Hour).After(now) {
			recent++
		}
	}
	return h.state.MaxIn24h - recent
}

// CanAskForGrade reports whether the last grading request is more than a minute old
func (h *Homework) CanAskForGrade() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.MostRecentRequest.IsZero() || h.env.Now().After(h.state.MostRecentRequest.Add(time.Minute))
}

// ObtainAssignment gets the Colab URL of the homework notebook. A second
// call while the first is in flight returns ErrBusy; once the URL is known
// it is returned without asking the server again.
func (h *Homework) ObtainAssignment(ctx context.Context) (string, error) {
	h.mu.Lock()
	if h.state.ObtainDisabled {
		url := h.state.DriveURL
		h.mu.Unlock()
		if url != "" {
			return url, nil
		}
		return "", ErrBusy
	}
	h.state.ObtainDisabled = true
	h.mu.Unlock()

	url, err := h.env.Client.ObtainAssignment(ctx, h.routes.ObtainAssignment)

	h.mu.Lock()
	if err == nil {
		h.state.DriveURL = url
	}
	h.state.ObtainDisabled = url != ""
	h.mu.Unlock()
	if err != nil {
		return "", h.env.fail(ctx, err)
	}
	return url, nil
}

// GradeHomework asks for a grade. When the server accepts the request and
// grade polling is on, the grades are watched until a newer one arrives.
func (h *Homework) GradeHomework(ctx context.Context) (grader.GradeOutcome, error) {
	h.mu.Lock()
	if h.state.IsGrading {
		h.mu.Unlock()
		return grader.GradeOutcome{}, ErrBusy
	}
	h.state.IsGrading = true
	h.state.GradingOutcome = ""
	h.state.CellSource = ""
	h.state.GradingError = false
	h.state.MostRecentRequest = h.env.Now()
	h.mu.Unlock()

	out, err := h.env.Client.RequestGrade(ctx, h.routes.GradeHomework)
	if err != nil {
		h.mu.Lock()
		h.state.IsGrading = false
		h.mu.Unlock()
		return out, h.env.fail(ctx, err)
	}

	h.mu.Lock()
	h.state.GradingOutcome = out.Outcome
	h.state.GradingError = out.IsError
	h.state.CellSource = out.CellSource
	watch := !out.IsError && h.features.GradePolling
	if !watch {
		h.state.IsGrading = false
	}
	h.mu.Unlock()

	if watch {
		return out, h.watchGrades()
	}
	return out, nil
}

// WaitGrading blocks until the watched grading request is graded or ctx is done
func (h *Homework) WaitGrading(ctx context.Context) (polling.Result, error) {
	h.mu.Lock()
	g := h.grading
	h.mu.Unlock()
	if g == nil {
		return polling.Result{}, ErrNotPolling
	}
	return g.Wait(ctx)
}

// Close stops every background check of the page
func (h *Homework) Close() {
	h.manager.Shutdown()
	if h.feedback != nil {
		h.feedback.Close()
	}
}

func (h *Homework) watchGrades() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var marker polling.Marker
	if len(h.state.Grades) > 0 {
		marker = polling.Marker(h.state.Grades[0].GradeDate)
	}
	g, err := h.manager.StartPolling(polling.Target{
		ID:        "grades",
		StatusURL: h.routes.Grades,
		Marker:    marker,
	}, polling.Schedule{}, h.graded)
	if err == polling.ErrAlreadyPolling {
		if running, ok := h.manager.Running("grades"); ok {
			h.grading = running
		}
		return nil
	}
	if err != nil {
		h.state.IsGrading = false
		return err
	}
	h.grading = g
	return nil
}

func (h *Homework) graded(res polling.Result) {
	var grades grader.Grades
	ok := res.Outcome == polling.OutcomeCompleted
	if ok {
		if err := json.Unmarshal(res.Target.Payload, &grades); err != nil {
			h.env.Log.Error("decoding grades", err)
			ok = false
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.IsGrading = false
	if ok {
		h.setGrades(grades)
		h.state.HasPending = grades.HasPendingRequests
	}
}

// setGrades converts the server grades for display. h.mu must be held.
func (h *Homework) setGrades(grades grader.Grades) {
	out := make([]GradeView, 0, len(grades.Grades))
	for _, g := range grades.Grades {
		date := h.parse(g.GradeDate)
		out = append(out, GradeView{Grade: g, Date: date, Display: h.env.display(date)})
	}
	h.state.Grades = out
}

func (h *Homework) parse(s string) time.Time {
	t, err := grader.ParseTime(s)
	if err != nil {
		h.env.Log.Warn("bad timestamp", s, err)
	}
	return t
}
