package sandbox

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/polling"
)

type studentAPI struct {
	s *Server
}

func registerStudentAPI(g *echo.Group, s *Server) {
	api := studentAPI{s: s}

	g.GET("/"+grader.RouteHomeworkDetails+"/:id", api.details)
	g.GET("/"+grader.RouteGrades+"/:id", api.grades)
	g.POST("/"+grader.RouteGradeHomework+"/:id", api.gradeHomework)
	g.POST("/"+grader.RouteObtainAssignment+"/:id", api.obtainAssignment)
	g.GET("/"+grader.RouteAIFeedback+"/:id", api.feedback)
	g.POST("/"+grader.RouteAIFeedback+"/:id", api.requestFeedback)
	g.POST("/"+grader.RouteAIFeedback+"/:id/"+grader.RouteRating, api.rateFeedback)
}

func (api studentAPI) details(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	hw, err := api.s.lookupHomework(ctx.Param("id"))
	if err != nil {
		return err
	}
	out := grader.HomeworkDetails{
		AvailableFrom:      grader.FormatTime(hw.AvailableFrom),
		SubmissionDeadline: grader.FormatTime(hw.SubmissionDeadline),
		AvailableUntil:     grader.FormatTime(hw.AvailableUntil),
		CanObtainNotebook:  hw.CanObtainNotebook,
		MaxIn24h:           hw.MaxIn24h,
		NumAIFeedback:      hw.numAIFeedback,
	}
	if hw.driveID != "" {
		out.DriveURL = colabBase + hw.driveID
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api studentAPI) grades(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	hw, err := api.s.lookupHomework(ctx.Param("id"))
	if err != nil {
		return err
	}
	out := grader.Grades{
		Grades:             append([]grader.Grade{}, hw.Grades...),
		HasPendingRequests: len(hw.pending) > 0,
	}
	if !hw.mostRecentRequest.IsZero() {
		out.MostRecentRequest = grader.FormatTime(hw.mostRecentRequest)
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api studentAPI) gradeHomework(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	hw, err := api.s.lookupHomework(ctx.Param("id"))
	if err != nil {
		return err
	}
	now := api.s.now()

	switch {
	case hw.driveID == "":
		return ctx.JSON(http.StatusOK, grader.GradeOutcome{IsError: true, Outcome: "You have not submitted anything yet."})
	case !hw.isOpen(now):
		return ctx.JSON(http.StatusOK, grader.GradeOutcome{IsError: true, Outcome: "The assignment is not open."})
	case hw.gradesSince(now.Add(-24*time.Hour))+len(hw.pending) >= hw.MaxIn24h:
		return ctx.JSON(http.StatusOK, grader.GradeOutcome{
			IsError: true,
			Outcome: fmt.Sprintf("You have already had your assignment graded the maximum number of %d times in the last 24h", hw.MaxIn24h),
		})
	case !hw.mostRecentRequest.IsZero() && now.Before(hw.mostRecentRequest.Add(time.Minute)):
		return ctx.JSON(http.StatusOK, grader.GradeOutcome{IsError: true, Outcome: "Please wait a minute between grading requests."})
	}

	hw.mostRecentRequest = now
	hw.pending = append(hw.pending, now.Add(api.s.opts.Delay))
	api.s.opts.Log.Debug("grading queued", hw.ID)

	return ctx.JSON(http.StatusOK, grader.GradeOutcome{
		Outcome:    "Your notebook has been queued for grading.",
		CellSource: "# graded cell\nprint(answer())",
		Watch:      true,
	})
}

func (api studentAPI) obtainAssignment(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	hw, err := api.s.lookupHomework(ctx.Param("id"))
	if err != nil {
		return err
	}
	if hw.driveID == "" && hw.CanObtainNotebook && hw.isOpen(api.s.now()) {
		hw.driveID = "notebook-" + hw.ID
	}
	var out struct {
		DriveURL *string `json:"drive_url"`
	}
	if hw.driveID != "" {
		u := colabBase + hw.driveID
		out.DriveURL = &u
	}
	return ctx.JSON(http.StatusOK, out)
}

func feedbackJSON(hw *homework) grader.Feedback {
	return grader.Feedback{
		State:       string(hw.feedback.state),
		FeedbackURL: hw.feedback.url,
		Message:     hw.feedback.message,
	}
}

func (api studentAPI) feedback(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	hw, err := api.s.lookupHomework(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, feedbackJSON(hw))
}

func (api studentAPI) requestFeedback(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	hw, err := api.s.lookupHomework(ctx.Param("id"))
	if err != nil {
		return err
	}

	switch hw.feedback.state {
	case polling.StateRequested, polling.StateReceived:
		// already asked for
	default:
		hw.feedback = feedback{
			state:   polling.StateRequested,
			readyAt: api.s.now().Add(api.s.opts.Delay),
		}
		api.s.advance(hw, api.s.now())
	}
	return ctx.JSON(http.StatusOK, feedbackJSON(hw))
}

func (api studentAPI) rateFeedback(ctx echo.Context) error {
	var in grader.Rating
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	if err := ctx.Validate(in); err != nil {
		return err
	}

	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	hw, err := api.s.lookupHomework(ctx.Param("id"))
	if err != nil {
		return err
	}
	if hw.feedback.state != polling.StateReceived {
		return echo.NewHTTPError(http.StatusBadRequest, "there is no feedback to rate")
	}
	hw.feedback.stars = in.Stars
	return ctx.JSON(http.StatusOK, feedbackJSON(hw))
}
