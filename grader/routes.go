package grader

import (
	"net/url"
	"strings"
)

// Route names as served by the grading application
const (
	RouteHomeworkDetails  = "student-homework-details"
	RouteGrades           = "homework-grades"
	RouteGradeHomework    = "grade-homework"
	RouteObtainAssignment = "obtain-assignment"
	RouteAIFeedback       = "ai-feedback"
	RouteRating           = "rating"
	RouteAccessURL        = "change-access-url"
	RouteNotebookVersion  = "notebook-version"
	RouteDownloadGrades   = "download-grades"
	RouteFileUpload       = "file-upload"
	RouteCredentialsError = "credentials_error"
	RouteInternalError    = "internal_error"
)

// Routes holds the endpoint URLs of one homework (student pages) or one
// assignment (teacher pages)
type Routes struct {
	HomeworkDetails  string
	Grades           string
	GradeHomework    string
	ObtainAssignment string
	AIFeedback       string
	AIFeedbackRating string
	AccessURL        string
	NotebookVersion  string
	DownloadGrades   string
	FileUpload       string
	CredentialsError string
	InternalError    string
}

// RoutesFor builds the routes of the object with the given id under base
func RoutesFor(base, id string) Routes {
	at := func(name string) string {
		return join(base, name, id)
	}
	return Routes{
		HomeworkDetails:  at(RouteHomeworkDetails),
		Grades:           at(RouteGrades),
		GradeHomework:    at(RouteGradeHomework),
		ObtainAssignment: at(RouteObtainAssignment),
		AIFeedback:       at(RouteAIFeedback),
		AIFeedbackRating: join(base, RouteAIFeedback, id, RouteRating),
		AccessURL:        at(RouteAccessURL),
		NotebookVersion:  at(RouteNotebookVersion),
		DownloadGrades:   at(RouteDownloadGrades),
		FileUpload:       at(RouteFileUpload),
		CredentialsError: join(base, RouteCredentialsError),
		InternalError:    join(base, RouteInternalError),
	}
}

func join(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		if p == "" {
			continue
		}
		out += "/" + url.PathEscape(p)
	}
	return out
}
