package sandbox

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/grader"
)

type teacherAPI struct {
	s *Server
}

func registerTeacherAPI(g *echo.Group, s *Server) {
	api := teacherAPI{s: s}

	g.GET("/"+grader.RouteAccessURL+"/:id", api.accessURL)
	g.POST("/"+grader.RouteAccessURL+"/:id", api.regenerateAccessURL)
	g.GET("/"+grader.RouteNotebookVersion+"/:id", api.notebookVersion)
	g.GET("/"+grader.RouteDownloadGrades+"/:id", api.downloadGrades)
}

func inviteURL(ctx echo.Context, a *assignment) string {
	return baseURL(ctx) + "/invite/" + a.accessKey
}

func (api teacherAPI) accessURL(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	a, err := api.s.lookupAssignment(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"access_url": inviteURL(ctx, a)})
}

// regenerateAccessURL rotates the invitation key; only the owner may
func (api teacherAPI) regenerateAccessURL(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	a, err := api.s.lookupAssignment(ctx.Param("id"))
	if err != nil {
		return err
	}
	if a.IsOwner {
		a.accessKey = uuid.New().String()
	}
	return ctx.JSON(http.StatusOK, echo.Map{"access_url": inviteURL(ctx, a)})
}

func (api teacherAPI) notebookVersion(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	a, err := api.s.lookupAssignment(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grader.NotebookVersion{
		InstructorVersion: colabBase + "instructor-" + a.ID,
		StudentVersion:    colabBase + "student-" + a.ID,
	})
}

func (api teacherAPI) downloadGrades(ctx echo.Context) error {
	api.s.mu.Lock()
	defer api.s.mu.Unlock()

	a, err := api.s.lookupAssignment(ctx.Param("id"))
	if err != nil {
		return err
	}

	var hws []*homework
	for _, hw := range api.s.homeworks {
		if hw.AssignmentID == a.ID {
			api.s.advance(hw, api.s.now())
			hws = append(hws, hw)
		}
	}
	sort.Slice(hws, func(i, j int) bool { return hws[i].Student.Email < hws[j].Student.Email })

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"First Name", "Last Name", "Email", "Grade", "Max Grade"})
	for _, hw := range hws {
		_ = w.Write([]string{
			hw.Student.FirstName,
			hw.Student.LastName,
			hw.Student.Email,
			strconv.FormatFloat(hw.best(), 'f', -1, 64),
			strconv.FormatFloat(a.MaxPoints, 'f', -1, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "writing grades csv")
	}

	return ctx.JSON(http.StatusOK, grader.GradesFile{
		CSVFile:  buf.String(),
		Filename: strings.ReplaceAll(a.Name, " ", "_") + ".csv",
	})
}
