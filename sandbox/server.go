// Package sandbox is an in-memory stand-in for the grading server and its
// object storage. It produces grades and AI feedback after a delay so that
// polling clients can be exercised end to end.
package sandbox

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/logger"
	"github.com/notebookgrader/grader-client/validation"
)

var (
	errHTTPForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHTTPNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

type Options struct {
	// Token is the session token every API call must carry. Empty disables the check.
	Token string
	// Secret signs object storage URLs
	Secret []byte
	// Delay is how long grading and feedback take
	Delay time.Duration
	// FeedbackError, when set, makes every feedback request end in the error
	// state with this message
	FeedbackError string

	Homeworks   []Homework
	Assignments []Assignment

	Log            logger.Logger
	DisableReqLogs bool
	Debug          bool
	// Now replaces the wall clock (tests)
	Now func() time.Time
}

type Server struct {
	opts *Options
	app  *echo.Echo

	mu          sync.Mutex
	homeworks   map[string]*homework
	assignments map[string]*assignment
	objects     map[string]object
	failures    map[string]int

	hub      *hub
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a sandbox seeded with opts.Homeworks and opts.Assignments,
// or with DefaultSeed when both are empty.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("sandbox")
	}
	if len(opts.Homeworks) == 0 && len(opts.Assignments) == 0 {
		opts.Assignments, opts.Homeworks = DefaultSeed(opts.Now())
	}

	s := &Server{
		opts:        &opts,
		app:         echo.New(),
		homeworks:   make(map[string]*homework),
		assignments: make(map[string]*assignment),
		objects:     make(map[string]object),
		failures:    make(map[string]int),
		hub:         newHub(),
		stop:        make(chan struct{}),
	}
	for _, a := range opts.Assignments {
		s.assignments[a.ID] = newAssignment(a)
	}
	for _, hw := range opts.Homeworks {
		s.homeworks[hw.ID] = newHomework(hw)
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.opts.Debug
	s.app.Logger.SetLevel(log.WARN)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	if !s.opts.Debug {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = s.handleError
	s.app.Validator = structValidator{}

	s.app.GET("/"+grader.RouteCredentialsError, page("You do not have access to this page."))
	s.app.GET("/"+grader.RouteInternalError, page("An internal error occurred."))

	api := s.app.Group("", s.authMiddleware, s.failureMiddleware)
	registerStudentAPI(api, s)
	registerTeacherAPI(api, s)
	registerFileAPI(api, s)
	api.GET("/events", s.events)

	registerObjectAPI(s.app.Group("/objects"), s)
}

// Start serves on addr until Stop is called
func (s *Server) Start(addr string) error {
	go s.tick(s.stop, time.Second)
	err := s.app.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully and hangs up the event feeds.
// Calling it again is harmless.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.hub.close()
	})
	return s.app.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// SetFailure makes every API call about the homework or assignment id answer
// with status. A zero status clears it.
func (s *Server) SetFailure(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, id)
		return
	}
	s.failures[id] = status
}

func (s *Server) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if s.opts.Token == "" {
			return next(ctx)
		}
		if ctx.Request().Header.Get("Authorization") != "Bearer "+s.opts.Token {
			return errHTTPForbidden
		}
		return next(ctx)
	}
}

func (s *Server) failureMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		s.mu.Lock()
		status, ok := s.failures[ctx.Param("id")]
		s.mu.Unlock()
		if ok {
			return echo.NewHTTPError(status)
		}
		return next(ctx)
	}
}

type structValidator struct{}

func (structValidator) Validate(i interface{}) error {
	return validation.Validate.Struct(i)
}

func (s *Server) handleError(err error, ctx echo.Context) {
	var code int
	var message interface{}

	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		code = origErr.Code
		message = origErr.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(validation.Translator)
		}
		code = http.StatusBadRequest
		message = fldErrs
	default:
		code = http.StatusInternalServerError
		message = http.StatusText(code)
		s.opts.Log.Error("sandbox request failed", errors.WithMessage(err, ctx.Path()))
	}

	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

	if !ctx.Response().Committed {
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

func page(text string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, text)
	}
}

// baseURL is the externally visible root of the sandbox for this request
func baseURL(ctx echo.Context) string {
	return ctx.Scheme() + "://" + strings.TrimRight(ctx.Request().Host, "/")
}
