package views

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/logger"
	"github.com/notebookgrader/grader-client/nav"
	"github.com/notebookgrader/grader-client/polling"
	"github.com/notebookgrader/grader-client/sandbox"
	"github.com/notebookgrader/grader-client/validation"
)

const testToken = "session"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	sb    *sandbox.Server
	clock *clock
	nav   *nav.Recorder
	env   Env
}

func newFixture(t *testing.T, opts sandbox.Options) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	opts.Token = testToken
	opts.DisableReqLogs = true
	opts.Now = c.Now
	if opts.Delay == 0 {
		opts.Delay = 30 * time.Second
	}
	sb := sandbox.New(opts)
	srv := httptest.NewServer(sb)
	t.Cleanup(srv.Close)

	client, err := grader.NewClient(srv.URL, testToken, 5*time.Second, logger.Discard())
	require.NoError(t, err)

	rec := &nav.Recorder{}
	return &fixture{
		sb:    sb,
		clock: c,
		nav:   rec,
		env: Env{
			Client:    client,
			Navigator: rec,
			Log:       logger.Discard(),
			Polling: polling.Config{
				Schedule:        polling.Schedule{InitialDelay: 5 * time.Millisecond, Multiplier: 1.5, MaxDelay: 20 * time.Millisecond},
				Retention:       time.Minute,
				CleanupInterval: time.Minute,
			},
			Location: time.UTC,
			Now:      c.Now,
		},
	}
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestHomeworkInit(t *testing.T) {
	f := newFixture(t, sandbox.Options{})
	h := NewHomework(f.env, "1", AllFeatures())
	defer h.Close()

	require.NoError(t, h.Init(context.Background()))

	st := h.State()
	assert.Equal(t, "Thu, Feb 29, 2024, 10:00 AM", st.DateAvailable)
	assert.Equal(t, "Fri, Mar 8, 2024, 10:00 AM", st.DateCloses)
	assert.Empty(t, st.DriveURL)
	assert.Empty(t, st.Grades)
	assert.False(t, st.IsGrading)

	assert.True(t, h.AssignmentIsAvailable())
	assert.False(t, h.AssignmentNotYetOpen())
	assert.True(t, h.SubmissionOpen())
	assert.Equal(t, 3, h.AvailableGrades())
	assert.True(t, h.CanAskForGrade())

	require.NotNil(t, h.Feedback())
	assert.Equal(t, polling.StateAsk, h.Feedback().State().State)
	assert.Empty(t, f.nav.Redirects())
}

func TestHomeworkGrading(t *testing.T) {
	f := newFixture(t, sandbox.Options{})
	h := NewHomework(f.env, "1", AllFeatures())
	defer h.Close()
	ctx := waitCtx(t)
	require.NoError(t, h.Init(ctx))

	url, err := h.ObtainAssignment(ctx)
	require.NoError(t, err)
	assert.Contains(t, url, "notebook-1")
	again, err := h.ObtainAssignment(ctx)
	require.NoError(t, err)
	assert.Equal(t, url, again)

	out, err := h.GradeHomework(ctx)
	require.NoError(t, err)
	require.False(t, out.IsError, out.Outcome)
	assert.True(t, h.State().IsGrading)
	assert.False(t, h.CanAskForGrade())

	_, err = h.GradeHomework(ctx)
	assert.Equal(t, ErrBusy, err)

	f.clock.Advance(time.Minute + time.Second)
	res, err := h.WaitGrading(ctx)
	require.NoError(t, err)
	assert.Equal(t, polling.OutcomeCompleted, res.Outcome)

	st := h.State()
	assert.False(t, st.IsGrading)
	require.Len(t, st.Grades, 1)
	assert.Equal(t, "Fri, Mar 1, 2024, 10:00 AM", st.Grades[0].Display)
	assert.Equal(t, 2, h.AvailableGrades())
	assert.True(t, h.CanAskForGrade())
	assert.Empty(t, f.nav.Redirects())
}

func TestPollResultsWithoutRetention(t *testing.T) {
	t.Run("grades", func(t *testing.T) {
		f := newFixture(t, sandbox.Options{})
		f.env.Polling.Retention = 0
		h := NewHomework(f.env, "1", AllFeatures())
		defer h.Close()
		ctx := waitCtx(t)
		require.NoError(t, h.Init(ctx))

		_, err := h.ObtainAssignment(ctx)
		require.NoError(t, err)
		_, err = h.GradeHomework(ctx)
		require.NoError(t, err)

		f.clock.Advance(time.Minute + time.Second)
		res, err := h.WaitGrading(ctx)
		require.NoError(t, err)
		require.Equal(t, polling.OutcomeCompleted, res.Outcome)
		assert.Equal(t, "grades", res.Target.ID)
		assert.NotEmpty(t, res.Target.Marker)
		assert.NotEmpty(t, res.Target.Payload)

		st := h.State()
		assert.False(t, st.IsGrading)
		require.Len(t, st.Grades, 1)
		assert.Equal(t, string(res.Target.Marker), st.Grades[0].GradeDate)
	})

	t.Run("feedback", func(t *testing.T) {
		f := newFixture(t, sandbox.Options{})
		f.env.Polling.Retention = 0
		b := NewFeedbackButton(f.env, "1", true)
		defer b.Close()
		ctx := waitCtx(t)

		b.Ask()
		require.NoError(t, b.Confirm(ctx))
		f.clock.Advance(time.Minute)
		res, err := b.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, polling.OutcomeCompleted, res.Outcome)
		assert.Equal(t, polling.StateReceived, res.Target.State)
		assert.NotEmpty(t, res.Target.Payload)
		assert.Contains(t, b.State().FeedbackURL, "feedback-1")
	})
}

func TestHomeworkGradeRefused(t *testing.T) {
	f := newFixture(t, sandbox.Options{})
	h := NewHomework(f.env, "1", AllFeatures())
	defer h.Close()
	require.NoError(t, h.Init(context.Background()))

	// nothing obtained yet
	out, err := h.GradeHomework(context.Background())
	require.NoError(t, err)
	assert.True(t, out.IsError)

	st := h.State()
	assert.False(t, st.IsGrading)
	assert.True(t, st.GradingError)
	assert.Equal(t, out.Outcome, st.GradingOutcome)

	_, err = h.WaitGrading(context.Background())
	assert.Equal(t, ErrNotPolling, err)
}

func TestHomeworkWithoutGradePolling(t *testing.T) {
	f := newFixture(t, sandbox.Options{})
	h := NewHomework(f.env, "1", Features{})
	defer h.Close()
	ctx := context.Background()
	require.NoError(t, h.Init(ctx))
	assert.Nil(t, h.Feedback())

	_, err := h.ObtainAssignment(ctx)
	require.NoError(t, err)
	out, err := h.GradeHomework(ctx)
	require.NoError(t, err)
	require.False(t, out.IsError)

	assert.False(t, h.State().IsGrading)
	_, err = h.WaitGrading(ctx)
	assert.Equal(t, ErrNotPolling, err)
}

func TestHomeworkInitResumesPendingGrade(t *testing.T) {
	f := newFixture(t, sandbox.Options{})
	ctx := waitCtx(t)

	first := NewHomework(f.env, "1", Features{})
	require.NoError(t, first.Init(ctx))
	_, err := first.ObtainAssignment(ctx)
	require.NoError(t, err)
	_, err = first.GradeHomework(ctx)
	require.NoError(t, err)
	first.Close()

	h := NewHomework(f.env, "1", Features{GradePolling: true})
	defer h.Close()
	require.NoError(t, h.Init(ctx))
	st := h.State()
	assert.True(t, st.HasPending)
	assert.True(t, st.IsGrading)

	f.clock.Advance(time.Minute)
	res, err := h.WaitGrading(ctx)
	require.NoError(t, err)
	assert.Equal(t, polling.OutcomeCompleted, res.Outcome)
	assert.Len(t, h.State().Grades, 1)
	assert.False(t, h.State().HasPending)
}

func TestHomeworkRedirects(t *testing.T) {
	t.Run("forbidden on load", func(t *testing.T) {
		f := newFixture(t, sandbox.Options{})
		client, err := grader.NewClient(f.env.Client.BaseURL(), "wrong", time.Second, nil)
		require.NoError(t, err)
		f.env.Client = client

		h := NewHomework(f.env, "1", AllFeatures())
		defer h.Close()
		err = h.Init(context.Background())
		require.Error(t, err)
		assert.True(t, grader.IsForbidden(err))
		assert.Equal(t, []nav.Destination{nav.AccessDenied}, f.nav.Redirects())
	})

	t.Run("server failure while watching", func(t *testing.T) {
		f := newFixture(t, sandbox.Options{})
		h := NewHomework(f.env, "1", AllFeatures())
		defer h.Close()
		ctx := waitCtx(t)
		require.NoError(t, h.Init(ctx))
		_, err := h.ObtainAssignment(ctx)
		require.NoError(t, err)
		_, err = h.GradeHomework(ctx)
		require.NoError(t, err)

		f.sb.SetFailure("1", http.StatusInternalServerError)
		res, err := h.WaitGrading(ctx)
		require.NoError(t, err)
		assert.Equal(t, polling.OutcomeFailed, res.Outcome)
		assert.Equal(t, 1, f.nav.Count(nav.InternalError))
		assert.False(t, h.State().IsGrading)
	})

	t.Run("obtain forbidden", func(t *testing.T) {
		f := newFixture(t, sandbox.Options{})
		h := NewHomework(f.env, "1", Features{})
		defer h.Close()
		f.sb.SetFailure("1", http.StatusForbidden)

		_, err := h.ObtainAssignment(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, f.nav.Count(nav.AccessDenied))
		assert.False(t, h.State().ObtainDisabled)
	})
}

func TestFeedbackButton(t *testing.T) {
	f := newFixture(t, sandbox.Options{})
	b := NewFeedbackButton(f.env, "1", true)
	defer b.Close()
	ctx := waitCtx(t)

	require.NoError(t, b.Load(ctx))
	assert.Equal(t, ErrNotConfirmed, b.Confirm(ctx))

	b.Ask()
	assert.Equal(t, polling.StateConfirm, b.State().State)
	b.Cancel()
	assert.Equal(t, polling.StateAsk, b.State().State)

	assert.Equal(t, ErrNothingToRate, b.Rate(ctx, 4))

	b.Ask()
	require.NoError(t, b.Confirm(ctx))
	assert.Equal(t, polling.StateRequested, b.State().State)

	f.clock.Advance(time.Minute)
	res, err := b.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, polling.OutcomeCompleted, res.Outcome)

	st := b.State()
	assert.Equal(t, polling.StateReceived, st.State)
	assert.Contains(t, st.FeedbackURL, "feedback-1")

	err = b.Rate(ctx, 6)
	var verr *validation.Error
	require.True(t, errors.As(err, &verr), err)
	assert.Equal(t, "stars", verr.Fields[0].Field)

	require.NoError(t, b.Rate(ctx, 5))
	assert.Equal(t, 5, b.State().Stars)
	assert.Empty(t, f.nav.Redirects())
}

func TestFeedbackButtonErrors(t *testing.T) {
	t.Run("server reports an error", func(t *testing.T) {
		f := newFixture(t, sandbox.Options{FeedbackError: "Notebook too large."})
		b := NewFeedbackButton(f.env, "1", false)
		defer b.Close()
		ctx := waitCtx(t)

		b.Ask()
		require.NoError(t, b.Confirm(ctx))
		f.clock.Advance(time.Minute)
		_, err := b.Wait(ctx)
		require.NoError(t, err)

		st := b.State()
		assert.Equal(t, polling.StateError, st.State)
		assert.Equal(t, "Notebook too large.", st.ErrorMessage)
		assert.Equal(t, ErrRatingDisabled, b.Rate(ctx, 3))

		// asking again is allowed after an error
		b.Ask()
		assert.Equal(t, polling.StateConfirm, b.State().State)
		assert.Empty(t, b.State().ErrorMessage)
	})

	t.Run("immediate error answer keeps the server message", func(t *testing.T) {
		f := newFixture(t, sandbox.Options{FeedbackError: "Notebook too large.", Delay: -time.Second})
		b := NewFeedbackButton(f.env, "1", true)
		defer b.Close()

		b.Ask()
		require.NoError(t, b.Confirm(context.Background()))
		st := b.State()
		assert.Equal(t, polling.StateError, st.State)
		assert.Equal(t, "Notebook too large.", st.ErrorMessage)
		assert.NotEqual(t, feedbackErrorMessage, st.ErrorMessage)

		_, err := b.Wait(context.Background())
		assert.Equal(t, ErrNotPolling, err)
	})

	t.Run("request fails", func(t *testing.T) {
		f := newFixture(t, sandbox.Options{})
		b := NewFeedbackButton(f.env, "1", true)
		defer b.Close()
		f.sb.SetFailure("1", http.StatusBadGateway)

		b.Ask()
		require.Error(t, b.Confirm(context.Background()))
		st := b.State()
		assert.Equal(t, polling.StateError, st.State)
		assert.Equal(t, feedbackErrorMessage, st.ErrorMessage)
		assert.Empty(t, f.nav.Redirects())
	})

	t.Run("close stops watching", func(t *testing.T) {
		f := newFixture(t, sandbox.Options{})
		b := NewFeedbackButton(f.env, "1", true)
		ctx := waitCtx(t)

		b.Ask()
		require.NoError(t, b.Confirm(ctx))
		b.Close()

		res, err := b.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, polling.OutcomeCancelled, res.Outcome)
		assert.Equal(t, polling.StateRequested, b.State().State)
	})
}

func TestFileUpload(t *testing.T) {
	f := newFixture(t, sandbox.Options{})
	u := NewFileUpload(f.env, "1")
	ctx := waitCtx(t)

	require.NoError(t, u.Load(ctx))
	assert.Equal(t, "", u.FileInfo(f.clock.Now()))
	_, err := u.Delete(ctx)
	assert.Equal(t, ErrNoFile, err)

	body := "hello world"
	require.NoError(t, u.Upload(ctx, "notes.txt", "text/plain", strings.NewReader(body), int64(len(body))))

	st := u.State()
	assert.Equal(t, "notes.txt", st.FileName)
	assert.NotEmpty(t, st.DownloadURL)
	assert.False(t, st.Uploading)
	assert.Equal(t, "notes.txt (11 B text/plain), uploaded 3 minutes ago", u.FileInfo(f.clock.Now().Add(3*time.Minute)))

	var buf bytes.Buffer
	n, err := u.Download(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), n)
	assert.Equal(t, body, buf.String())

	// a fresh widget sees the stored file
	other := NewFileUpload(f.env, "1")
	require.NoError(t, other.Load(ctx))
	assert.Equal(t, st.FilePath, other.State().FilePath)

	deleted, err := u.Delete(ctx)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, u.State().DeleteConfirmation)
	u.CancelDelete()
	assert.False(t, u.State().DeleteConfirmation)

	_, _ = u.Delete(ctx)
	deleted, err = u.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, u.State().FilePath)

	_, err = u.Download(ctx, &buf)
	assert.Equal(t, ErrNoFile, err)
	assert.Empty(t, f.nav.Redirects())
}

func TestFileUploadReadonly(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	assignments, homeworks := sandbox.DefaultSeed(now)
	homeworks[0].Readonly = true
	f := newFixture(t, sandbox.Options{Assignments: assignments, Homeworks: homeworks})

	u := NewFileUpload(f.env, "1")
	require.NoError(t, u.Load(context.Background()))
	assert.True(t, u.State().Readonly)
	assert.Equal(t, ErrReadonly, u.Upload(context.Background(), "a.txt", "text/plain", strings.NewReader("a"), 1))
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{in: 0, want: "0 B"},
		{in: 999, want: "999 B"},
		{in: 1000, want: "1 kB"},
		{in: 1500, want: "1.5 kB"},
		{in: 2340000, want: "2.3 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanSize(tt.in), "size %d", tt.in)
	}
}

func TestAccessPage(t *testing.T) {
	f := newFixture(t, sandbox.Options{})
	p := NewAccessPage(f.env, "1")
	ctx := context.Background()

	require.NoError(t, p.Load(ctx))
	before := p.State()
	assert.Contains(t, before.AccessURL, "/invite/")
	assert.Contains(t, before.StudentVersion, "student-1")

	url, err := p.Regenerate(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.AccessURL, url)
	assert.Equal(t, url, p.State().AccessURL)
}

func TestParticipantsDownload(t *testing.T) {
	f := newFixture(t, sandbox.Options{})
	p := NewParticipants(f.env, "1")
	dir := t.TempDir()

	path, err := p.Download(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Intro_to_Python.csv"), path)

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "First Name,Last Name,Email,Grade,Max Grade\n"), string(data))

	_, err = NewParticipants(f.env, "404").Download(context.Background(), dir)
	require.Error(t, err)
	assert.Equal(t, 1, f.nav.Count(nav.InternalError))
}
