package grader

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notebookgrader/grader-client/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/grader/", "secret", time.Second, logger.Discard())
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost:8000", "", 0, nil)
	assert.Error(t, err)

	c, err := NewClient("http://localhost:8000", "", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}

func TestClientGet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/grader/homework-grades/7", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"grades":[{"grade_date":"2024-03-01T10:00:00","grade":8.5,"is_valid":true}],"has_pending_requests":true}`))
	})

	grades, err := c.Grades(context.Background(), "homework-grades/7")
	require.NoError(t, err)
	assert.True(t, grades.HasPendingRequests)
	require.Len(t, grades.Grades, 1)
	assert.Equal(t, 8.5, grades.Grades[0].Grade)
	assert.Equal(t, "2024-03-01T10:00:00", grades.Latest())
}

func TestClientPost(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := ioutil.ReadAll(r.Body)

		var action FileAction
		require.NoError(t, json.Unmarshal(body, &action))
		assert.Equal(t, ActionObtainUploadURL, action.Action)
		assert.Equal(t, "hw.ipynb", action.FileName)

		_, _ = w.Write([]byte(`{"signed_url":"http://store/x","file_path":"x"}`))
	})

	res, err := c.FileAction(context.Background(), "/grader/file-upload/1", FileAction{
		Action:   ActionObtainUploadURL,
		MimeType: "application/json",
		FileName: "hw.ipynb",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://store/x", res.SignedURL)
	assert.Equal(t, "x", res.FilePath)
}

func TestClientEmptyPostBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		assert.Equal(t, "{}", string(body))
		_, _ = w.Write([]byte(`{"is_error":false,"outcome":"queued"}`))
	})

	out, err := c.RequestGrade(context.Background(), "grade-homework/1")
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Equal(t, "queued", out.Outcome)
}

func TestClientHTTPErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		forbidden bool
	}{
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":"permission denied"}`, wantMsg: "permission denied", forbidden: true},
		{name: "message field", status: http.StatusBadRequest, body: `{"message":"bad stars"}`, wantMsg: "bad stars"},
		{name: "field errors", status: http.StatusBadRequest, body: `{"error":{"stars":"too many"}}`, wantMsg: `{"stars":"too many"}`},
		{name: "plain text", status: http.StatusInternalServerError, body: "boom\n", wantMsg: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.FeedbackStatus(context.Background(), "ai-feedback/1")
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, tt.forbidden, IsForbidden(err))

			var herr *HTTPError
			require.True(t, errors.As(err, &herr))
			assert.Equal(t, tt.wantMsg, herr.Message)
		})
	}
}

func TestClientTransportError(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", "", time.Second, nil)
	require.NoError(t, err)

	_, err = c.AccessURL(context.Background(), "change-access-url/1")
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
	assert.False(t, IsForbidden(err))
}

func TestRateFeedbackValidatesStars(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid rating must not be sent")
	})

	for _, stars := range []int{0, 6} {
		_, err := c.RateFeedback(context.Background(), "ai-feedback/1", stars)
		assert.Error(t, err)
	}
}

func TestRoutesFor(t *testing.T) {
	r := RoutesFor("https://grader.example.com/app/", "42")

	assert.Equal(t, "https://grader.example.com/app/student-homework-details/42", r.HomeworkDetails)
	assert.Equal(t, "https://grader.example.com/app/homework-grades/42", r.Grades)
	assert.Equal(t, "https://grader.example.com/app/grade-homework/42", r.GradeHomework)
	assert.Equal(t, "https://grader.example.com/app/ai-feedback/42", r.AIFeedback)
	assert.Equal(t, "https://grader.example.com/app/ai-feedback/42/rating", r.AIFeedbackRating)
	assert.Equal(t, "https://grader.example.com/app/credentials_error", r.CredentialsError)
	assert.Equal(t, "https://grader.example.com/app/internal_error", r.InternalError)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "", want: time.Time{}},
		{in: "0000-00-00 00:00:00", want: time.Time{}},
		{in: "2024-03-01T10:00:00", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2024-03-01T10:00:00.250000", want: time.Date(2024, 3, 1, 10, 0, 0, 250e6, time.UTC)},
		{in: "2024-03-01 10:00:00", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2024-03-01T12:00:00+02:00", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := ParseTime(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.in, got)
	}

	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}

func TestFormatTimeOrdersLexically(t *testing.T) {
	a := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	b := a.Add(1500 * time.Microsecond)
	assert.Less(t, FormatTime(a), FormatTime(b))

	back, err := ParseTime(FormatTime(b))
	require.NoError(t, err)
	assert.True(t, b.Equal(back))
}
