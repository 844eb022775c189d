package nav

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/notebookgrader/grader-client/grader"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Destination
	}{
		{name: "forbidden", err: &grader.HTTPError{StatusCode: http.StatusForbidden}, want: AccessDenied},
		{name: "wrapped forbidden", err: errors.Wrap(&grader.HTTPError{StatusCode: http.StatusForbidden}, "loading"), want: AccessDenied},
		{name: "unauthorized", err: &grader.HTTPError{StatusCode: http.StatusUnauthorized}, want: InternalError},
		{name: "server error", err: &grader.HTTPError{StatusCode: http.StatusBadGateway}, want: InternalError},
		{name: "transport", err: errors.New("connection reset"), want: InternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, For(tt.err))
		})
	}
}

func TestDestinationsURL(t *testing.T) {
	ds := Destinations{AccessDenied: "/credentials_error", InternalError: "/internal_error"}
	assert.Equal(t, "/credentials_error", ds.URL(AccessDenied))
	assert.Equal(t, "/internal_error", ds.URL(InternalError))
}

func TestRecorder(t *testing.T) {
	var rec Recorder
	var n Navigator = &rec

	n.Redirect(AccessDenied)
	n.Redirect(InternalError)
	n.Redirect(InternalError)

	assert.Equal(t, []Destination{AccessDenied, InternalError, InternalError}, rec.Redirects())
	assert.Equal(t, 1, rec.Count(AccessDenied))
	assert.Equal(t, 2, rec.Count(InternalError))

	var got Destination
	Func(func(d Destination) { got = d }).Redirect(AccessDenied)
	assert.Equal(t, AccessDenied, got)
}
