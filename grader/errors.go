package grader

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// HTTPError is a non-2xx answer from the grading server or object storage
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode
	}
	return 0
}

// IsForbidden reports whether err is a 403 answer
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

type errorBody struct {
	Error   interface{} `json:"error"`
	Message string      `json:"message"`
}

// formatAPIError builds an HTTPError from a response body.
// The server answers {"error": "..."} or {"message": "..."}; anything else is
// kept as trimmed text.
func formatAPIError(status int, body []byte) *HTTPError {
	herr := &HTTPError{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch v := eb.Error.(type) {
		case string:
			herr.Message = v
		case nil:
			herr.Message = eb.Message
		default:
			b, _ := json.Marshal(v)
			herr.Message = string(b)
		}
		return herr
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	herr.Message = msg
	return herr
}
