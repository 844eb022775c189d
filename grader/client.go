// Package grader is the JSON-over-HTTP client of the notebook grading server.
package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/logger"
)

// DefaultTimeout bounds one request
const DefaultTimeout = 30 * time.Second

type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	log     logger.Logger
}

// NewClient creates a client for the server at baseURL.
// token is sent as a bearer session token when not empty.
func NewClient(baseURL, token string, timeout time.Duration, log logger.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing server URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("server URL must be absolute: %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

// BaseURL returns the server URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Resolve turns ref into an absolute URL against the server URL
func (c *Client) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrapf(err, "parsing URL %q", ref)
	}
	return c.baseURL.ResolveReference(r).String(), nil
}

// Get fetches ref and decodes the JSON answer into out
func (c *Client) Get(ctx context.Context, ref string, out interface{}) error {
	return c.Call(ctx, http.MethodGet, ref, nil, out)
}

// Post sends in as JSON to ref and decodes the JSON answer into out.
// A nil in sends an empty object.
func (c *Client) Post(ctx context.Context, ref string, in, out interface{}) error {
	if in == nil {
		in = struct{}{}
	}
	return c.Call(ctx, http.MethodPost, ref, in, out)
}

// Call performs one JSON request. Non-2xx answers are returned as *HTTPError.
func (c *Client) Call(ctx context.Context, method, ref string, in, out interface{}) error {
	target, err := c.Resolve(ref)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		reqJSON, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		c.log.Debug("sending request", method, target, string(reqJSON))
		body = bytes.NewReader(reqJSON)
	} else {
		c.log.Debug("sending request", method, target)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, target)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	c.log.Debug("received response", resp.StatusCode, len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.WithStack(formatAPIError(resp.StatusCode, respBody))
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}
