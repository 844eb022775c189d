// Package objstore moves file bodies to and from object storage through
// signed URLs handed out by the grading server.
package objstore

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/grader"
	"github.com/notebookgrader/grader-client/logger"
)

// DefaultTimeout bounds one transfer
const DefaultTimeout = 10 * time.Minute

type Client struct {
	http *http.Client
	log  logger.Logger
}

// New creates an object storage client
func New(timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{http: &http.Client{Timeout: timeout}, log: log}
}

// Put uploads size bytes of body to signedURL
func (c *Client) Put(ctx context.Context, signedURL, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, body)
	if err != nil {
		return errors.Wrap(err, "building upload request")
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.log.Debug("uploading object", size, contentType)
	resp, err := c.do(req)
	if err != nil {
		return errors.Wrap(err, "uploading object")
	}
	return resp.Body.Close()
}

// Delete removes the object behind signedURL
func (c *Client) Delete(ctx context.Context, signedURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, signedURL, nil)
	if err != nil {
		return errors.Wrap(err, "building deletion request")
	}

	c.log.Debug("deleting object")
	resp, err := c.do(req)
	if err != nil {
		return errors.Wrap(err, "deleting object")
	}
	return resp.Body.Close()
}

// Get copies the object behind signedURL to w and returns its size
func (c *Client) Get(ctx context.Context, signedURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return 0, errors.Wrap(err, "building download request")
	}

	resp, err := c.do(req)
	if err != nil {
		return 0, errors.Wrap(err, "downloading object")
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errors.Wrap(err, "reading object")
	}
	c.log.Debug("downloaded object", n)
	return n, nil
}

// do sends req and turns non-2xx answers into *grader.HTTPError
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, errors.WithStack(&grader.HTTPError{StatusCode: resp.StatusCode, Message: string(body)})
	}
	return resp, nil
}
