// Package dashboard implements the client side of the build dashboard API: starting, describing
// and aborting jobs, and fetching job logs incrementally for the tailer.
//
// None of the calls is retried here. Starting a job is not idempotent, so repeating a failed
// Submit may start a second job; retry policy belongs to the caller.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/umputun/jobtail/app/job"
)

const (
	maxBodySize    = 1024 * 1024 // 1MB limit for json responses
	maxErrBodySize = 512         // excerpt of error response kept in ServerError
)

// HTTPClient is the subset of http.Client used by the dashboard client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the dashboard API on BaseURL
type Client struct {
	baseURL string
	client  HTTPClient
}

// Params for New
type Params struct {
	BaseURL string
	Timeout time.Duration // per-request timeout, ignored if Client is set
	Client  HTTPClient    // optional, http.Client with Timeout used by default
}

// New makes dashboard client
func New(p Params) *Client {
	cl := p.Client
	if cl == nil {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		cl = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: strings.TrimSuffix(p.BaseURL, "/"), client: cl}
}

// Submit starts a job and returns its handle. Makes exactly one request.
func (c *Client) Submit(ctx context.Context, req job.Request) (job.Handle, error) {
	desc, err := c.Start(ctx, req)
	if err != nil {
		return job.Handle{}, err
	}
	return job.NewHandle(desc.ID)
}

// Start starts a job and returns its full description, including the request id sent in X-Request-ID.
// Returned Desc always has non-empty ID.
func (c *Client) Start(ctx context.Context, req job.Request) (job.Desc, error) {
	if err := req.Validate(); err != nil {
		return job.Desc{}, err
	}

	q := url.Values{}
	q.Set("name", req.Name)
	q.Set("version", req.Version)
	u := c.baseURL + "/dashboard/job/start?" + q.Encode()

	requestID := uuid.NewString()
	log.Printf("[DEBUG] start job %s, request id %s", req, requestID)

	resp, err := c.do(ctx, "start job "+req.String(), http.MethodPost, u, func(r *http.Request) {
		r.Header.Set("X-Request-ID", requestID)
	})
	if err != nil {
		return job.Desc{}, err
	}

	desc, err := decodeDesc("start job "+req.String(), resp)
	if err != nil {
		return job.Desc{}, err
	}
	desc.RequestID = requestID
	log.Printf("[INFO] job %s started with id %s, status %s", req, desc.ID, desc.Status)
	return desc, nil
}

// Describe returns job description for id
func (c *Client) Describe(ctx context.Context, id string) (job.Desc, error) {
	op := "describe job " + id
	resp, err := c.do(ctx, op, http.MethodGet, c.jobURL(id, ""), nil)
	if err != nil {
		return job.Desc{}, err
	}
	return decodeDesc(op, resp)
}

// Abort asks the dashboard to abort the job. Finished jobs keep their status on the server side.
func (c *Client) Abort(ctx context.Context, id string) error {
	op := "abort job " + id
	resp, err := c.do(ctx, op, http.MethodPost, c.jobURL(id, "/abort"), nil)
	if err != nil {
		return err
	}
	closeBody(resp)
	log.Printf("[INFO] abort requested for job %s", id)
	return nil
}

// LogFetcher makes a new fetcher for incremental logs. Each tailer needs its own fetcher
// because the fetcher keeps the offset of already delivered output.
func (c *Client) LogFetcher(endMarker string) *LogFetcher {
	return &LogFetcher{client: c, endMarker: endMarker, maxSize: maxLogSize, offsets: map[string]int{}}
}

func (c *Client) jobURL(id, suffix string) string {
	return c.baseURL + "/dashboard/job/" + url.PathEscape(id) + suffix
}

// do makes the request and checks the response status. Caller owns the body of successful response.
func (c *Client) do(ctx context.Context, op, method, u string, prep func(r *http.Request)) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	if prep != nil {
		prep(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &job.TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer closeBody(resp)
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		return nil, &job.ServerError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	return resp, nil
}

func decodeDesc(op string, resp *http.Response) (job.Desc, error) {
	defer closeBody(resp)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return job.Desc{}, &job.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var desc job.Desc
	if err := json.Unmarshal(body, &desc); err != nil {
		return job.Desc{}, &job.MalformedResponseError{Op: op, Reason: "invalid json", Err: err}
	}
	if strings.TrimSpace(desc.ID) == "" {
		return job.Desc{}, &job.MalformedResponseError{Op: op, Reason: "missing job id"}
	}
	return desc, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		log.Printf("[WARN] failed to close response body: %v", err)
	}
}
