package job

import (
	"fmt"
)

// TransportError returned when the network call can't complete. The only retryable error.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError returned for non-2xx responses
type ServerError struct {
	Op         string
	StatusCode int
	Body       string // response excerpt, may be empty
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server responded with %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: server responded with %d, %s", e.Op, e.StatusCode, e.Body)
}

// MalformedResponseError returned when the response body violates the expected schema
type MalformedResponseError struct {
	Op     string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response, %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed response, %s", e.Op, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// TailAbortedError returned by tailer when consecutive transport failures exhausted the retry budget
type TailAbortedError struct {
	JobID    string
	Attempts int
	Err      error // last transport error
}

func (e *TailAbortedError) Error() string {
	return fmt.Sprintf("tail of job %s aborted after %d attempts: %v", e.JobID, e.Attempts, e.Err)
}

func (e *TailAbortedError) Unwrap() error { return e.Err }
