// Package job defines the types shared by the dashboard client and the log tailer:
// job requests, handles, descriptions, log chunks, statuses and the error taxonomy.
package job

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest returned for requests without name or version
var ErrInvalidRequest = errors.New("invalid job request")

// Request describes a job to start. Immutable once created.
type Request struct {
	Name    string
	Version string
}

// Validate checks name and version are set. Anything else is up to the server.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Version) == "" {
		return fmt.Errorf("%w: empty version for %s", ErrInvalidRequest, r.Name)
	}
	return nil
}

// Key returns name@version, used for duplicates detection
func (r Request) Key() string {
	return r.Name + "@" + r.Version
}

func (r Request) String() string {
	return r.Key()
}

// Handle identifies a started job. The id is assigned by the server and can't be changed.
type Handle struct {
	id string
}

// NewHandle makes Handle for the given id, fails on empty id
func NewHandle(id string) (Handle, error) {
	if strings.TrimSpace(id) == "" {
		return Handle{}, fmt.Errorf("%w: empty job id", ErrInvalidRequest)
	}
	return Handle{id: id}, nil
}

// ID returns server-assigned job id
func (h Handle) ID() string {
	return h.id
}

// IsZero reports whether the handle was never assigned
func (h Handle) IsZero() bool {
	return h.id == ""
}

func (h Handle) String() string {
	return "#" + h.id
}

// Desc is a job description as returned by the dashboard
type Desc struct {
	ID        string `json:"id"`
	Package   string `json:"package,omitempty"`
	Version   string `json:"version,omitempty"`
	Status    Status `json:"status"`
	RequestID string `json:"-"` // X-Request-ID sent with the start request
}

// Chunk is a piece of log output produced by a single poll
type Chunk struct {
	Text   string
	Final  bool
	Status Status
}
