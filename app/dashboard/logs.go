package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobtail/app/job"
)

// StatusHeader carries job status in logs response. Terminal status marks the final chunk.
const StatusHeader = "X-Job-Status"

const maxLogSize = 64 * 1024 * 1024 // 64MB, logs endpoint returns the whole log every time

// LogFetcher fetches job logs and returns only the part not delivered yet.
// The dashboard returns the complete log on each call, the fetcher keeps the delivered offset per job.
type LogFetcher struct {
	client    *Client
	endMarker string
	maxSize   int

	mu      sync.Mutex
	offsets map[string]int
}

// Fetch gets logs for the job id and returns new text since the previous call
func (f *LogFetcher) Fetch(ctx context.Context, id string) (job.Chunk, error) {
	op := "fetch logs " + id
	resp, err := f.client.do(ctx, op, http.MethodGet, f.client.jobURL(id, "/logs"), nil)
	if err != nil {
		return job.Chunk{}, err
	}
	defer closeBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.maxSize)+1))
	if err != nil {
		return job.Chunk{}, &job.TransportError{Op: op, Err: fmt.Errorf("failed to read logs: %w", err)}
	}
	if len(body) > f.maxSize {
		return job.Chunk{}, &job.MalformedResponseError{Op: op, Reason: fmt.Sprintf("log exceeds %d bytes", f.maxSize)}
	}

	status := job.StatusUnknown
	if hdr := resp.Header.Get(StatusHeader); hdr != "" {
		if status, err = job.ParseStatus(hdr); err != nil {
			return job.Chunk{}, &job.MalformedResponseError{Op: op, Reason: "bad " + StatusHeader + " header", Err: err}
		}
	}

	text := string(body)
	final := status.Terminal()
	end := len(text) // deliverable part of the log
	if f.endMarker != "" {
		if trimmed, ok := cutMarker(text, f.endMarker); ok {
			end, final = len(trimmed), true
		} else if !final {
			end = holdMarkerPrefix(text, f.endMarker)
		}
	}

	return job.Chunk{Text: f.delta(id, text, end), Final: final, Status: status}, nil
}

// delta returns full[offset:end] for the part of log not delivered yet and moves the offset to end
func (f *LogFetcher) delta(id, full string, end int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	offset := f.offsets[id]
	if len(full) < offset {
		log.Printf("[WARN] logs of job %s shrunk from %d to %d bytes, delivering from the start", id, offset, len(full))
		offset = 0
	}
	if offset >= end {
		return ""
	}
	f.offsets[id] = end
	return full[offset:end]
}

// holdMarkerPrefix returns the end of deliverable text, excluding the incomplete last line
// if it may turn into the marker on the next poll
func holdMarkerPrefix(text, marker string) int {
	last := text[strings.LastIndex(text, "\n")+1:]
	if l := strings.TrimRight(last, "\r"); l != "" && strings.HasPrefix(marker, l) {
		return len(text) - len(last)
	}
	return len(text)
}

// cutMarker strips trailing marker line from the log
func cutMarker(text, marker string) (string, bool) {
	trimmed := strings.TrimRight(text, "\r\n")
	if trimmed == marker {
		return "", true
	}
	if !strings.HasSuffix(trimmed, "\n"+marker) {
		return text, false
	}
	return strings.TrimSuffix(trimmed, marker), true
}
