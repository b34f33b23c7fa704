// Package sink renders job log chunks: writes them to the output, prefixes lines with the job id
// and keeps the last lines of the output for notifications.
package sink

import (
	"io"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobtail/app/job"
)

// Writer serializes writes from concurrent tails into a single output
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter wraps out with a lock
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Write satisfies io.Writer, each call written as a whole
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Write(p)
}

// Func makes a sink function writing chunk text to all writers.
// Write errors are logged and don't stop the tail.
func Func(jobID string, writers ...io.Writer) func(job.Chunk) {
	out := io.MultiWriter(writers...)
	return func(c job.Chunk) {
		if c.Text == "" {
			return
		}
		if _, err := io.WriteString(out, c.Text); err != nil {
			log.Printf("[WARN] failed to write output of job %s, %v", jobID, err)
		}
	}
}
