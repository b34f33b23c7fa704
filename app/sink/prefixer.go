package sink

import (
	"bytes"
	"fmt"
	"io"
)

const prefixIDMaxLen = 16
const prefixCutIDSuffix = "..."

// Prefixer implements io.Writer and adds {job-id} prefix to each output line.
// Only complete lines are passed to the underlying writer, the incomplete last line is kept
// till the newline arrives or Flush called.
type Prefixer struct {
	writer   io.Writer
	prefix   []byte
	pending  []byte // incomplete line, not written yet
	lineBuff bytes.Buffer
}

// NewPrefixer initializes prefixer for job id
func NewPrefixer(writer io.Writer, jobID string) *Prefixer {
	return &Prefixer{writer: writer, prefix: prefixForID(jobID)}
}

// Write prefixes complete lines of data and passes them to the underlying writer with a single call,
// so lines of concurrent jobs don't interleave
func (p *Prefixer) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	p.lineBuff.Reset()
	rest := data
	for len(rest) > 0 {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			p.pending = append(p.pending, rest...)
			break
		}
		p.lineBuff.Write(p.prefix)
		p.lineBuff.Write(p.pending)
		p.lineBuff.Write(rest[:idx+1])
		p.pending = p.pending[:0]
		rest = rest[idx+1:]
	}

	if p.lineBuff.Len() == 0 {
		return len(data), nil
	}
	if _, err := p.writer.Write(p.lineBuff.Bytes()); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Flush writes the incomplete last line, if any, terminated with newline
func (p *Prefixer) Flush() error {
	if len(p.pending) == 0 {
		return nil
	}
	p.lineBuff.Reset()
	p.lineBuff.Write(p.prefix)
	p.lineBuff.Write(p.pending)
	p.lineBuff.WriteByte('\n')
	p.pending = p.pending[:0]
	_, err := p.writer.Write(p.lineBuff.Bytes())
	return err
}

func prefixForID(id string) []byte {
	if len(id) > prefixIDMaxLen {
		id = id[:prefixIDMaxLen] + prefixCutIDSuffix
	}
	return []byte(fmt.Sprintf("{%s} ", id))
}
