// Package tailer polls job logs until the job is done, the caller cancels or polling fails for good.
//
// Each Tailer tails exactly one job. Polls are strictly sequential: the next fetch is issued only
// after the previous one completed, so chunks reach the sink in fetch order and there is at most
// one fetch in flight. Transport failures are retried with capped exponential backoff, consecutive
// failures beyond MaxRetries abort the tail with job.TailAbortedError. Any other error stops the tail
// immediately.
package tailer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"

	"github.com/umputun/jobtail/app/job"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher

// ErrCancelled returned by Token.Wait if the tail was cancelled before the final chunk
var ErrCancelled = errors.New("tail cancelled")

// ErrStarted returned by Tail called on a tailer which already tails a job
var ErrStarted = errors.New("tailer already started")

// Fetcher gets the next portion of job logs
type Fetcher interface {
	Fetch(ctx context.Context, id string) (job.Chunk, error)
}

// Sink consumes log chunks, called sequentially from the polling goroutine
type Sink func(job.Chunk)

// Params define polling and backoff. Zero values replaced by defaults.
type Params struct {
	Interval   time.Duration // delay between successful polls
	BaseDelay  time.Duration // first retry delay after transport failure
	MaxDelay   time.Duration // retry delay cap
	Factor     float64       // retry delay multiplier
	MaxRetries int           // consecutive retries allowed after transport failure, negative disables retries
	Jitter     bool
}

// Tailer polls logs of a single job with Fetcher
type Tailer struct {
	fetcher Fetcher
	params  Params

	started atomic.Bool
	state   atomic.Int32
}

// New makes Tailer with fetcher and params
func New(fetcher Fetcher, params Params) *Tailer {
	if params.Interval <= 0 {
		params.Interval = time.Second
	}
	if params.BaseDelay <= 0 {
		params.BaseDelay = 500 * time.Millisecond
	}
	if params.MaxDelay <= 0 {
		params.MaxDelay = 30 * time.Second
	}
	if params.Factor < 1 {
		params.Factor = 2
	}
	if params.MaxRetries == 0 {
		params.MaxRetries = 5
	}
	if params.MaxRetries < 0 {
		params.MaxRetries = 0
	}
	return &Tailer{fetcher: fetcher, params: params}
}

// State returns the current tailer state
func (t *Tailer) State() State {
	return State(t.state.Load())
}

// Tail starts polling logs of the job in background and returns immediately.
// Polling stops on final chunk, on Token.Cancel, on ctx cancellation or on fatal error.
// Tailer can tail only one job, the second call returns ErrStarted.
func (t *Tailer) Tail(ctx context.Context, h job.Handle, sink Sink) (*Token, error) {
	if h.IsZero() {
		return nil, errors.New("can't tail job with empty id")
	}
	if sink == nil {
		return nil, errors.New("can't tail job without sink")
	}
	if !t.started.CompareAndSwap(false, true) {
		return nil, ErrStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	tok := &Token{cancel: cancel, done: make(chan struct{})}
	t.setState(StatePolling)
	go func() {
		defer close(tok.done)
		defer cancel()
		ps := &pollState{jobID: h.ID(), tok: tok}
		tok.err = t.loop(ctx, ps, sink)
		tok.status = ps.status
		t.setState(StateStopped)
		log.Printf("[DEBUG] tail of job %s stopped, %v", h.ID(), tok.err)
	}()
	return tok, nil
}

// pollState is owned by the polling goroutine, tok shared with the caller
type pollState struct {
	jobID   string
	tok     *Token
	attempt int        // consecutive failed fetches
	status  job.Status // last status reported by the server
}

func (p *pollState) isCancelled(ctx context.Context) bool {
	return p.tok.cancelled.Load() || ctx.Err() != nil
}

// deliver passes chunk to sink unless cancelled. The check and the sink call are done under
// sinkMu which Token.Cancel waits for.
func (p *pollState) deliver(ctx context.Context, sink Sink, chunk job.Chunk) bool {
	p.tok.sinkMu.Lock()
	defer p.tok.sinkMu.Unlock()
	if p.isCancelled(ctx) {
		return false
	}
	p.tok.inSink.Store(true)
	defer p.tok.inSink.Store(false)
	sink(chunk)
	return true
}

func (t *Tailer) loop(ctx context.Context, ps *pollState, sink Sink) error {
	for {
		chunk, err := t.poll(ctx, ps)
		if ps.isCancelled(ctx) {
			return ErrCancelled
		}
		if err != nil {
			return err
		}
		if chunk.Status != job.StatusUnknown {
			ps.status = chunk.Status
		}

		if chunk.Text != "" && !ps.deliver(ctx, sink, chunk) {
			return ErrCancelled
		}
		if chunk.Final {
			log.Printf("[INFO] job %s finished, status %s", ps.jobID, chunk.Status)
			return nil
		}

		timer := time.NewTimer(t.params.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrCancelled
		case <-timer.C:
		}
	}
}

// poll fetches the next chunk, retrying transport failures with backoff
func (t *Tailer) poll(ctx context.Context, ps *pollState) (chunk job.Chunk, err error) {
	var fatal, lastTransport error
	ps.attempt = 0

	rptr := repeater.New(&cappedBackoff{retries: t.params.MaxRetries, base: t.params.BaseDelay,
		maxDelay: t.params.MaxDelay, factor: t.params.Factor, jitter: t.params.Jitter})

	rerr := rptr.Do(ctx, func() error {
		if ps.isCancelled(ctx) {
			fatal = ErrCancelled
			return nil
		}
		t.setState(StatePolling)
		c, e := t.fetcher.Fetch(ctx, ps.jobID)
		if e == nil {
			chunk, ps.attempt = c, 0
			return nil
		}

		var te *job.TransportError
		if !errors.As(e, &te) || ps.isCancelled(ctx) {
			fatal = e
			return nil // stop repeater, not retryable
		}
		ps.attempt++
		lastTransport = e
		if ps.attempt <= t.params.MaxRetries {
			t.setState(StateBackoff)
			log.Printf("[WARN] failed to fetch logs of job %s, attempt %d of %d, %v",
				ps.jobID, ps.attempt, t.params.MaxRetries+1, e)
		}
		return e
	})

	if fatal != nil {
		return job.Chunk{}, fatal
	}
	if ps.isCancelled(ctx) {
		return job.Chunk{}, ErrCancelled
	}
	if ps.attempt > 0 { // the last fetch failed, retries exhausted
		return job.Chunk{}, &job.TailAbortedError{JobID: ps.jobID, Attempts: ps.attempt, Err: lastTransport}
	}
	if rerr != nil {
		return job.Chunk{}, fmt.Errorf("poll logs of job %s: %w", ps.jobID, rerr)
	}
	return chunk, nil
}

func (t *Tailer) setState(s State) {
	for {
		cur := State(t.state.Load())
		if cur == StateStopped {
			return // terminal
		}
		if t.state.CompareAndSwap(int32(cur), int32(s)) {
			return
		}
	}
}

// Token controls a running tail
type Token struct {
	cancelled atomic.Bool
	inSink    atomic.Bool // set by polling goroutine while sink runs
	sinkMu    sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	status    job.Status
}

// Cancel stops the tail. No sink call starts after Cancel returned, safe to call more than once
// and from the sink itself.
func (k *Token) Cancel() {
	k.cancelled.Store(true)
	k.cancel()
	if k.inSink.Load() {
		return // called from sink or while sink runs, next delivery sees cancelled flag
	}
	k.sinkMu.Lock()
	k.sinkMu.Unlock() //nolint:staticcheck // waits for delivery in progress
}

// Done is closed when polling stopped
func (k *Token) Done() <-chan struct{} {
	return k.done
}

// Wait blocks till polling stopped and returns the reason: nil for the final chunk, ErrCancelled,
// *job.TailAbortedError or the fatal fetch error.
func (k *Token) Wait() error {
	<-k.done
	return k.err
}

// Status returns the last job status reported by the server, unknown while polling
// or if the server never reported one
func (k *Token) Status() job.Status {
	select {
	case <-k.done:
		return k.status
	default:
		return job.StatusUnknown
	}
}

// WaitContext is Wait limited by ctx
func (k *Token) WaitContext(ctx context.Context) error {
	select {
	case <-k.done:
		return k.err
	case <-ctx.Done():
		return fmt.Errorf("wait for tail: %w", ctx.Err())
	}
}
