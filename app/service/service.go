// Package service provides top level runner. Combines dashboard submission, log tailing, journal and
// notifications together and provides the main entry points (blocking) for cli modes.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/jobtail/app/job"
	"github.com/umputun/jobtail/app/journal"
	"github.com/umputun/jobtail/app/notify"
	"github.com/umputun/jobtail/app/sink"
	"github.com/umputun/jobtail/app/tailer"
)

//go:generate moq -out mocks/submitter.go -pkg mocks -skip-ensure -fmt goimports . Submitter
//go:generate moq -out mocks/describer.go -pkg mocks -skip-ensure -fmt goimports . Describer
//go:generate moq -out mocks/journal.go -pkg mocks -skip-ensure -fmt goimports . Journal
//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier
//go:generate moq -out mocks/dedupper.go -pkg mocks -skip-ensure -fmt goimports . Dedupper

// ErrIncomplete returned by Runner when some jobs didn't finish successfully
var ErrIncomplete = errors.New("not all jobs completed")

// Runner submits jobs and tails their logs to Out. All tails of a run share Out. With EnableLogPrefix
// the output of concurrent jobs interleaves by complete lines, otherwise by chunks.
type Runner struct {
	Submitter         Submitter
	Describer         Describer             // optional, used for jobs missing in journal
	Fetchers          func() tailer.Fetcher // makes fetcher for a single tail
	TailParams        tailer.Params
	Journal           Journal  // optional
	Notifier          Notifier // optional
	DeDup             Dedupper
	Out               io.Writer
	EnableLogPrefix   bool
	Concurrency       int // max parallel tails
	NotifyMaxLogLines int // controls notification output capture buffer size
	NotifyTimeout     time.Duration
	HostName          string

	once sync.Once
	out  io.Writer
}

// Submitter starts jobs on dashboard
type Submitter interface {
	Start(ctx context.Context, req job.Request) (job.Desc, error)
}

// Describer gets job description from dashboard
type Describer interface {
	Describe(ctx context.Context, id string) (job.Desc, error)
}

// Journal defines subset of journal.SQLite used by runner
type Journal interface {
	Record(e journal.Entry) error
	SetStatus(id string, status job.Status, finishedAt time.Time) error
	Get(id string) (journal.Entry, error)
	Unfinished() ([]journal.Entry, error)
}

// Notifier interface defines notification delivery on failed and completed jobs
type Notifier interface {
	Send(ctx context.Context, subj, text string) error
	IsOnError() bool
	IsOnCompletion() bool
	MakeErrorHTML(j notify.Job, errorLog string) (string, error)
	MakeCompletionHTML(j notify.Job) (string, error)
}

// Dedupper defines a locking primitive to register/unregister request in order to prevent dbl submission
type Dedupper interface {
	Add(req job.Request) bool
	Remove(req job.Request)
}

// Target is a job to tail
type Target struct {
	Handle  job.Handle
	Request job.Request // may be empty for jobs not started by this tool
}

// Result of a single tail
type Result struct {
	Target
	Status job.Status
	Err    error
}

// OK is true for job completed successfully
func (r Result) OK() bool {
	return r.Err == nil && r.Status == job.StatusSuccess
}

// Run submits all requests in order and tails them once all submitted. A failed submission stops
// the run before any tail started. Duplicated name@version requests are skipped.
func (s *Runner) Run(ctx context.Context, reqs []job.Request) ([]Result, error) {
	targets := make([]Target, 0, len(reqs))
	for _, req := range reqs {
		if s.DeDup != nil && !s.DeDup.Add(req) {
			log.Printf("[WARN] duplicated job %s ignored", req)
			continue
		}
		if s.DeDup != nil {
			defer s.DeDup.Remove(req)
		}

		desc, err := s.Submitter.Start(ctx, req)
		if err != nil {
			if len(targets) > 0 {
				log.Printf("[WARN] %d submitted job(s) not tailed, use resume to follow them", len(targets))
			}
			return nil, fmt.Errorf("failed to submit %s: %w", req, err)
		}
		h, err := job.NewHandle(desc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to submit %s: %w", req, err)
		}
		s.record(desc, req)
		targets = append(targets, Target{Handle: h, Request: req})
	}

	if len(targets) == 0 {
		return nil, errors.New("nothing to run")
	}
	return s.tailAll(ctx, targets)
}

// Follow tails already started jobs by id. Jobs missing in journal described by dashboard.
func (s *Runner) Follow(ctx context.Context, ids []string) ([]Result, error) {
	targets := make([]Target, 0, len(ids))
	for _, id := range ids {
		h, err := job.NewHandle(id)
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{Handle: h, Request: s.lookup(ctx, id)})
	}
	if len(targets) == 0 {
		return nil, errors.New("nothing to follow")
	}
	return s.tailAll(ctx, targets)
}

// Resume tails all unfinished jobs from the journal
func (s *Runner) Resume(ctx context.Context) ([]Result, error) {
	if s.hasNoJournal() {
		return nil, errors.New("can't resume without journal")
	}
	entries, err := s.Journal.Unfinished()
	if err != nil {
		return nil, fmt.Errorf("failed to load unfinished jobs: %w", err)
	}
	if len(entries) == 0 {
		log.Printf("[INFO] no unfinished jobs to resume")
		return nil, nil
	}

	targets := make([]Target, 0, len(entries))
	for _, e := range entries {
		h, err := job.NewHandle(e.ID)
		if err != nil {
			log.Printf("[WARN] skip journal entry %+v, %v", e, err)
			continue
		}
		targets = append(targets, Target{Handle: h, Request: e.Request()})
	}
	log.Printf("[INFO] resume %d unfinished job(s)", len(targets))
	return s.tailAll(ctx, targets)
}

// tailAll tails targets in parallel, limited by Concurrency, results kept in targets order
func (s *Runner) tailAll(ctx context.Context, targets []Target) ([]Result, error) {
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	res := make([]Result, len(targets))
	gr := syncs.NewSizedGroup(concurrency, syncs.Preemptive) // preemptive keeps start order of tails
	for i, t := range targets {
		gr.Go(func(context.Context) {
			res[i] = s.tail(ctx, t)
		})
	}
	gr.Wait()

	var failed int
	for _, r := range res {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return res, fmt.Errorf("%d of %d: %w", failed, len(res), ErrIncomplete)
	}
	return res, nil
}

// tail follows a single job till it is done, updates journal and notifies
func (s *Runner) tail(ctx context.Context, t Target) Result {
	id := t.Handle.ID()
	capture := sink.NewCapture(s.NotifyMaxLogLines)
	var out io.Writer = s.output()
	var prefixer *sink.Prefixer
	if s.EnableLogPrefix {
		prefixer = sink.NewPrefixer(out, id)
		out = prefixer
	}

	tl := tailer.New(s.Fetchers(), s.TailParams)
	tok, err := tl.Tail(ctx, t.Handle, sink.Func(id, out, capture))
	if err != nil {
		return Result{Target: t, Err: err}
	}
	log.Printf("[INFO] tailing job %s (%s)", id, s.describe(t))
	err = tok.Wait()
	r := Result{Target: t, Status: tok.Status(), Err: err}
	if prefixer != nil {
		if e := prefixer.Flush(); e != nil {
			log.Printf("[WARN] failed to write output of job %s, %v", id, e)
		}
	}

	if errors.Is(err, tailer.ErrCancelled) {
		log.Printf("[INFO] tail of job %s cancelled, job left unfinished", id)
		return r // stays unfinished in journal, resumable
	}

	var se *job.ServerError
	switch {
	case err == nil:
		if !r.Status.Terminal() {
			r.Status = job.StatusSuccess // completion signalled by end marker only
		}
		s.finish(id, r.Status)
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		log.Printf("[WARN] job %s not found on dashboard, marked as failed", id)
		s.finish(id, job.StatusFailed) // nothing to resume
	}

	ctxTimeout, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout())
	defer cancel()
	if e := s.notify(ctxTimeout, r, capture.Output()); e != nil {
		log.Printf("[WARN] failed to notify, %v", e)
	}

	switch {
	case err != nil:
		log.Printf("[WARN] tail of job %s failed, %v", id, err)
	case r.Status == job.StatusSuccess:
		log.Printf("[INFO] completed job %s (%s)", id, s.describe(t))
	default:
		log.Printf("[WARN] job %s (%s) finished with status %s", id, s.describe(t), r.Status)
	}
	return r
}

func (s *Runner) notify(ctx context.Context, r Result, output string) error {
	if s.Notifier == nil || reflect.ValueOf(s.Notifier).IsNil() {
		return nil
	}

	nj := notify.Job{ID: r.Handle.ID(), Name: r.Request.Name, Version: r.Request.Version, Status: r.Status}
	if !r.OK() && s.Notifier.IsOnError() {
		errMsg := fmt.Sprintf("job status %s", r.Status)
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		if output != "" {
			errMsg += "\n\n" + output
		}
		msg, err := s.Notifier.MakeErrorHTML(nj, errMsg)
		if err != nil {
			return fmt.Errorf("can't make html email: %w", err)
		}
		if err := s.Notifier.Send(ctx, fmt.Sprintf("failed %s on %s", s.describe(r.Target), s.HostName), msg); err != nil {
			return fmt.Errorf("failed to send error notification: %w", err)
		}
		return nil
	}

	if r.OK() && s.Notifier.IsOnCompletion() {
		msg, err := s.Notifier.MakeCompletionHTML(nj)
		if err != nil {
			return fmt.Errorf("can't make html email: %w", err)
		}
		if err := s.Notifier.Send(ctx, fmt.Sprintf("completed %s on %s", s.describe(r.Target), s.HostName), msg); err != nil {
			return fmt.Errorf("failed to send completion notification: %w", err)
		}
	}
	return nil
}

func (s *Runner) record(desc job.Desc, req job.Request) {
	if s.hasNoJournal() {
		return
	}
	status := desc.Status
	if status == job.StatusUnknown {
		status = job.StatusPending
	}
	e := journal.Entry{ID: desc.ID, Name: req.Name, Version: req.Version, RequestID: desc.RequestID,
		Status: status, SubmittedAt: time.Now()}
	if err := s.Journal.Record(e); err != nil {
		log.Printf("[WARN] can't record job %s in journal, %v", desc.ID, err)
	}
}

func (s *Runner) finish(id string, status job.Status) {
	if s.hasNoJournal() {
		return
	}
	if err := s.Journal.SetStatus(id, status, time.Now()); err != nil && !errors.Is(err, journal.ErrNotFound) {
		log.Printf("[WARN] can't update job %s in journal, %v", id, err)
	}
}

// lookup finds request of the job in journal or on dashboard, empty request if both failed
func (s *Runner) lookup(ctx context.Context, id string) job.Request {
	if !s.hasNoJournal() {
		if e, err := s.Journal.Get(id); err == nil {
			return e.Request()
		}
	}
	if s.Describer == nil || reflect.ValueOf(s.Describer).IsNil() {
		return job.Request{}
	}
	desc, err := s.Describer.Describe(ctx, id)
	if err != nil {
		log.Printf("[WARN] can't describe job %s, %v", id, err)
		return job.Request{}
	}
	return job.Request{Name: desc.Package, Version: desc.Version}
}

func (s *Runner) hasNoJournal() bool {
	return s.Journal == nil || reflect.ValueOf(s.Journal).IsNil()
}

// output returns Out wrapped for concurrent writes, stdout if Out not set
func (s *Runner) output() io.Writer {
	s.once.Do(func() {
		out := s.Out
		if out == nil {
			out = os.Stdout
		}
		s.out = sink.NewWriter(out)
	})
	return s.out
}

func (s *Runner) notifyTimeout() time.Duration {
	if s.NotifyTimeout <= 0 {
		return 10 * time.Second
	}
	return s.NotifyTimeout
}

func (s *Runner) describe(t Target) string {
	if t.Request.Name == "" {
		return "job " + t.Handle.String()
	}
	return t.Request.String()
}
