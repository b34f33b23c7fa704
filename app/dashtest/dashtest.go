// Package dashtest provides fake dashboard server with scripted job logs, used by tests
package dashtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/jobtail/app/job"
)

// StatusHeader carries job status in logs response
const StatusHeader = "X-Job-Status"

// Step is a single response of the logs endpoint
type Step struct {
	Log    string     // text appended to the job log before responding
	Status job.Status // status reported in header, unknown omits the header
	Code   int        // non-zero responds with this code and no log
	Drop   bool       // break connection in the middle of response
}

// Script defines how the server reacts to a started job
type Script struct {
	ID        string // job id assigned on start, generated if empty
	StartCode int    // non-zero fails start with this code
	Steps     []Step
}

// Server is a fake dashboard. Jobs without script report pending status with empty log.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	scripts map[string]Script // by name@version
	jobs    map[string]*jobState
	starts  []job.Request
	aborts  []string
	polls   map[string]int
	lastID  int
}

type jobState struct {
	req    job.Request
	steps  []Step
	step   int
	log    strings.Builder
	status job.Status
}

// New makes and starts fake dashboard server
func New() *Server {
	s := &Server{
		scripts: map[string]Script{},
		jobs:    map[string]*jobState{},
		polls:   map[string]int{},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// Script sets script for the job started with name and version
func (s *Server) Script(name, version string, sc Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[job.Request{Name: name, Version: version}.Key()] = sc
}

// Starts returns all start requests received
func (s *Server) Starts() []job.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]job.Request(nil), s.starts...)
}

// Aborts returns ids of aborted jobs
func (s *Server) Aborts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.aborts...)
}

// Polls returns number of logs requests for the job
func (s *Server) Polls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls[id]
}

// AddJob registers already running job, i.e. started before the test
func (s *Server) AddJob(id string, req job.Request, steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &jobState{req: req, steps: steps, status: job.StatusInProgress}
}

func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())
	router.Use(rest.Recoverer(log.Default()), rest.Ping)
	router.Mount("/dashboard/job").Route(func(b *routegroup.Bundle) {
		b.HandleFunc("POST /start", s.handleStart)
		b.HandleFunc("GET /{id}", s.handleDescribe)
		b.HandleFunc("GET /{id}/logs", s.handleLogs)
		b.HandleFunc("POST /{id}/abort", s.handleAbort)
	})
	return router
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req := job.Request{Name: r.URL.Query().Get("name"), Version: r.URL.Query().Get("version")}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, req)
	sc := s.scripts[req.Key()]
	if sc.StartCode != 0 {
		http.Error(w, "start rejected", sc.StartCode)
		return
	}
	id := sc.ID
	if id == "" {
		s.lastID++
		id = fmt.Sprintf("job-%d", s.lastID)
	}
	s.jobs[id] = &jobState{req: req, steps: sc.Steps, status: job.StatusPending}
	rest.RenderJSON(w, s.desc(id))
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	if _, ok := s.jobs[id]; !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	rest.RenderJSON(w, s.desc(id))
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	js, ok := s.jobs[id]
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	s.aborts = append(s.aborts, id)
	js.status = job.StatusAborted
	rest.RenderJSON(w, s.desc(id))
}

// handleLogs applies next script step and responds with the complete log
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	id := r.PathValue("id")
	s.polls[id]++
	js, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	var st Step
	if js.step < len(js.steps) && js.status != job.StatusAborted {
		st = js.steps[js.step]
		js.step++
	}
	if st.Code == 0 && !st.Drop {
		js.log.WriteString(st.Log)
		if st.Status != job.StatusUnknown {
			js.status = st.Status
		}
	}
	text, status := js.log.String(), js.status
	s.mu.Unlock()

	switch {
	case st.Drop:
		drop(w)
		return
	case st.Code != 0:
		http.Error(w, "scripted failure", st.Code)
		return
	}

	if status != job.StatusUnknown {
		w.Header().Set(StatusHeader, status.String())
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(text)); err != nil {
		log.Printf("[WARN] can't write logs of %s, %v", id, err)
	}
}

func (s *Server) desc(id string) job.Desc {
	js := s.jobs[id]
	return job.Desc{ID: id, Package: js.req.Name, Version: js.req.Version, Status: js.status}
}

// drop sends truncated response and closes connection, client gets transport error on body read.
// Headers are sent to keep http transport from retrying the request on a new connection.
func drop(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("response writer can't be hijacked")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(fmt.Sprintf("hijack failed: %v", err))
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 1024\r\n\r\npartial")); err != nil {
		log.Printf("[WARN] can't write truncated response, %v", err)
	}
}
