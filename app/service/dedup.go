package service

import (
	"sync"
	"time"

	"github.com/umputun/jobtail/app/job"
)

// DeDup keeps name@version of submitted jobs to prevent double submission within a run.
// Safe for concurrent use, disabled DeDup accepts everything.
type DeDup struct {
	active  map[string]time.Time
	lock    sync.Mutex
	enabled bool
}

// NewDeDup creates DeDup
func NewDeDup(enabled bool) *DeDup {
	return &DeDup{active: make(map[string]time.Time), enabled: enabled}
}

// Add registers request, false if the same name@version already registered
func (d *DeDup) Add(req job.Request) bool {
	if !d.enabled {
		return true
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if _, found := d.active[req.Key()]; found {
		return false
	}
	d.active[req.Key()] = time.Now()
	return true
}

// Remove request registration. Safe to call multiple times
func (d *DeDup) Remove(req job.Request) {
	if !d.enabled {
		return
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	delete(d.active, req.Key())
}

