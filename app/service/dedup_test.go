package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umputun/jobtail/app/job"
)

func TestDeDup(t *testing.T) {
	app1 := job.Request{Name: "app", Version: "1"}
	app2 := job.Request{Name: "app", Version: "2"}

	d := NewDeDup(true)
	assert.True(t, d.Add(app1), "passed, first time")
	assert.False(t, d.Add(app1), "failed, dup")
	assert.True(t, d.Add(app2), "passed, different version")
	d.Remove(app1)
	assert.True(t, d.Add(app1), "passed, removed before")
	assert.False(t, d.Add(app2), "failed, dup")
}

func TestDeDupDisabled(t *testing.T) {
	app1 := job.Request{Name: "app", Version: "1"}
	d := NewDeDup(false)
	assert.True(t, d.Add(app1))
	assert.True(t, d.Add(app1))
	d.Remove(app1)
	assert.True(t, d.Add(app1))
}
