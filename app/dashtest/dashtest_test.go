package dashtest

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtail/app/dashboard"
	"github.com/umputun/jobtail/app/job"
)

func TestServer_ScriptedJob(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.Script("build-app", "1.2.0", Script{ID: "job-42", Steps: []Step{
		{Log: "line1\n", Status: job.StatusInProgress},
		{Drop: true},
		{Code: http.StatusServiceUnavailable},
		{Log: "line2\n", Status: job.StatusSuccess},
	}})

	cl := dashboard.New(dashboard.Params{BaseURL: srv.URL})
	ctx := context.Background()
	h, err := cl.Submit(ctx, job.Request{Name: "build-app", Version: "1.2.0"})
	require.NoError(t, err)
	assert.Equal(t, "job-42", h.ID())
	assert.Equal(t, []job.Request{{Name: "build-app", Version: "1.2.0"}}, srv.Starts())

	f := cl.LogFetcher("")
	ch, err := f.Fetch(ctx, "job-42")
	require.NoError(t, err)
	assert.Equal(t, job.Chunk{Text: "line1\n", Status: job.StatusInProgress}, ch)

	_, err = f.Fetch(ctx, "job-42")
	var te *job.TransportError
	require.True(t, errors.As(err, &te), "dropped connection is a transport error, got %v", err)

	_, err = f.Fetch(ctx, "job-42")
	var se *job.ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)

	ch, err = f.Fetch(ctx, "job-42")
	require.NoError(t, err)
	assert.Equal(t, job.Chunk{Text: "line2\n", Final: true, Status: job.StatusSuccess}, ch)

	// script exhausted, log stays the same
	ch, err = f.Fetch(ctx, "job-42")
	require.NoError(t, err)
	assert.Equal(t, job.Chunk{Final: true, Status: job.StatusSuccess}, ch)
	assert.Equal(t, 5, srv.Polls("job-42"))

	d, err := cl.Describe(ctx, "job-42")
	require.NoError(t, err)
	assert.Equal(t, job.StatusSuccess, d.Status)
	assert.Equal(t, "build-app", d.Package)
}

func TestServer_GeneratedIDsAndAbort(t *testing.T) {
	srv := New()
	defer srv.Close()
	cl := dashboard.New(dashboard.Params{BaseURL: srv.URL})
	ctx := context.Background()

	h1, err := cl.Submit(ctx, job.Request{Name: "a", Version: "1"})
	require.NoError(t, err)
	h2, err := cl.Submit(ctx, job.Request{Name: "b", Version: "1"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", h1.ID())
	assert.Equal(t, "job-2", h2.ID())

	require.NoError(t, cl.Abort(ctx, "job-2"))
	assert.Equal(t, []string{"job-2"}, srv.Aborts())
	ch, err := cl.LogFetcher("").Fetch(ctx, "job-2")
	require.NoError(t, err)
	assert.True(t, ch.Final)
	assert.Equal(t, job.StatusAborted, ch.Status)

	err = cl.Abort(ctx, "job-99")
	var se *job.ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestServer_StartRejected(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.Script("bad", "1", Script{StartCode: http.StatusConflict})
	cl := dashboard.New(dashboard.Params{BaseURL: srv.URL})

	_, err := cl.Submit(context.Background(), job.Request{Name: "bad", Version: "1"})
	var se *job.ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.Len(t, srv.Starts(), 1)
}

func TestServer_AddJob(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.AddJob("old-1", job.Request{Name: "app", Version: "1"}, Step{Log: "done\n", Status: job.StatusFailed})

	ch, err := dashboard.New(dashboard.Params{BaseURL: srv.URL}).LogFetcher("").Fetch(context.Background(), "old-1")
	require.NoError(t, err)
	assert.Equal(t, job.Chunk{Text: "done\n", Final: true, Status: job.StatusFailed}, ch)
}
