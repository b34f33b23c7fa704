package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtail/app/job"
)

func TestClient_Submit(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/dashboard/job/start", r.URL.Path)
		assert.Equal(t, "build-app", r.URL.Query().Get("name"))
		assert.Equal(t, "1.2.0", r.URL.Query().Get("version"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"job-42","package":"build-app","version":"1.2.0","status":"Pending"}`))
	}))
	defer ts.Close()

	c := New(Params{BaseURL: ts.URL + "/", Timeout: time.Second})
	h, err := c.Submit(context.Background(), job.Request{Name: "build-app", Version: "1.2.0"})
	require.NoError(t, err)
	assert.Equal(t, "job-42", h.ID())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Start(t *testing.T) {
	var requestID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-ID")
		assert.Equal(t, "pkg with space", r.URL.Query().Get("name"), "name should be escaped")
		_, _ = w.Write([]byte(`{"id":"7","package":"pkg with space","version":"2.0","status":"InProgress"}`))
	}))
	defer ts.Close()

	c := New(Params{BaseURL: ts.URL})
	desc, err := c.Start(context.Background(), job.Request{Name: "pkg with space", Version: "2.0"})
	require.NoError(t, err)
	assert.Equal(t, "7", desc.ID)
	assert.Equal(t, "pkg with space", desc.Package)
	assert.Equal(t, job.StatusInProgress, desc.Status)
	assert.Equal(t, requestID, desc.RequestID)
	assert.Len(t, desc.RequestID, 36)
}

func TestClient_SubmitErrors(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		checkErr func(t *testing.T, err error)
	}{
		{"server error", http.StatusInternalServerError, "boom", func(t *testing.T, err error) {
			var se *job.ServerError
			require.True(t, errors.As(err, &se), "%v", err)
			assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
			assert.Equal(t, "boom", se.Body)
		}},
		{"not found", http.StatusNotFound, "", func(t *testing.T, err error) {
			var se *job.ServerError
			require.True(t, errors.As(err, &se), "%v", err)
			assert.Equal(t, http.StatusNotFound, se.StatusCode)
		}},
		{"invalid json", http.StatusOK, "not a json", func(t *testing.T, err error) {
			var me *job.MalformedResponseError
			require.True(t, errors.As(err, &me), "%v", err)
			assert.Equal(t, "invalid json", me.Reason)
		}},
		{"missing id", http.StatusOK, `{"package":"build-app"}`, func(t *testing.T, err error) {
			var me *job.MalformedResponseError
			require.True(t, errors.As(err, &me), "%v", err)
			assert.Equal(t, "missing job id", me.Reason)
		}},
		{"empty id", http.StatusOK, `{"id":""}`, func(t *testing.T, err error) {
			var me *job.MalformedResponseError
			require.True(t, errors.As(err, &me), "%v", err)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := New(Params{BaseURL: ts.URL})
			h, err := c.Submit(context.Background(), job.Request{Name: "build-app", Version: "1.2.0"})
			require.Error(t, err)
			assert.True(t, h.IsZero())
			tt.checkErr(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retries expected")
		})
	}
}

func TestClient_SubmitTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close() // connection refused from now on

	c := New(Params{BaseURL: url, Timeout: time.Second})
	_, err := c.Submit(context.Background(), job.Request{Name: "build-app", Version: "1.2.0"})
	require.Error(t, err)
	var te *job.TransportError
	assert.True(t, errors.As(err, &te), "%v", err)
}

func TestClient_SubmitInvalidRequest(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	c := New(Params{BaseURL: ts.URL})
	_, err := c.Submit(context.Background(), job.Request{Name: "build-app"})
	assert.ErrorIs(t, err, job.ErrInvalidRequest)
	_, err = c.Submit(context.Background(), job.Request{Version: "1.0"})
	assert.ErrorIs(t, err, job.ErrInvalidRequest)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClient_Describe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dashboard/job/job-42" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"id":"job-42","package":"build-app","version":"1.2.0","status":"Success"}`))
	}))
	defer ts.Close()

	c := New(Params{BaseURL: ts.URL})
	desc, err := c.Describe(context.Background(), "job-42")
	require.NoError(t, err)
	assert.Equal(t, job.Desc{ID: "job-42", Package: "build-app", Version: "1.2.0", Status: job.StatusSuccess}, desc)

	_, err = c.Describe(context.Background(), "job-1")
	var se *job.ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestClient_Abort(t *testing.T) {
	var aborted int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/dashboard/job/job-42/abort" {
			atomic.AddInt32(&aborted, 1)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := New(Params{BaseURL: ts.URL})
	require.NoError(t, c.Abort(context.Background(), "job-42"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&aborted))
	assert.Error(t, c.Abort(context.Background(), "job-1"))
}

func TestClient_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c := New(Params{BaseURL: ts.URL})
	_, err := c.Submit(ctx, job.Request{Name: "build-app", Version: "1.2.0"})
	var te *job.TransportError
	require.True(t, errors.As(err, &te), "%v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
