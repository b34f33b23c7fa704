package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-pkgz/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobtail/app/job"
	"github.com/umputun/jobtail/app/notify/mocks"
)

var testJob = Job{ID: "job-42", Name: "build-app", Version: "1.2.0", Status: job.StatusFailed}

func TestNewService(t *testing.T) {
	t.Run("empty destinations", func(t *testing.T) {
		assert.Nil(t, NewService(Params{}, SendersParams{}))
	})

	t.Run("only unsupported destinations", func(t *testing.T) {
		assert.Nil(t, NewService(Params{}, SendersParams{Destinations: []string{"ftp://example.com", "blah"}}))
	})

	t.Run("mixed destinations", func(t *testing.T) {
		svc := NewService(Params{}, SendersParams{
			Destinations: []string{"mailto:dev@example.com", "https://hooks.example.com/x", "ftp://bad"},
			From:         "jobtail@example.com",
		})
		require.NotNil(t, svc)
		assert.Len(t, svc.notifiers, 2)
		assert.Equal(t, []string{"mailto:dev@example.com?from=jobtail%40example.com", "https://hooks.example.com/x"},
			svc.destinations)
	})

	t.Run("from in destination kept", func(t *testing.T) {
		svc := NewService(Params{}, SendersParams{
			Destinations: []string{"mailto:dev@example.com?from=me@example.com"},
			From:         "jobtail@example.com",
		})
		require.NotNil(t, svc)
		assert.Equal(t, []string{"mailto:dev@example.com?from=me@example.com"}, svc.destinations)
		assert.Len(t, svc.notifiers, 1)
	})
}

func TestMakeErrorHTMLDefault(t *testing.T) {
	svc := NewService(Params{HostName: "box1"}, SendersParams{Destinations: []string{"mailto:test@example.com"}})
	require.NotNil(t, svc)
	res, err := svc.MakeErrorHTML(testJob, "some log <b>")
	require.NoError(t, err)
	assert.Contains(t, res, `<li>Job: <span class="bold">job-42</span></li>`)
	assert.Contains(t, res, `<li>Package: <span class="bold">build-app</span></li>`)
	assert.Contains(t, res, `<li>Version: <span class="bold">1.2.0</span></li>`)
	assert.Contains(t, res, `<li>Status: <span class="bold">failed</span></li>`)
	assert.Contains(t, res, "Dashboard job failed")
	assert.Contains(t, res, "box1")
	assert.Contains(t, res, "some log &lt;b&gt;")
}

func TestMakeErrorHTMLCustom(t *testing.T) {
	svc := NewService(Params{ErrorTemplate: "testfiles/err.tmpl"}, SendersParams{Destinations: []string{"mailto:test@example.com"}})
	require.NotNil(t, svc)
	res, err := svc.MakeErrorHTML(testJob, "some log")
	require.NoError(t, err)
	assert.Contains(t, res, "Job failed: build-app@1.2.0")
	assert.Contains(t, res, "ID: job-42")
	assert.Contains(t, res, "some log")

	svc = NewService(Params{ErrorTemplate: "testfiles/err-bad.tmpl"}, SendersParams{Destinations: []string{"mailto:test@example.com"}})
	require.NotNil(t, svc)
	res, err = svc.MakeErrorHTML(testJob, "some log")
	require.NoError(t, err)
	assert.Contains(t, res, `<li>Package: <span class="bold">build-app</span></li>`)

	svc = NewService(Params{ErrorTemplate: "testfiles/missing.tmpl"}, SendersParams{Destinations: []string{"mailto:test@example.com"}})
	require.NotNil(t, svc)
	res, err = svc.MakeErrorHTML(testJob, "some log")
	require.NoError(t, err)
	assert.Contains(t, res, "Dashboard job failed")
}

func TestMakeCompletionHTML(t *testing.T) {
	done := Job{ID: "job-42", Name: "build-app", Version: "1.2.0", Status: job.StatusSuccess}
	svc := NewService(Params{}, SendersParams{Destinations: []string{"mailto:test@example.com"}})
	require.NotNil(t, svc)
	res, err := svc.MakeCompletionHTML(done)
	require.NoError(t, err)
	assert.Contains(t, res, `<li>Status: <span class="bold">success</span></li>`)
	assert.Contains(t, res, "Dashboard job completed")

	svc = NewService(Params{CompletionTemplate: "testfiles/completed.tmpl"}, SendersParams{Destinations: []string{"mailto:test@example.com"}})
	require.NotNil(t, svc)
	res, err = svc.MakeCompletionHTML(done)
	require.NoError(t, err)
	assert.Contains(t, res, "Job done: build-app@1.2.0")

	svc = NewService(Params{CompletionTemplate: "testfiles/completed-bad.tmpl"}, SendersParams{Destinations: []string{"mailto:test@example.com"}})
	require.NotNil(t, svc)
	res, err = svc.MakeCompletionHTML(done)
	require.NoError(t, err)
	assert.Contains(t, res, "Dashboard job completed")
}

func TestService_IsOnCompletionAndError(t *testing.T) {
	dests := SendersParams{Destinations: []string{"mailto:test@example.com"}}
	svc := NewService(Params{EnabledCompletion: true}, dests)
	require.NotNil(t, svc)
	assert.True(t, svc.IsOnCompletion())
	assert.False(t, svc.IsOnError())

	svc = NewService(Params{EnabledError: true}, dests)
	require.NotNil(t, svc)
	assert.False(t, svc.IsOnCompletion())
	assert.True(t, svc.IsOnError())
}

func TestService_Send(t *testing.T) {
	tests := []struct {
		name           string
		subj           string
		text           string
		destination    string
		expected       string
		mockSendErr    error
		expectedErrMsg string
	}{
		{
			name:        "successful send",
			subj:        "Test Subject",
			text:        "Test Text",
			destination: "mailto:to@example.com,to2@example.com?from=from@example.com",
			expected:    "mailto:to@example.com,to2@example.com?from=from@example.com&subject=Test+Subject",
		},
		{
			name:        "no query",
			subj:        "failed build-app",
			text:        "text",
			destination: "mailto:to@example.com",
			expected:    "mailto:to@example.com?subject=failed+build-app",
		},
		{
			name:        "subject in destination kept",
			subj:        "Other",
			text:        "text",
			destination: "mailto:to@example.com?subject=Fixed",
			expected:    "mailto:to@example.com?subject=Fixed",
		},
		{
			name:           "send error",
			subj:           "Problem Subject",
			text:           "Problem Text",
			destination:    "mailto:to@example.com?from=from@example.com",
			expected:       "mailto:to@example.com?from=from@example.com&subject=Problem+Subject",
			mockSendErr:    errors.New("mock error"),
			expectedErrMsg: "mock error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailtoNotifier := &mocks.NotifierMock{
				SendFunc: func(_ context.Context, dest, text string) error {
					assert.Equal(t, tt.text, text)
					assert.Equal(t, tt.expected, dest)
					return tt.mockSendErr
				},
				SchemaFunc: func() string { return "mailto" },
				StringFunc: func() string { return "mock email" },
			}

			s := Service{
				notifiers:    []notify.Notifier{mailtoNotifier},
				destinations: []string{tt.destination},
			}

			err := s.Send(context.Background(), tt.subj, tt.text)
			assert.Len(t, mailtoNotifier.SendCalls(), 1)
			if tt.expectedErrMsg == "" {
				require.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.expectedErrMsg)
			}
		})
	}
}

func TestService_SendWebhook(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	svc := NewService(Params{}, SendersParams{Destinations: []string{ts.URL + "/hook"}})
	require.NotNil(t, svc)
	msg, err := svc.MakeCompletionHTML(testJob)
	require.NoError(t, err)
	require.NoError(t, svc.Send(context.Background(), "completed", msg))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "build-app")
}
