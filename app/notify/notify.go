// Package notify sends job failure and completion messages to email and webhook destinations
package notify

//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"

	"github.com/umputun/jobtail/app/job"
)

// Notifier is a single delivery transport, email or webhook
type Notifier interface {
	notify.Notifier
}

// Service delivers html messages to all destinations
type Service struct {
	Params
	notifiers    []notify.Notifier
	destinations []string

	errTmpl  *template.Template
	doneTmpl *template.Template
}

// Params controls what is sent and how it rendered
type Params struct {
	EnabledError       bool
	EnabledCompletion  bool
	ErrorTemplate      string // optional file with custom error template
	CompletionTemplate string // optional file with custom completion template
	HostName           string
}

// SendersParams defines destinations and transport settings
type SendersParams struct {
	Destinations []string // mailto:a@example.com?from=b@example.com or http(s)://hook
	From         string   // default from for mailto destinations
	SMTP         notify.SMTPParams
	Timeout      time.Duration // webhook timeout
}

// Job is what rendered into the message
type Job struct {
	ID      string
	Name    string
	Version string
	Status  job.Status
}

// NewService makes notification service. Returns nil if no destinations set.
func NewService(p Params, sp SendersParams) *Service {
	if len(sp.Destinations) == 0 {
		return nil
	}

	res := &Service{Params: p}
	var hasEmail, hasWebhook bool
	for _, d := range sp.Destinations {
		d = strings.TrimSpace(d)
		switch {
		case strings.HasPrefix(d, "mailto:"):
			hasEmail = true
			res.destinations = append(res.destinations, withFrom(d, sp.From))
		case strings.HasPrefix(d, "http://"), strings.HasPrefix(d, "https://"):
			hasWebhook = true
			res.destinations = append(res.destinations, d)
		default:
			log.Printf("[WARN] unsupported notification destination %q, skipped", d)
		}
	}
	if len(res.destinations) == 0 {
		return nil
	}

	if hasEmail {
		smtp := sp.SMTP
		if smtp.ContentType == "" {
			smtp.ContentType = "text/html"
		}
		res.notifiers = append(res.notifiers, notify.NewEmail(smtp))
	}
	if hasWebhook {
		timeout := sp.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		res.notifiers = append(res.notifiers, notify.NewWebhook(notify.WebhookParams{
			Timeout: timeout,
			Headers: []string{"Content-Type:text/html"},
		}))
	}

	res.errTmpl = loadTemplate(p.ErrorTemplate, defaultErrorTemplate)
	res.doneTmpl = loadTemplate(p.CompletionTemplate, defaultCompletionTemplate)
	return res
}

// IsOnError status enabling on-error notification
func (s *Service) IsOnError() bool { return s.EnabledError }

// IsOnCompletion status enabling on-completion notification
func (s *Service) IsOnCompletion() bool { return s.EnabledCompletion }

// Send message to all destinations. Subject added to mailto destinations.
func (s *Service) Send(ctx context.Context, subj, text string) error {
	var errs []error
	for _, d := range s.destinations {
		dest := d
		if strings.HasPrefix(d, "mailto:") {
			dest = withQuery(d, "subject", subj)
		}
		if err := notify.Send(ctx, s.notifiers, dest, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MakeErrorHTML creates html message for failed job
func (s *Service) MakeErrorHTML(j Job, errorLog string) (string, error) {
	return s.render(s.errTmpl, j, errorLog)
}

// MakeCompletionHTML creates html message for completed job
func (s *Service) MakeCompletionHTML(j Job) (string, error) {
	return s.render(s.doneTmpl, j, "")
}

func (s *Service) render(tmpl *template.Template, j Job, errorLog string) (string, error) {
	if tmpl == nil {
		return "", errors.New("no message template")
	}
	data := struct {
		Job
		TS    time.Time
		Error string
		Host  string
	}{
		Job:   j,
		TS:    time.Now(),
		Error: errorLog,
		Host:  s.HostName,
	}

	buf := bytes.Buffer{}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply template: %w", err)
	}
	return buf.String(), nil
}

// loadTemplate reads custom template from file, falls back to default on any error
func loadTemplate(file, def string) *template.Template {
	if file == "" {
		return template.Must(template.New("msg").Parse(def))
	}
	data, err := os.ReadFile(file) //nolint:gosec // user-supplied template
	if err != nil {
		log.Printf("[WARN] can't read template %s, default used: %v", file, err)
		return template.Must(template.New("msg").Parse(def))
	}
	t, err := template.New("msg").Parse(string(data))
	if err != nil {
		log.Printf("[WARN] can't parse template %s, default used: %v", file, err)
		return template.Must(template.New("msg").Parse(def))
	}
	return t
}

func withFrom(dest, from string) string {
	if from == "" {
		return dest
	}
	return withQuery(dest, "from", from)
}

// withQuery adds query param to mailto destination, existing value kept
func withQuery(dest, key, val string) string {
	base, rawQuery, _ := strings.Cut(dest, "?")
	if q, err := url.ParseQuery(rawQuery); err == nil && q.Has(key) {
		return dest
	}
	param := key + "=" + url.QueryEscape(val)
	if rawQuery == "" {
		return base + "?" + param
	}
	return base + "?" + rawQuery + "&" + param
}
