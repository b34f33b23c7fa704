package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	gonotify "github.com/go-pkgz/notify"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobtail/app/batch"
	"github.com/umputun/jobtail/app/dashboard"
	"github.com/umputun/jobtail/app/job"
	"github.com/umputun/jobtail/app/journal"
	"github.com/umputun/jobtail/app/notify"
	"github.com/umputun/jobtail/app/service"
	"github.com/umputun/jobtail/app/tailer"
)

var opts struct {
	Dashboard   string        `short:"d" long:"dashboard" env:"JOBTAIL_DASHBOARD" default:"http://localhost:8080" description:"dashboard base url"`
	Timeout     time.Duration `long:"timeout" env:"JOBTAIL_TIMEOUT" default:"30s" description:"dashboard request timeout"`
	Name        string        `short:"n" long:"name" env:"JOBTAIL_NAME" description:"package name to start"`
	Version     string        `short:"v" long:"ver" env:"JOBTAIL_VER" description:"package version to start"`
	Batch       string        `short:"b" long:"batch" env:"JOBTAIL_BATCH" description:"yaml file with packages to start"`
	Follow      []string      `short:"f" long:"follow" description:"follow already started job by id"`
	Resume      bool          `short:"r" long:"resume" description:"follow unfinished jobs from journal"`
	Abort       string        `long:"abort" description:"abort job by id"`
	Status      string        `long:"status" description:"show job status by id"`
	History     int           `long:"history" description:"show last N submitted jobs"`
	Schema      bool          `long:"schema" description:"print batch file json schema"`
	Concurrency int           `short:"c" long:"concurrency" env:"JOBTAIL_CONCURRENCY" default:"4" description:"max parallel tails"`
	Prefix      bool          `short:"p" long:"prefix" env:"JOBTAIL_PREFIX" description:"prefix output lines with job id"`
	Quiet       bool          `short:"q" long:"quiet" env:"JOBTAIL_QUIET" description:"no diagnostic logs"`
	Dbg         bool          `long:"dbg" env:"JOBTAIL_DEBUG" description:"debug mode"`

	Tail struct {
		Interval   time.Duration `long:"interval" env:"INTERVAL" default:"1s" description:"delay between log polls"`
		BaseDelay  time.Duration `long:"base-delay" env:"BASE_DELAY" default:"500ms" description:"first retry delay"`
		MaxDelay   time.Duration `long:"max-delay" env:"MAX_DELAY" default:"30s" description:"max retry delay"`
		Factor     float64       `long:"factor" env:"FACTOR" default:"2" description:"backoff factor"`
		MaxRetries int           `long:"max-retries" env:"MAX_RETRIES" default:"5" description:"consecutive retries on transport errors, negative disables"`
		Jitter     bool          `long:"jitter" env:"JITTER" description:"add jitter to retry delay"`
		EndMarker  string        `long:"end-marker" env:"END_MARKER" description:"log line marking the end of job output"`
	} `group:"tail" namespace:"tail" env-namespace:"JOBTAIL_TAIL"`

	Journal struct {
		Path     string `long:"path" env:"PATH" default:"jobtail.db" description:"journal sqlite file"`
		Disabled bool   `long:"disabled" env:"DISABLED" description:"disable journal"`
	} `group:"journal" namespace:"journal" env-namespace:"JOBTAIL_JOURNAL"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"write job output to rotating file"`
		Stdout          bool   `long:"stdout" env:"STDOUT" description:"keep job output on stdout with log file enabled"`
		Filename        string `long:"filename" env:"FILENAME" default:"jobtail.log" description:"file to log job output"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max size of log file in megabytes"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of old log files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max age of old log files in days"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"compress old log files"`
	} `group:"log" namespace:"log" env-namespace:"JOBTAIL_LOG"`

	Notify struct {
		EnabledError       bool          `long:"enabled-error" env:"ENABLED_ERROR" description:"enable notifications on failed jobs"`
		EnabledCompletion  bool          `long:"enabled-complete" env:"ENABLED_COMPLETE" description:"enable notifications on completed jobs"`
		Dest               []string      `long:"dest" env:"DEST" env-delim:"," description:"notification destination(s), mailto: or http(s) url"`
		From               string        `long:"from" env:"FROM" description:"from email for mailto destinations"`
		SMTPHost           string        `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort           int           `long:"smtp-port" env:"SMTP_PORT" default:"25" description:"SMTP port"`
		SMTPUsername       string        `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword       string        `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS            bool          `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPTimeOut        time.Duration `long:"smtp-timeout" env:"SMTP_TIMEOUT" default:"10s" description:"SMTP TCP connection timeout"`
		Timeout            time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"notification send timeout"`
		MaxLogLines        int           `long:"max-log" env:"MAX_LOG" default:"100" description:"max number of log lines in error notification"`
		HostName           string        `long:"host" env:"HOSTNAME" description:"host name running jobtail"`
		ErrorTemplate      string        `long:"err-template" env:"ERR_TEMPLATE" description:"custom error message template file"`
		CompletionTemplate string        `long:"completion-template" env:"COMPLETION_TEMPLATE" description:"custom completion message template file"`
	} `group:"notify" namespace:"notify" env-namespace:"JOBTAIL_NOTIFY"`
}

var revision = "unknown"

func main() {
	fmt.Fprintf(os.Stderr, "jobtail %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogger(opts.Quiet, opts.Dbg)

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT, SIGINT and SIGTERM
	if err := run(ctx, os.Stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run dispatches cli mode. Reports go to stdout, job output to setupLogs writer
func run(ctx context.Context, stdout io.Writer) error {
	if opts.Schema {
		data, err := json.MarshalIndent(batch.Schema(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	}

	client := dashboard.New(dashboard.Params{BaseURL: opts.Dashboard, Timeout: opts.Timeout})

	jr, err := makeJournal()
	if err != nil {
		return err
	}
	if jr != nil {
		defer func() {
			if err := jr.Close(); err != nil {
				log.Printf("[WARN] can't close journal, %v", err)
			}
		}()
	}

	switch {
	case opts.Status != "":
		return showStatus(ctx, client, stdout)
	case opts.Abort != "":
		return abortJob(ctx, client, jr)
	case opts.History > 0:
		return showHistory(jr, stdout)
	}

	out := setupLogs()
	if closer, ok := out.(io.Closer); ok {
		defer closer.Close()
	}

	runner := &service.Runner{
		Submitter: client,
		Describer: client,
		Fetchers:  func() tailer.Fetcher { return client.LogFetcher(opts.Tail.EndMarker) },
		TailParams: tailer.Params{
			Interval:   opts.Tail.Interval,
			BaseDelay:  opts.Tail.BaseDelay,
			MaxDelay:   opts.Tail.MaxDelay,
			Factor:     opts.Tail.Factor,
			MaxRetries: opts.Tail.MaxRetries,
			Jitter:     opts.Tail.Jitter,
		},
		DeDup:             service.NewDeDup(true),
		Out:               out,
		EnableLogPrefix:   opts.Prefix,
		Concurrency:       opts.Concurrency,
		NotifyMaxLogLines: opts.Notify.MaxLogLines,
		NotifyTimeout:     opts.Notify.Timeout,
		HostName:          makeHostName(),
	}
	if jr != nil {
		runner.Journal = jr
	}
	if nt := makeNotifier(); nt != nil {
		runner.Notifier = nt
	}

	var res []service.Result
	switch {
	case opts.Resume:
		res, err = runner.Resume(ctx)
	case len(opts.Follow) > 0:
		res, err = runner.Follow(ctx, opts.Follow)
	case opts.Batch != "":
		reqs, e := batch.Load(opts.Batch)
		if e != nil {
			return e
		}
		res, err = runner.Run(ctx, reqs)
	case opts.Name != "" || opts.Version != "":
		res, err = runner.Run(ctx, []job.Request{{Name: opts.Name, Version: opts.Version}})
	default:
		return errors.New("nothing to do, set --name with --ver, --batch, --follow, --resume, --abort, --status or --history")
	}

	for _, r := range res {
		log.Printf("[INFO] job %s %s, status %s", r.Handle.ID(), r.Request, r.Status)
	}
	return err
}

func showStatus(ctx context.Context, client *dashboard.Client, stdout io.Writer) error {
	d, err := client.Describe(ctx, opts.Status)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", d.ID, d.Package, d.Version, d.Status)
	return err
}

func abortJob(ctx context.Context, client *dashboard.Client, jr *journal.SQLite) error {
	if err := client.Abort(ctx, opts.Abort); err != nil {
		return err
	}
	if jr == nil {
		return nil
	}
	if err := jr.SetStatus(opts.Abort, job.StatusAborted, time.Now()); err != nil && !errors.Is(err, journal.ErrNotFound) {
		log.Printf("[WARN] can't update journal, %v", err)
	}
	return nil
}

func showHistory(jr *journal.SQLite, stdout io.Writer) error {
	if jr == nil {
		return errors.New("can't show history without journal")
	}
	entries, err := jr.List(opts.History)
	if err != nil {
		return err
	}
	for _, e := range entries {
		finished := "-"
		if !e.FinishedAt.IsZero() {
			finished = e.FinishedAt.Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Version, e.Status,
			e.SubmittedAt.Format(time.RFC3339), finished); err != nil {
			return err
		}
	}
	return nil
}

func makeJournal() (*journal.SQLite, error) {
	if opts.Journal.Disabled || opts.Journal.Path == "" {
		return nil, nil
	}
	jr, err := journal.NewSQLite(opts.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("can't open journal: %w", err)
	}
	return jr, nil
}

func makeNotifier() *notify.Service {
	if !opts.Notify.EnabledError && !opts.Notify.EnabledCompletion {
		return nil
	}

	if opts.Notify.From == "" {
		opts.Notify.From = "jobtail@" + makeHostName()
	}

	return notify.NewService(
		notify.Params{
			EnabledError:       opts.Notify.EnabledError,
			EnabledCompletion:  opts.Notify.EnabledCompletion,
			ErrorTemplate:      opts.Notify.ErrorTemplate,
			CompletionTemplate: opts.Notify.CompletionTemplate,
			HostName:           makeHostName(),
		},
		notify.SendersParams{
			Destinations: opts.Notify.Dest,
			From:         opts.Notify.From,
			Timeout:      opts.Notify.Timeout,
			SMTP: gonotify.SMTPParams{
				Host:     opts.Notify.SMTPHost,
				Port:     opts.Notify.SMTPPort,
				TLS:      opts.Notify.SMTPTLS,
				Username: opts.Notify.SMTPUsername,
				Password: opts.Notify.SMTPPassword,
				TimeOut:  opts.Notify.SMTPTimeOut,
			},
		},
	)
}

func makeHostName() string {
	if opts.Notify.HostName != "" {
		return opts.Notify.HostName
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// setupLogs returns writer for job output
func setupLogs() io.Writer {
	if !opts.Log.Enabled {
		return os.Stdout
	}

	lj := &lumberjack.Logger{
		Filename:   opts.Log.Filename,
		MaxSize:    opts.Log.MaxSize,
		MaxBackups: opts.Log.MaxBackups,
		MaxAge:     opts.Log.MaxAge,
		Compress:   opts.Log.EnabledCompress,
	}
	if opts.Log.Stdout {
		return io.MultiWriter(os.Stdout, lj)
	}
	return lj
}

func setupLogger(quiet, dbg bool) {
	if quiet {
		log.Setup(log.Out(io.Discard), log.Err(io.Discard))
		return
	}

	if dbg {
		log.Setup(log.Debug, log.Msec, log.LevelBraces, log.CallerFunc, log.CallerPkg, log.CallerFile,
			log.Out(os.Stderr), log.Err(os.Stderr))
		return
	}
	log.Setup(log.Msec, log.LevelBraces, log.Out(os.Stderr), log.Err(os.Stderr))
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Fprintln(os.Stderr, string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] %s received, stopping", sig)
			cancel()
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
