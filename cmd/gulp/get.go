package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ligustah/gulp/internal/config"
	"github.com/ligustah/gulp/internal/downloader"
	gulperrors "github.com/ligustah/gulp/internal/errors"
	"github.com/ligustah/gulp/internal/history"
	gulphttp "github.com/ligustah/gulp/internal/http"
	"github.com/ligustah/gulp/internal/logging"
	"github.com/ligustah/gulp/internal/mirror"
	"github.com/ligustah/gulp/internal/progress"
	"github.com/ligustah/gulp/internal/target"
)

// runGet downloads a single URL into a local directory.
func runGet(args []string) int {
	out := newPrinter(stdout, stderr)

	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var directory, filename, name string
	fs.StringVar(&directory, "directory", "", "Destination directory (default \".\")")
	fs.StringVar(&directory, "d", "", "Shorthand for -directory")
	fs.StringVar(&filename, "filename", "", "Filename override (default: last URL path segment)")
	fs.StringVar(&filename, "f", "", "Shorthand for -filename")
	fs.StringVar(&name, "name", "", "Display name recorded in history and mirror metadata")
	fs.StringVar(&name, "n", "", "Shorthand for -name")
	configPath := fs.String("config", "", "YAML config file")
	quiet := fs.Bool("quiet", false, "Disable progress output")
	limitRate := fs.String("limit-rate", "", "Bandwidth cap, e.g. 5MB (default unlimited)")
	mirrorURL := fs.String("mirror", "", "Bucket URL to copy the finished file into, e.g. s3://bucket")
	historyPath := fs.String("history", "", "History database path")
	noHistory := fs.Bool("no-history", false, "Do not record the download")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (default warn)")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: gulp get [options] <url>

Download a URL to a local file, showing progress while it streams.

Options:`)
		fs.PrintDefaults()
	}

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}
	if len(positional) != 1 {
		out.Errorf("exactly one URL is required")
		fs.Usage()
		return ExitInvalidArgs
	}
	rawURL := positional[0]

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			out.Errorf("%v", err)
			return ExitInvalidArgs
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		out.Errorf("%v", err)
		return ExitInvalidArgs
	}

	var limit int64
	if *limitRate != "" {
		limit, err = progress.ParseBytes(*limitRate)
		if err != nil {
			out.Errorf("invalid limit rate: %v", err)
			return ExitInvalidArgs
		}
	}
	cfg = cfg.Merge(config.Config{
		Directory: directory,
		Quiet:     *quiet,
		LimitRate: limit,
		Mirror:    *mirrorURL,
		History:   *historyPath,
		NoHistory: *noHistory,
		LogLevel:  *logLevel,
	})
	if err := cfg.Validate(); err != nil {
		out.Errorf("%v", err)
		return ExitInvalidArgs
	}

	log, err := logging.New(cfg.LogLevel, stderr)
	if err != nil {
		out.Errorf("%v", err)
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(stderr, "\n[gulp] Received interrupt, stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	req := target.Request{URL: rawURL, Directory: cfg.Directory, Filename: filename, Name: name}
	dst, err := target.NewResolver(nil).Resolve(req)
	if err != nil {
		out.Errorf("%v", err)
		return exitCode(err)
	}

	label := name
	if label == "" {
		label = filepath.Base(dst.Path)
	}

	var rep *progress.Reporter
	d := downloader.New(downloader.Options{
		Client: gulphttp.NewClient(httpOptions(cfg)),
		Observe: func(total int64) downloader.Observer {
			rep = progress.New(total, progress.Options{
				Output:   stderr,
				Label:    label,
				Disabled: cfg.Quiet,
			})
			return rep
		},
		LimitRate: cfg.LimitRate,
		Logger:    &log,
	})

	res, err := d.Download(ctx, rawURL, dst)
	if err != nil {
		if rep != nil && rep.Drawn() {
			// The progress line was left unterminated.
			fmt.Fprintln(stderr)
		}
		out.Errorf("%v", err)
		if partialKept(err) {
			if info, statErr := os.Stat(dst.Path); statErr == nil && !info.IsDir() {
				out.Warnf("Partial file kept: %s (%s)", dst.Path, progress.FormatBytes(info.Size()))
			}
		}
		return exitCode(err)
	}
	res.Name = name

	out.Successf("Downloaded '%s' => '%s'", res.URL, res.Path)

	code := ExitSuccess
	rec := history.Record{
		ID:          res.ID,
		URL:         res.URL,
		Path:        res.Path,
		Name:        res.Name,
		Bytes:       res.Bytes,
		ContentType: res.ContentType,
		CompletedAt: time.Now(),
	}

	if cfg.Mirror != "" {
		key, err := publish(ctx, cfg.Mirror, res, &log)
		if err != nil {
			out.Errorf("mirror: %v", err)
			code = ExitMirrorError
		} else {
			out.Infof("Mirrored => %s (%s)", cfg.Mirror, key)
			rec.Mirror = cfg.Mirror + "#" + key
		}
	}

	if cfg.HistoryEnabled() {
		if err := record(cfg.History, rec); err != nil {
			log.Warn().Err(err).Str("history", cfg.History).Msg("could not record download")
			out.Warnf("History not updated: %v", err)
		}
	}

	return code
}

// httpOptions maps config onto client options.
func httpOptions(cfg config.Config) gulphttp.Options {
	ua := cfg.HTTP.UserAgent
	if ua == config.Default().HTTP.UserAgent {
		ua += "/" + version
	}
	return gulphttp.Options{
		DialTimeout:           cfg.HTTP.DialTimeout,
		TLSHandshakeTimeout:   cfg.HTTP.TLSTimeout,
		ResponseHeaderTimeout: cfg.HTTP.HeaderTimeout,
		UserAgent:             ua,
	}
}

func publish(ctx context.Context, bucketURL string, res *downloader.Result, log *zerolog.Logger) (string, error) {
	m, err := mirror.Open(ctx, bucketURL, mirror.Options{Logger: log})
	if err != nil {
		return "", err
	}
	defer m.Close()

	obj, err := m.Publish(ctx, res.Path, map[string]string{
		"source-url":  res.URL,
		"download-id": res.ID.String(),
		"name":        res.Name,
	})
	if err != nil {
		return "", err
	}
	return obj.Key, nil
}

func record(path string, rec history.Record) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Add(rec)
}

// exitCode maps a classified error to the process exit code.
func exitCode(err error) int {
	switch gulperrors.KindOf(err) {
	case gulperrors.KindInvalidInput:
		return ExitInvalidArgs
	case gulperrors.KindNetwork:
		return ExitNetworkError
	case gulperrors.KindHTTPStatus:
		return ExitHTTPStatus
	case gulperrors.KindFilesystem:
		return ExitFilesystemError
	case gulperrors.KindCanceled:
		return ExitCanceled
	default:
		return ExitGeneralError
	}
}

// partialKept reports whether err can leave a partially written file behind.
func partialKept(err error) bool {
	switch gulperrors.KindOf(err) {
	case gulperrors.KindNetwork, gulperrors.KindFilesystem, gulperrors.KindCanceled:
		return true
	}
	return false
}

// parseInterspersed parses fs allowing flags after positional arguments.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}
