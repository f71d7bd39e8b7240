package downloader

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	gulperrors "github.com/ligustah/gulp/internal/errors"
	gulphttp "github.com/ligustah/gulp/internal/http"
	"github.com/ligustah/gulp/internal/progress"
	"github.com/ligustah/gulp/internal/target"
)

// chunkSize is the read buffer size for the body copy loop.
const chunkSize = 32 * 1024

// Observer receives transfer progress. Advance gets the length of each
// chunk written; Finish is called once, only after a complete transfer.
type Observer interface {
	Advance(n int64)
	Finish()
}

// ObserverFunc creates the Observer for a transfer once its total is known.
// total is -1 when the server did not advertise a size.
type ObserverFunc func(total int64) Observer

// Options configures the downloader.
type Options struct {
	// Client performs the GET. Default: a client with http.DefaultOptions.
	Client *gulphttp.Client

	// FS is where destination files are written. Default: the host
	// filesystem.
	FS billy.Filesystem

	// Observe creates the progress observer. Default: progress.Discard.
	Observe ObserverFunc

	// LimitRate caps the transfer at this many bytes per second.
	// Set to 0 to disable.
	LimitRate int64

	// Logger receives lifecycle events. Default: disabled.
	Logger *zerolog.Logger
}

// Result describes a completed download.
type Result struct {
	ID          uuid.UUID
	URL         string
	Path        string
	Name        string
	Bytes       int64
	Total       int64 // advertised size, -1 if unknown
	ContentType string
	Duration    time.Duration
}

// transferState is owned by the copy loop. The observer only sees byte
// counts passed by value.
type transferState struct {
	transferred int64
	total       int64
	started     time.Time
}

// Downloader streams HTTP responses to files.
type Downloader struct {
	client  *gulphttp.Client
	fs      billy.Filesystem
	observe ObserverFunc
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New creates a Downloader, applying defaults for zero options.
func New(opts Options) *Downloader {
	d := &Downloader{
		client:  opts.Client,
		fs:      opts.FS,
		observe: opts.Observe,
		log:     zerolog.Nop(),
	}
	if d.client == nil {
		d.client = gulphttp.NewClient(gulphttp.DefaultOptions())
	}
	if d.fs == nil {
		d.fs = target.OS()
	}
	if d.observe == nil {
		d.observe = func(total int64) Observer { return progress.Discard(total) }
	}
	if opts.Logger != nil {
		d.log = *opts.Logger
	}
	if opts.LimitRate > 0 {
		burst := int(opts.LimitRate)
		if burst < chunkSize {
			burst = chunkSize
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.LimitRate), burst)
	}
	return d
}

// Fetch resolves req against the downloader's filesystem and downloads it.
func (d *Downloader) Fetch(ctx context.Context, req target.Request) (*Result, error) {
	dst, err := target.NewResolver(d.fs).Resolve(req)
	if err != nil {
		return nil, err
	}
	res, err := d.Download(ctx, req.URL, dst)
	if err != nil {
		return nil, err
	}
	res.Name = req.Name
	return res, nil
}

// Download streams url into dst.Path, truncating any existing file.
//
// url must be an absolute http(s) URL; anything else is INVALID_INPUT.
// The destination file is only created once a 2xx response is in hand. If
// the transfer fails part-way, whatever was written stays on disk and the
// observer is not finished.
func (d *Downloader) Download(ctx context.Context, url string, dst target.Target) (*Result, error) {
	if _, err := target.ParseURL(url); err != nil {
		return nil, err
	}

	id := uuid.New()
	log := d.log.With().Str("download_id", id.String()).Str("url", url).Logger()

	log.Debug().Str("path", dst.Path).Msg("requesting")
	resp, err := d.client.Get(ctx, url)
	if err != nil {
		log.Debug().Err(err).Msg("request failed")
		return nil, err
	}
	defer resp.Body.Close()

	st := transferState{total: resp.ContentLength, started: time.Now()}
	log.Debug().Int("status", resp.StatusCode).Int64("total", st.total).Msg("response received")

	obs := d.observe(st.total)

	f, err := d.fs.OpenFile(dst.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, gulperrors.NewFilesystemError("create", dst.Path, err)
	}
	defer func() {
		if f != nil {
			f.Close()
		}
	}()

	if err := d.copy(ctx, url, dst.Path, f, resp.Body, obs, &st); err != nil {
		log.Warn().Err(err).Int64("bytes", st.transferred).Str("path", dst.Path).Msg("download aborted, partial file kept")
		return nil, err
	}

	if s, ok := f.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return nil, gulperrors.NewFilesystemError("sync", dst.Path, err)
		}
	}
	err = f.Close()
	f = nil
	if err != nil {
		return nil, gulperrors.NewFilesystemError("close", dst.Path, err)
	}

	obs.Finish()

	res := &Result{
		ID:          id,
		URL:         url,
		Path:        dst.Path,
		Bytes:       st.transferred,
		Total:       st.total,
		ContentType: resp.ContentType,
		Duration:    time.Since(st.started),
	}
	log.Info().Str("path", res.Path).Int64("bytes", res.Bytes).Dur("duration", res.Duration).Msg("download complete")
	return res, nil
}

// copy pumps body into w chunk by chunk. There is no partial-write recovery.
func (d *Downloader) copy(ctx context.Context, url, path string, w io.Writer, body io.Reader, obs Observer, st *transferState) error {
	buf := make([]byte, chunkSize)
	for {
		nr, rerr := body.Read(buf)
		if nr > 0 {
			if d.limiter != nil {
				if err := d.limiter.WaitN(ctx, nr); err != nil {
					return gulperrors.NewCanceledError("throttle", url, err)
				}
			}

			nw, werr := w.Write(buf[:nr])
			if werr == nil && nw != nr {
				werr = gulperrors.ErrShortWrite
			}
			if nw > 0 {
				st.transferred += int64(nw)
				obs.Advance(int64(nw))
			}
			if werr != nil {
				return gulperrors.NewFilesystemError("write", path, werr)
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if cerr := gulperrors.FromContext(ctx, "read", url); cerr != nil {
				return cerr
			}
			return gulperrors.NewNetworkError("read", url, rerr)
		}
	}

	if st.total >= 0 && st.transferred < st.total {
		return gulperrors.NewNetworkError("read", url, io.ErrUnexpectedEOF)
	}
	return nil
}
