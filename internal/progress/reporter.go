package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"
)

// Mode selects how progress is rendered. It is fixed when the Reporter is
// created.
type Mode int

const (
	// Bounded renders a bar with percentage and ETA; the total is known.
	Bounded Mode = iota
	// Unbounded renders a spinner and a byte counter; the total is unknown.
	Unbounded
)

func (m Mode) String() string {
	if m == Bounded {
		return "bounded"
	}
	return "unbounded"
}

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// Label is printed before the bar, usually the file name.
	Label string

	// RefreshRate is the maximum number of redraws per second.
	// Default: 10
	RefreshRate float64

	// Width is the bar width in cells.
	// Default: 30
	Width int

	// Disabled keeps counting but never renders.
	Disabled bool

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// Snapshot is a point-in-time view of a Reporter.
type Snapshot struct {
	Mode        Mode
	Transferred int64
	Total       int64 // -1 in Unbounded mode
	Elapsed     time.Duration
	Throughput  float64 // bytes per second, smoothed
	ETA         time.Duration
	Done        bool
}

// Percent returns the completed fraction in [0,1]. ok is false in Unbounded
// mode, which has no percentage.
func (s Snapshot) Percent() (p float64, ok bool) {
	if s.Mode != Bounded {
		return 0, false
	}
	return fraction(s.Transferred, s.Total), true
}

const (
	sampleInterval = 250 * time.Millisecond
	smoothing      = 0.3
)

var doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

// Reporter renders progress of a single transfer. It is driven from the
// goroutine doing the transfer and is not safe for concurrent use.
type Reporter struct {
	opts Options
	mode Mode

	total       int64
	transferred int64
	startTime   time.Time

	lastSample time.Time
	lastBytes  int64
	speed      float64

	done    bool
	drawn   bool
	frame   int
	lastLen int

	bar     bprogress.Model
	spin    spinner.Spinner
	limiter *rate.Limiter
}

// New creates a reporter for a transfer of total bytes. A negative total
// means the size is unknown and selects Unbounded mode.
func New(total int64, opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = 10
	}
	if opts.Width <= 0 {
		opts.Width = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	mode := Bounded
	if total < 0 {
		mode = Unbounded
		total = -1
	}

	now := opts.Now()
	return &Reporter{
		opts:       opts,
		mode:       mode,
		total:      total,
		startTime:  now,
		lastSample: now,
		bar: bprogress.New(
			bprogress.WithDefaultGradient(),
			bprogress.WithWidth(opts.Width),
			bprogress.WithoutPercentage(),
		),
		spin:    spinner.Dot,
		limiter: rate.NewLimiter(rate.Limit(opts.RefreshRate), 1),
	}
}

// Discard returns a reporter that tracks progress without rendering.
func Discard(total int64) *Reporter {
	return New(total, Options{Disabled: true, Output: io.Discard})
}

// Mode returns the rendering mode chosen at construction.
func (r *Reporter) Mode() Mode {
	return r.mode
}

// Advance records n more transferred bytes. It is a no-op after Finish.
func (r *Reporter) Advance(n int64) {
	if r.done || n <= 0 {
		return
	}
	r.transferred += n

	now := r.opts.Now()
	r.sample(now)
	if r.limiter.AllowN(now, 1) {
		r.render(now)
	}
}

// Drawn reports whether anything has been written to the output.
func (r *Reporter) Drawn() bool {
	return r.drawn
}

// Finish renders the final state and stops further updates.
func (r *Reporter) Finish() {
	if r.done {
		return
	}
	now := r.opts.Now()
	r.sample(now)
	r.done = true
	r.render(now)
}

// Snapshot returns the current state.
func (r *Reporter) Snapshot() Snapshot {
	return r.snapshot(r.opts.Now())
}

func (r *Reporter) snapshot(now time.Time) Snapshot {
	s := Snapshot{
		Mode:        r.mode,
		Transferred: r.transferred,
		Total:       r.total,
		Elapsed:     now.Sub(r.startTime),
		Throughput:  r.throughput(now),
		Done:        r.done,
	}
	if r.mode == Bounded && s.Throughput > 0 {
		remaining := r.total - r.transferred
		if remaining < 0 {
			remaining = 0
		}
		s.ETA = time.Duration(float64(remaining) / s.Throughput * float64(time.Second))
	}
	return s
}

// sample folds the rate since the last sample into the smoothed speed.
func (r *Reporter) sample(now time.Time) {
	dt := now.Sub(r.lastSample)
	if dt < sampleInterval && !(r.done || r.speed == 0) {
		return
	}
	if dt <= 0 {
		return
	}
	inst := float64(r.transferred-r.lastBytes) / dt.Seconds()
	if r.speed == 0 {
		r.speed = inst
	} else {
		r.speed = smoothing*inst + (1-smoothing)*r.speed
	}
	r.lastSample = now
	r.lastBytes = r.transferred
}

func (r *Reporter) throughput(now time.Time) float64 {
	if r.speed > 0 {
		return r.speed
	}
	if elapsed := now.Sub(r.startTime).Seconds(); elapsed > 0 {
		return float64(r.transferred) / elapsed
	}
	return 0
}

// render is best-effort: write errors are ignored.
func (r *Reporter) render(now time.Time) {
	if r.opts.Disabled {
		return
	}
	s := r.snapshot(now)

	var line string
	if r.mode == Bounded {
		line = r.boundedLine(s)
	} else {
		line = r.unboundedLine(s)
	}

	pad := ""
	if n := len(line); n < r.lastLen {
		pad = strings.Repeat(" ", r.lastLen-n)
	}
	r.lastLen = len(line)

	end := ""
	if s.Done {
		end = "\n"
	}
	_, _ = fmt.Fprintf(r.opts.Output, "\r%s%s%s", line, pad, end)
	r.drawn = true
}

func (r *Reporter) boundedLine(s Snapshot) string {
	p, _ := s.Percent()

	var b strings.Builder
	b.WriteString("[gulp] ")
	if r.opts.Label != "" {
		b.WriteString(r.opts.Label)
		b.WriteString(" ")
	}
	b.WriteString(r.bar.ViewAs(p))
	fmt.Fprintf(&b, " %5.1f%% | %s / %s | %s/s",
		p*100,
		formatBytes(s.Transferred),
		formatBytes(s.Total),
		formatBytes(int64(s.Throughput)),
	)
	switch {
	case s.Done:
		fmt.Fprintf(&b, " | %s in %s", doneStyle.Render("Complete"), formatDuration(s.Elapsed))
	case s.Throughput > 0:
		fmt.Fprintf(&b, " | ETA: %s", formatDuration(s.ETA))
	default:
		b.WriteString(" | ETA: calculating...")
	}
	return b.String()
}

func (r *Reporter) unboundedLine(s Snapshot) string {
	var b strings.Builder
	b.WriteString("[gulp] ")
	if s.Done {
		b.WriteString(doneStyle.Render("✓"))
	} else {
		b.WriteString(r.spin.Frames[r.frame%len(r.spin.Frames)])
		r.frame++
	}
	b.WriteString(" ")
	if r.opts.Label != "" {
		b.WriteString(r.opts.Label)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "%s | %s/s | %s", formatBytes(s.Transferred), formatBytes(int64(s.Throughput)), formatDuration(s.Elapsed))
	if s.Done {
		fmt.Fprintf(&b, " | %s", doneStyle.Render("Complete"))
	}
	return b.String()
}

// fraction returns done/total clamped to [0,1]. An empty transfer counts as
// complete.
func fraction(done, total int64) float64 {
	if total <= 0 {
		return 1
	}
	f := float64(done) / float64(total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
