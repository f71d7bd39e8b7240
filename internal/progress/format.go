package progress

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	kib = 1024
	mib = kib * 1024
	gib = mib * 1024
	tib = gib * 1024
)

// formatBytes formats bytes as a human-readable IEC string.
func formatBytes(b int64) string {
	unit := func(v float64, suffix string) string {
		if v >= 100 {
			return fmt.Sprintf("%.0f %s", v, suffix)
		}
		return fmt.Sprintf("%.1f %s", v, suffix)
	}

	switch {
	case b >= tib:
		return unit(float64(b)/tib, "TiB")
	case b >= gib:
		return unit(float64(b)/gib, "GiB")
	case b >= mib:
		return unit(float64(b)/mib, "MiB")
	case b >= kib:
		return unit(float64(b)/kib, "KiB")
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// FormatDuration is exported for use by other packages.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}

// byteUnits is ordered so longer suffixes match first.
var byteUnits = []struct {
	suffix     string
	multiplier float64
}{
	{"TIB", tib},
	{"GIB", gib},
	{"MIB", mib},
	{"KIB", kib},
	{"TB", 1e12},
	{"GB", 1e9},
	{"MB", 1e6},
	{"KB", 1e3},
	{"B", 1},
}

// ParseBytes parses a human-readable byte string such as "256MiB" or "5MB".
// IEC suffixes are powers of 1024, SI suffixes powers of 1000.
func ParseBytes(s string) (int64, error) {
	in := s
	s = strings.ToUpper(strings.TrimSpace(s))

	multiplier := 1.0
	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			multiplier = u.multiplier
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %q", in)
	}
	return int64(value * multiplier), nil
}
