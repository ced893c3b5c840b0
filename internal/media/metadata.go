package media

import (
	"context"
	"strconv"
	"time"
)

// Metadata captures the technical attributes extraction reports for a file.
// All fields are optional; absent values stay zero.
type Metadata struct {
	Make            string
	Model           string
	Width           int
	Height          int
	FrameRate       float64
	DurationSeconds float64
	Codec           string
	RecordedAt      time.Time
}

// Resolution returns "WxH" or empty when dimensions are unknown.
func (m Metadata) Resolution() string {
	if m.Width <= 0 || m.Height <= 0 {
		return ""
	}
	return strconv.Itoa(m.Width) + "x" + strconv.Itoa(m.Height)
}

// Prober extracts technical metadata from a media file. Implementations are
// external collaborators (ffprobe, EXIF readers); the import pipeline treats
// them as black boxes and survives their failure per file.
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}

// ProbeWithTimeout runs the prober under a deadline so a stuck external tool
// cannot stall the caller.
func ProbeWithTimeout(ctx context.Context, prober Prober, path string, timeout time.Duration) (Metadata, error) {
	if prober == nil {
		return Metadata{}, nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return prober.Probe(ctx, path)
}

// NoopProber returns empty metadata for every file. Used when no extraction
// tool is configured and in tests.
type NoopProber struct{}

func (NoopProber) Probe(context.Context, string) (Metadata, error) {
	return Metadata{}, nil
}
