// Package export records the composited video and its overlays to a file,
// either a single channel or the side by side comparison.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/example/swimlens/internal/media"
)

var (
	// ErrNoSupportedFormat means no recorder codec is available.
	ErrNoSupportedFormat = errors.New("no supported video format")
	// ErrCancelled is returned by Wait after Cancel.
	ErrCancelled = errors.New("export cancelled")
	// ErrBusy is returned by Start while another export runs.
	ErrBusy = errors.New("export already running")
)

// Status is the pipeline state.
type Status int

const (
	StatusIdle Status = iota
	StatusPreparing
	StatusEncoding
	StatusComplete
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPreparing:
		return "preparing"
	case StatusEncoding:
		return "encoding"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	}
	return "idle"
}

// Active reports whether an export is in flight.
func (s Status) Active() bool { return s == StatusPreparing || s == StatusEncoding }

// Failure is a user facing export error.
type Failure struct {
	Summary string
	Detail  string
	err     error
}

func newFailure(summary string, err error) *Failure {
	f := &Failure{Summary: summary, err: err}
	if err != nil {
		f.Detail = err.Error()
	}
	return f
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return f.Summary
	}
	return f.Summary + ": " + f.Detail
}

func (f *Failure) Unwrap() error { return f.err }

// Progress is published to the listener on every state change and frame.
type Progress struct {
	Status  Status
	Percent float64
	Message string
	// Path is set once the file is in place.
	Path string
	Err  *Failure
}

// Format selects the output container.
type Format string

const (
	FormatAuto Format = "auto"
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

// ParseFormat accepts auto, mp4 or webm.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatMP4, FormatWebM:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Quality selects the transcode bitrate.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality accepts low, medium or high.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return QualityMedium, nil
	case QualityLow, QualityMedium, QualityHigh:
		return q, nil
	}
	return "", fmt.Errorf("unknown export quality %q", s)
}

// Bitrate returns the target bits per second.
func (q Quality) Bitrate() int64 {
	switch q {
	case QualityLow:
		return 2_500_000
	case QualityHigh:
		return 10_000_000
	}
	return 5_000_000
}

// Options controls a single export run.
type Options struct {
	Format  Format
	Quality Quality
	// PlaybackRate is applied to the videos while recording.
	PlaybackRate float64
	FPS          float64
	// Gap is the spacing between comparison panels in pixels.
	Gap                int
	IncludeAnnotations bool
	// Transcode converts WebM recordings to MP4 when MP4 was requested.
	Transcode bool
	// Single records only the primary channel even when two are loaded.
	Single bool
	// MaxDuration stops recording after this much media time. Live sources
	// need it to terminate.
	MaxDuration time.Duration
	// Dir is where the finished file is written.
	Dir string
	// AppName prefixes the output filename.
	AppName string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Format:             FormatAuto,
		Quality:            QualityMedium,
		PlaybackRate:       16,
		FPS:                30,
		Gap:                16,
		IncludeAnnotations: true,
		Transcode:          true,
		Dir:                ".",
		AppName:            "swimlens",
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Format == "" {
		o.Format = d.Format
	}
	if o.Quality == "" {
		o.Quality = d.Quality
	}
	if o.PlaybackRate <= 0 {
		o.PlaybackRate = d.PlaybackRate
	}
	if o.FPS <= 0 {
		o.FPS = d.FPS
	}
	if o.Gap < 0 {
		o.Gap = 0
	}
	if o.Dir == "" {
		o.Dir = d.Dir
	}
	if o.AppName == "" {
		o.AppName = d.AppName
	}
	return o
}

// FileName returns the download name for an export finished at t.
func FileName(app string, t time.Time, ext string) string {
	return fmt.Sprintf("%s-video-%d.%s", app, t.UnixMilli(), ext)
}

// Recorder encodes frames into a file.
type Recorder interface {
	Supported(c media.Codec) bool
	Start(path string, c media.Codec, fps float64, width, height int) error
	WriteFrame(img image.Image) error
	Stop() error
}

// Transcoder converts a finished recording to MP4.
type Transcoder interface {
	Available() bool
	Transcode(ctx context.Context, in, out string, bitrate int64, total time.Duration) error
}

// Notifier is told about finished and failed exports.
type Notifier interface {
	ExportComplete(path string, preview image.Image)
	ExportFailed(summary string)
}
