package media

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// Codec pairs a container extension with an OpenCV FourCC.
type Codec struct {
	Container string
	FourCC    string
}

func (c Codec) String() string { return c.Container + "/" + c.FourCC }

// CodecPriority is the order formats are tried in when preparing an export.
var CodecPriority = []Codec{
	{Container: "mp4", FourCC: "avc1"},
	{Container: "mp4", FourCC: "mp4v"},
	{Container: "webm", FourCC: "VP90"},
	{Container: "webm", FourCC: "VP80"},
}

// Recorder writes frames to a video file with OpenCV.
type Recorder struct {
	mu     sync.Mutex
	w      *gocv.VideoWriter
	path   string
	log    zerolog.Logger
	frames int
	size   image.Point
}

// NewRecorder returns an idle recorder.
func NewRecorder(l zerolog.Logger) *Recorder {
	return &Recorder{log: l}
}

// Supported reports whether the local OpenCV build can encode codec. It
// opens a tiny writer in a scratch directory.
func (r *Recorder) Supported(c Codec) bool {
	dir, err := os.MkdirTemp("", "swimlens-probe-")
	if err != nil {
		return false
	}
	defer os.RemoveAll(dir)
	w, err := gocv.VideoWriterFile(filepath.Join(dir, "probe."+c.Container), c.FourCC, 30, 2, 2, true)
	if err != nil {
		return false
	}
	defer w.Close()
	return w.IsOpened()
}

// Start opens path for writing. Frames must match the given size.
func (r *Recorder) Start(path string, c Codec, fps float64, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w != nil {
		return fmt.Errorf("recorder already writing %s", r.path)
	}
	w, err := gocv.VideoWriterFile(path, c.FourCC, fps, width, height, true)
	if err != nil {
		return fmt.Errorf("open writer %s: %w", path, err)
	}
	if !w.IsOpened() {
		_ = w.Close()
		return fmt.Errorf("open writer %s (%s): %w", path, c, ErrNotOpened)
	}
	r.w = w
	r.path = path
	r.frames = 0
	r.size = image.Pt(width, height)
	r.log.Debug().Str("path", path).Str("codec", c.String()).Float64("fps", fps).Msg("recorder started")
	return nil
}

// WriteFrame encodes img, which must have the size given to Start.
func (r *Recorder) WriteFrame(img image.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return ErrNotOpened
	}
	if b := img.Bounds(); b.Dx() != r.size.X || b.Dy() != r.size.Y {
		return fmt.Errorf("frame size %dx%d does not match writer %dx%d", b.Dx(), b.Dy(), r.size.X, r.size.Y)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()
	if err := r.w.Write(mat); err != nil {
		return fmt.Errorf("write frame %d: %w", r.frames, err)
	}
	r.frames++
	return nil
}

// Stop closes the writer. It is safe to call when idle.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	err := r.w.Close()
	r.log.Debug().Str("path", r.path).Int("frames", r.frames).Msg("recorder stopped")
	r.w = nil
	return err
}
