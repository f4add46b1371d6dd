package media

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/example/swimlens/internal/geometry"
)

const fallbackFPS = 30

// Clip is an OpenCV backed video. Decoding happens on Advance and Seek; the
// last decoded frame is kept as an image for painting.
//
// Audio is not decoded, so the mute flag is state only.
type Clip struct {
	mu       sync.Mutex
	src      Source
	cap      *gocv.VideoCapture
	mat      gocv.Mat
	log      zerolog.Logger
	fps      float64
	size     geometry.Size
	duration time.Duration

	current time.Duration
	decoded time.Duration
	paused  bool
	ended   bool
	rate    float64
	muted   bool
	frame   image.Image
}

// ClipOption configures Open.
type ClipOption func(*Clip)

// WithClipLogger sets the clip's logger.
func WithClipLogger(l zerolog.Logger) ClipOption {
	return func(c *Clip) { c.log = l }
}

// Open starts decoding src and reads its first frame.
func Open(src Source, opts ...ClipOption) (*Clip, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	switch src.Kind {
	case KindCamera:
		vc, err = gocv.VideoCaptureDevice(src.Device)
	default:
		vc, err = gocv.VideoCaptureFile(src.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("open %s: %w", src, ErrNotOpened)
	}
	c := &Clip{
		src:    src,
		cap:    vc,
		mat:    gocv.NewMat(),
		log:    zerolog.Nop(),
		paused: true,
		rate:   1,
	}
	for _, o := range opts {
		o(c)
	}
	c.fps = vc.Get(gocv.VideoCaptureFPS)
	if c.fps <= 0 || c.fps > 1000 {
		c.fps = fallbackFPS
	}
	c.size = geometry.Size{W: vc.Get(gocv.VideoCaptureFrameWidth), H: vc.Get(gocv.VideoCaptureFrameHeight)}
	if n := vc.Get(gocv.VideoCaptureFrameCount); n > 0 && !src.Live() {
		c.duration = time.Duration(n / c.fps * float64(time.Second))
	}
	if err := c.readLocked(); err != nil {
		c.Close()
		return nil, fmt.Errorf("read first frame of %s: %w", src, err)
	}
	c.decoded = c.frameInterval()
	c.log.Debug().Str("source", src.String()).Float64("fps", c.fps).Float64("width", c.size.W).Float64("height", c.size.H).Dur("duration", c.duration).Msg("clip opened")
	return c, nil
}

// Source returns the descriptor the clip was opened from.
func (c *Clip) Source() Source { return c.src }

// FPS returns the container frame rate, or 30 when unknown.
func (c *Clip) FPS() float64 { return c.fps }

func (c *Clip) frameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.fps)
}

func (c *Clip) readLocked() error {
	if !c.cap.Read(&c.mat) || c.mat.Empty() {
		return ErrEndOfStream
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	c.frame = img
	if c.size.Empty() {
		b := img.Bounds()
		c.size = geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
	}
	return nil
}

func (c *Clip) CurrentTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Duration is zero for live sources.
func (c *Clip) Duration() time.Duration { return c.duration }

func (c *Clip) Size() geometry.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Seek repositions a file clip and decodes the frame at t. Live sources
// ignore seeks.
func (c *Clip) Seek(t time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.src.Live() {
		return nil
	}
	c.cap.Set(gocv.VideoCapturePosMsec, float64(t.Milliseconds()))
	c.current = t
	c.ended = false
	if err := c.readLocked(); err != nil {
		if err == ErrEndOfStream {
			c.ended = true
			return nil
		}
		return err
	}
	c.decoded = t + c.frameInterval()
	return nil
}

func (c *Clip) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return ErrNotOpened
	}
	c.paused = false
	return nil
}

func (c *Clip) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

func (c *Clip) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Clip) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

func (c *Clip) PlaybackRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

func (c *Clip) SetPlaybackRate(r float64) {
	c.mu.Lock()
	c.rate = r
	c.mu.Unlock()
}

func (c *Clip) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Clip) SetMuted(m bool) {
	c.mu.Lock()
	c.muted = m
	c.mu.Unlock()
}

// Advance decodes forward by wall*rate of media time. Live sources read a
// single frame per call.
func (c *Clip) Advance(wall time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused || c.ended {
		return nil
	}
	if c.src.Live() {
		c.current += wall
		if err := c.readLocked(); err != nil {
			c.ended = true
			c.paused = true
			return err
		}
		return nil
	}
	target := c.current + time.Duration(float64(wall)*c.rate)
	for c.decoded <= target {
		if err := c.readLocked(); err != nil {
			if err != ErrEndOfStream {
				return err
			}
			c.ended = true
			c.paused = true
			if c.duration == 0 || c.duration < c.current {
				c.duration = c.current
			}
			c.current = c.duration
			return nil
		}
		c.decoded += c.frameInterval()
	}
	c.current = target
	if c.duration > 0 && c.current >= c.duration {
		c.current = c.duration
		c.ended = true
		c.paused = true
	}
	return nil
}

func (c *Clip) Frame() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Close releases the capture.
func (c *Clip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return nil
	}
	_ = c.mat.Close()
	err := c.cap.Close()
	c.cap = nil
	return err
}
