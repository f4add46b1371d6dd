// Package playbacktest provides an in-memory video for tests.
package playbacktest

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/example/swimlens/internal/geometry"
)

// Video is a synthetic playback.Video that paints a solid frame and keeps
// time in memory.
type Video struct {
	mu       sync.Mutex
	size     geometry.Size
	duration time.Duration
	current  time.Duration
	paused   bool
	rate     float64
	muted    bool
	fill     color.RGBA

	// PlayErr is returned by Play when set.
	PlayErr error
	// Seeks records every Seek target.
	Seeks []time.Duration
}

// New returns a paused video of the given size and duration.
func New(w, h int, d time.Duration) *Video {
	return &Video{
		size:     geometry.Size{W: float64(w), H: float64(h)},
		duration: d,
		paused:   true,
		rate:     1,
		fill:     color.RGBA{0x20, 0x20, 0x20, 0xff},
	}
}

// WithFill sets the frame colour.
func (v *Video) WithFill(c color.RGBA) *Video {
	v.fill = c
	return v
}

func (v *Video) CurrentTime() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *Video) Duration() time.Duration { return v.duration }
func (v *Video) Size() geometry.Size     { return v.size }

func (v *Video) Seek(t time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t < 0 {
		return errors.New("negative seek")
	}
	v.Seeks = append(v.Seeks, t)
	v.current = min(t, v.duration)
	return nil
}

func (v *Video) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.PlayErr != nil {
		return v.PlayErr
	}
	if v.current >= v.duration {
		v.current = 0
	}
	v.paused = false
	return nil
}

func (v *Video) Pause() {
	v.mu.Lock()
	v.paused = true
	v.mu.Unlock()
}

func (v *Video) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

func (v *Video) Ended() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current >= v.duration
}

func (v *Video) PlaybackRate() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rate
}

func (v *Video) SetPlaybackRate(r float64) {
	v.mu.Lock()
	v.rate = r
	v.mu.Unlock()
}

func (v *Video) Muted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.muted
}

func (v *Video) SetMuted(m bool) {
	v.mu.Lock()
	v.muted = m
	v.mu.Unlock()
}

func (v *Video) Advance(wall time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.paused {
		return nil
	}
	v.current += time.Duration(float64(wall) * v.rate)
	if v.current >= v.duration {
		v.current = v.duration
		v.paused = true
	}
	return nil
}

func (v *Video) Frame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, int(v.size.W), int(v.size.H)))
	draw.Draw(img, img.Bounds(), image.NewUniform(v.fill), image.Point{}, draw.Src)
	return img
}
