// Package playback keeps one or two videos in step and exposes the frame
// scheduling used by the viewer and the export loop.
package playback

import (
	"image"
	"time"

	"github.com/example/swimlens/internal/geometry"
)

// FrameInterval is the step used for single frame navigation.
const FrameInterval = time.Second / 30

// Video is a decoded, seekable media element. The video is the source of
// truth for its own time and play state.
type Video interface {
	CurrentTime() time.Duration
	Duration() time.Duration
	Size() geometry.Size

	Seek(t time.Duration) error
	Play() error
	Pause()
	Paused() bool
	Ended() bool

	PlaybackRate() float64
	SetPlaybackRate(rate float64)
	Muted() bool
	SetMuted(muted bool)

	// Advance moves a playing video forward by wall*rate of media time,
	// decoding as it goes. Paused videos ignore it.
	Advance(wall time.Duration) error
	// Frame returns the most recently decoded frame, or nil before the
	// first decode.
	Frame() image.Image
}
