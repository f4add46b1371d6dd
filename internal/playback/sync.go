package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/media"
)

// ErrNoVideo is returned when an operation needs a channel with no source.
var ErrNoVideo = errors.New("no video loaded")

// ChannelState mirrors a channel's video for readers that must not touch the
// video itself, such as the paint loop.
type ChannelState struct {
	Source       media.Source
	Loaded       bool
	Playing      bool
	CurrentTime  time.Duration
	Duration     time.Duration
	PlaybackRate float64
}

// Synchronizer coordinates the primary video and an optional comparison
// video. Transport operations on the primary are mirrored to the second
// channel when it is loaded.
type Synchronizer struct {
	mu     sync.Mutex
	videos [2]Video
	state  [2]ChannelState
	log    zerolog.Logger
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the synchronizer's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// NewSynchronizer returns a synchronizer with no videos.
func NewSynchronizer(opts ...Option) *Synchronizer {
	s := &Synchronizer{log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func index(ch annotation.Channel) int {
	if ch == annotation.ChannelAfter {
		return 1
	}
	return 0
}

// SetSource loads v into ch, replacing whatever was there.
func (s *Synchronizer) SetSource(ch annotation.Channel, v Video, src media.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := index(ch)
	s.videos[i] = v
	s.state[i] = ChannelState{Source: src}
	s.refreshLocked(i)
	s.log.Debug().Str("channel", ch.String()).Str("source", src.String()).Msg("source loaded")
}

// ClearSource unloads ch.
func (s *Synchronizer) ClearSource(ch annotation.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := index(ch)
	s.videos[i] = nil
	s.state[i] = ChannelState{}
}

// Video returns the video loaded into ch, or nil.
func (s *Synchronizer) Video(ch annotation.Channel) Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videos[index(ch)]
}

// Comparison reports whether a second video is loaded.
func (s *Synchronizer) Comparison() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videos[1] != nil
}

// State returns the mirrored state of ch.
func (s *Synchronizer) State(ch annotation.Channel) ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[index(ch)]
}

// CurrentTime returns ch's playback position. It is the clock the drawing
// tools stamp annotations with.
func (s *Synchronizer) CurrentTime(ch annotation.Channel) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := s.videos[index(ch)]; v != nil {
		return v.CurrentTime()
	}
	return 0
}

// Clock returns a function reporting ch's current time.
func (s *Synchronizer) Clock(ch annotation.Channel) func() time.Duration {
	return func() time.Duration { return s.CurrentTime(ch) }
}

func (s *Synchronizer) refreshLocked(i int) {
	v := s.videos[i]
	if v == nil {
		s.state[i] = ChannelState{}
		return
	}
	st := &s.state[i]
	st.Loaded = true
	st.Playing = !v.Paused()
	st.CurrentTime = v.CurrentTime()
	st.Duration = v.Duration()
	st.PlaybackRate = v.PlaybackRate()
}

func (s *Synchronizer) present() []int {
	var out []int
	for i, v := range s.videos {
		if v != nil {
			out = append(out, i)
		}
	}
	return out
}

// Play starts the primary video and mirrors the command to the second.
func (s *Synchronizer) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videos[0] == nil {
		return ErrNoVideo
	}
	for _, i := range s.present() {
		if err := s.videos[i].Play(); err != nil {
			s.refreshLocked(i)
			return fmt.Errorf("play channel %d: %w", i, err)
		}
		s.refreshLocked(i)
	}
	return nil
}

// Pause pauses the primary video and mirrors the command to the second.
func (s *Synchronizer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.present() {
		s.videos[i].Pause()
		s.refreshLocked(i)
	}
}

// PlayChannel starts only ch.
func (s *Synchronizer) PlayChannel(ch annotation.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := index(ch)
	if s.videos[i] == nil {
		return ErrNoVideo
	}
	defer s.refreshLocked(i)
	if err := s.videos[i].Play(); err != nil {
		return fmt.Errorf("play channel %d: %w", i, err)
	}
	return nil
}

// PauseChannel pauses only ch.
func (s *Synchronizer) PauseChannel(ch annotation.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := index(ch)
	if s.videos[i] == nil {
		return
	}
	s.videos[i].Pause()
	s.refreshLocked(i)
}

// PlayBoth rewinds every loaded video to the start and plays them together.
func (s *Synchronizer) PlayBoth() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.present()
	if len(idx) == 0 {
		return ErrNoVideo
	}
	for _, i := range idx {
		if err := s.videos[i].Seek(0); err != nil {
			return fmt.Errorf("rewind channel %d: %w", i, err)
		}
	}
	for _, i := range idx {
		if err := s.videos[i].Play(); err != nil {
			s.refreshLocked(i)
			return fmt.Errorf("play channel %d: %w", i, err)
		}
		s.refreshLocked(i)
	}
	return nil
}

// TogglePlay pauses when the primary is playing and plays otherwise.
func (s *Synchronizer) TogglePlay() error {
	s.mu.Lock()
	v := s.videos[0]
	s.mu.Unlock()
	if v == nil {
		return ErrNoVideo
	}
	if v.Paused() {
		return s.Play()
	}
	s.Pause()
	return nil
}

// ToggleChannel pauses ch when it is playing and plays it otherwise. The
// other channel is left alone.
func (s *Synchronizer) ToggleChannel(ch annotation.Channel) error {
	s.mu.Lock()
	v := s.videos[index(ch)]
	s.mu.Unlock()
	if v == nil {
		return ErrNoVideo
	}
	if v.Paused() {
		return s.PlayChannel(ch)
	}
	s.PauseChannel(ch)
	return nil
}

// PlaybackRate returns the primary video's rate, or 1 when nothing is loaded.
func (s *Synchronizer) PlaybackRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videos[0] == nil {
		return 1
	}
	return s.videos[0].PlaybackRate()
}

// SetPlaybackRate applies rate to every loaded video.
func (s *Synchronizer) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.present() {
		s.videos[i].SetPlaybackRate(rate)
		s.refreshLocked(i)
	}
}

// Seek moves every loaded video to t, clamped to each video's duration.
func (s *Synchronizer) Seek(t time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(s.present(), func(time.Duration) time.Duration { return t })
}

// SeekChannel moves only ch to t, leaving the other channel where it is.
func (s *Synchronizer) SeekChannel(ch annotation.Channel, t time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := index(ch)
	if s.videos[i] == nil {
		return ErrNoVideo
	}
	return s.seekLocked([]int{i}, func(time.Duration) time.Duration { return t })
}

func (s *Synchronizer) seekLocked(idx []int, target func(cur time.Duration) time.Duration) error {
	for _, i := range idx {
		v := s.videos[i]
		t := target(v.CurrentTime())
		if t < 0 {
			t = 0
		}
		if d := v.Duration(); d > 0 && t > d {
			t = d
		}
		if err := v.Seek(t); err != nil {
			return fmt.Errorf("seek channel %d: %w", i, err)
		}
		s.refreshLocked(i)
	}
	return nil
}

// StepFrame moves every loaded video n frames forward, or backward when n
// is negative.
func (s *Synchronizer) StepFrame(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := time.Duration(n) * FrameInterval
	return s.seekLocked(s.present(), func(cur time.Duration) time.Duration { return cur + delta })
}

// Tick advances playing videos by wall time and refreshes the mirrored
// state. It returns the first decode error.
func (s *Synchronizer) Tick(wall time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, i := range s.present() {
		v := s.videos[i]
		if !v.Paused() {
			if err := v.Advance(wall); err != nil && first == nil {
				first = fmt.Errorf("advance channel %d: %w", i, err)
			}
		}
		s.refreshLocked(i)
	}
	return first
}

// Ended reports whether every loaded video has reached its end.
func (s *Synchronizer) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.present()
	if len(idx) == 0 {
		return true
	}
	for _, i := range idx {
		if !s.videos[i].Ended() {
			return false
		}
	}
	return true
}
