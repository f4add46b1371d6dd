package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/media"
	"github.com/example/swimlens/internal/playback"
)

// clip is an opened video that must be closed.
type clip interface {
	playback.Video
	Close() error
}

// openClip is replaced in tests.
var openClip = func(src media.Source, l zerolog.Logger) (clip, error) {
	return media.Open(src, media.WithClipLogger(l))
}

// openSources opens up to two video arguments and attaches them to a new
// synchronizer in channel order. The returned closer releases every clip.
func openSources(args []string, l zerolog.Logger) (*playback.Synchronizer, func(), error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, nil, fmt.Errorf("expected one or two videos, got %d", len(args))
	}
	sy := playback.NewSynchronizer(playback.WithLogger(l))
	var opened []clip
	closeAll := func() {
		for _, c := range opened {
			if err := c.Close(); err != nil {
				l.Warn().Err(err).Msg("close video")
			}
		}
	}
	for i, arg := range args {
		src, err := media.ParseSource(arg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		c, err := openClip(src, l.With().Int("channel", i).Logger())
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", src, err)
		}
		opened = append(opened, c)
		sy.SetSource(annotation.Channel(i), c, src)
		l.Info().Int("channel", i).Str("source", src.String()).
			Dur("duration", c.Duration()).
			Float64("width", c.Size().W).Float64("height", c.Size().H).
			Msg("video opened")
	}
	return sy, closeAll, nil
}

// liveSources reports whether any argument names a camera or stream.
func liveSources(args []string) bool {
	for _, arg := range args {
		if src, err := media.ParseSource(arg); err == nil && src.Live() {
			return true
		}
	}
	return false
}
