// Package media decodes and encodes video through OpenCV and ffmpeg and
// inspects MP4 containers.
package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEndOfStream is returned when a source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
	// ErrNotOpened is returned when a capture or writer failed to open.
	ErrNotOpened = errors.New("media not opened")
)

// Kind is the type of a video source.
type Kind int

const (
	KindFile Kind = iota
	KindCamera
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindCamera:
		return "camera"
	case KindStream:
		return "stream"
	}
	return "file"
}

// Source describes where a channel's video comes from.
type Source struct {
	Kind   Kind
	URL    string
	Device int
}

// Live reports whether the source has no fixed duration.
func (s Source) Live() bool { return s.Kind != KindFile }

func (s Source) String() string {
	switch s.Kind {
	case KindCamera:
		return fmt.Sprintf("camera:%d", s.Device)
	case KindStream, KindFile:
		return s.URL
	}
	return ""
}

var streamSchemes = []string{"rtsp://", "rtsps://", "rtmp://", "http://", "https://", "udp://", "srt://"}

// ParseSource interprets a command line source argument. "camera:N" selects
// a local device, URLs with a network scheme are streams and anything else is
// a file path.
func ParseSource(arg string) (Source, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return Source{}, errors.New("empty source")
	}
	if rest, ok := strings.CutPrefix(arg, "camera:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return Source{}, fmt.Errorf("invalid camera index %q", rest)
		}
		return Source{Kind: KindCamera, Device: n}, nil
	}
	lower := strings.ToLower(arg)
	for _, p := range streamSchemes {
		if strings.HasPrefix(lower, p) {
			return Source{Kind: KindStream, URL: arg}, nil
		}
	}
	return Source{Kind: KindFile, URL: strings.TrimPrefix(arg, "file://")}, nil
}
