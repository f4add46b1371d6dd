package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
	"github.com/example/swimlens/internal/tools"
)

// shape is one -draw argument decoded into an annotation.
type shape struct {
	kind   string
	points []geometry.Point
	at     time.Duration
	ch     *int
	color  string
	width  float64
	style  string
}

// shapeList collects repeated -draw flags.
type shapeList []shape

func (l *shapeList) String() string {
	parts := make([]string, len(*l))
	for i, s := range *l {
		parts[i] = s.kind
	}
	return strings.Join(parts, ",")
}

func (l *shapeList) Set(v string) error {
	s, err := parseShape(v)
	if err != nil {
		return err
	}
	*l = append(*l, s)
	return nil
}

func parseShape(spec string) (shape, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return shape{}, fmt.Errorf("empty shape")
	}
	s := shape{kind: strings.ToLower(fields[0])}
	var coords []string
	for _, f := range fields[1:] {
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			coords = append(coords, f)
			continue
		}
		if err := s.setOption(strings.ToLower(key), val); err != nil {
			return shape{}, err
		}
	}
	var err error
	switch s.kind {
	case "arrow":
		s.points, err = expectPoints(coords, 2, s.kind)
	case "angle":
		s.points, err = expectPoints(coords, 3, s.kind)
	case "pen", "stroke":
		s.kind = "pen"
		s.points, err = parsePairs(coords)
		if err == nil && len(s.points) < tools.MinStrokePoints {
			err = fmt.Errorf("pen requires at least %d points", tools.MinStrokePoints)
		}
	default:
		return shape{}, fmt.Errorf("unsupported shape %q", s.kind)
	}
	if err != nil {
		return shape{}, err
	}
	return s, nil
}

func (s *shape) setOption(key, val string) error {
	switch key {
	case "at", "t":
		d, err := parseTimestamp(val)
		if err != nil {
			return err
		}
		s.at = d
	case "ch", "channel":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 || n > 1 {
			return fmt.Errorf("invalid channel %q", val)
		}
		s.ch = &n
	case "color", "colour":
		if _, err := tools.ParseColor(val); err != nil {
			return err
		}
		s.color = val
	case "width":
		w, err := strconv.ParseFloat(val, 64)
		if err != nil || w <= 0 {
			return fmt.Errorf("invalid width %q", val)
		}
		s.width = w
	case "style":
		if _, err := annotation.ParseArrowStyle(val); err != nil {
			return err
		}
		s.style = val
	default:
		return fmt.Errorf("unknown shape option %q", key)
	}
	return nil
}

// parseTimestamp accepts a Go duration or a bare number of milliseconds.
func parseTimestamp(v string) (time.Duration, error) {
	if ms, err := strconv.ParseFloat(v, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative time %q", v)
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", v)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative time %q", v)
	}
	return d, nil
}

func expectPoints(args []string, n int, kind string) ([]geometry.Point, error) {
	if len(args) == n {
		return parsePairs(args)
	}
	if len(args) != 2*n {
		return nil, fmt.Errorf("%s requires %d points", kind, n)
	}
	vals := make([]float64, len(args))
	for i, raw := range args {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		vals[i] = v
	}
	pts := make([]geometry.Point, n)
	for i := range pts {
		pts[i] = geometry.Pt(vals[2*i], vals[2*i+1])
	}
	return pts, nil
}

// parsePairs reads "x,y" tokens.
func parsePairs(args []string) ([]geometry.Point, error) {
	pts := make([]geometry.Point, 0, len(args))
	for _, raw := range args {
		xs, ys, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q, want x,y", raw)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q", raw)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q", raw)
		}
		pts = append(pts, geometry.Pt(x, y))
	}
	return pts, nil
}

// add commits the shape to store, filling unset options from settings.
func (s shape) add(store *annotation.Store, settings tools.Settings) {
	col := settings.Color
	if s.color != "" {
		col, _ = tools.ParseColor(s.color)
	}
	ts := annotation.Timestamp(s.at)
	ch := annotation.ChannelOrDefault(s.ch)
	switch s.kind {
	case "arrow":
		style := settings.ArrowStyle
		if s.style != "" {
			style, _ = annotation.ParseArrowStyle(s.style)
		}
		store.AddArrow(annotation.Arrow{
			Start:     s.points[0],
			End:       s.points[1],
			Color:     col,
			Thickness: pick(s.width > 0, s.width, settings.Thickness),
			Style:     style,
			Timestamp: ts,
			Channel:   ch,
		})
	case "pen":
		store.AddStroke(annotation.Stroke{
			Points:    s.points,
			Color:     col,
			Thickness: pick(s.width > 0, s.width, settings.PenThickness),
			Timestamp: ts,
			Channel:   ch,
		})
	case "angle":
		a := annotation.NewAngle(s.points[0], s.points[1], s.points[2])
		a.Color = col
		a.Timestamp = ts
		a.Channel = ch
		store.AddAngle(a)
	}
}
