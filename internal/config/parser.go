package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/tools"
)

// Parse reads configuration from an io.Reader.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	scanner := bufio.NewScanner(r)

	var section string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}

		// Key = Value or Key: Value
		var parts []string
		if strings.Contains(line, "=") {
			parts = strings.SplitN(line, "=", 2)
		} else if strings.Contains(line, ":") {
			parts = strings.SplitN(line, ":", 2)
		} else {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 && strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
			value = value[1 : len(value)-1]
		}
		if err := cfg.Set(section, key, value); err != nil {
			if section == "" {
				return nil, fmt.Errorf("line %d: error in root section: %w", lineNo, err)
			}
			return nil, fmt.Errorf("line %d: error in section [%s]: %w", lineNo, section, err)
		}
	}
	return cfg, scanner.Err()
}

// Set assigns one key. Unknown keys are ignored so newer files still load.
func (c *Config) Set(section, key, value string) error {
	key = strings.ToLower(key)
	switch strings.ToLower(section) {
	case "":
		return setRootField(c, key, value)
	case "tools":
		return setToolsField(&c.Tools, key, value)
	case "reference":
		return setReferenceField(&c.Tools.Reference, key, value)
	case "export":
		return setExportField(&c.Export, key, value)
	case "notify":
		return setNotifyField(&c.Notify, key, value)
	case "palette":
		col, err := tools.ParseColor(value)
		if err != nil {
			return fmt.Errorf("invalid color for key %s: %w", key, err)
		}
		c.Palette[key] = col
	}
	return nil
}

func setRootField(cfg *Config, key, value string) error {
	switch key {
	case "save_dir":
		cfg.SaveDir = value
	case "log_level":
		cfg.LogLevel = strings.ToLower(value)
	case "app_name":
		if value == "" {
			return fmt.Errorf("app_name cannot be empty")
		}
		cfg.AppName = value
	case "theme":
		cfg.Theme = value
	}
	return nil
}

func setToolsField(t *tools.Settings, key, value string) error {
	var err error
	switch key {
	case "color":
		t.Color, err = tools.ParseColor(value)
	case "thickness":
		t.Thickness, err = parsePositive(key, value)
	case "pen_thickness":
		t.PenThickness, err = parsePositive(key, value)
	case "arrow_style":
		t.ArrowStyle, err = annotation.ParseArrowStyle(value)
	}
	return err
}

func setReferenceField(r *annotation.ReferenceSettings, key, value string) error {
	var err error
	switch key {
	case "line_count":
		r.LineCount, err = parseInt(key, value)
	case "vertical_line_count":
		r.VerticalLineCount, err = parseInt(key, value)
	case "line_thickness":
		r.LineThickness, err = parsePositive(key, value)
	case "show_horizontal":
		r.ShowHorizontal, err = parseBool(key, value)
	case "show_vertical":
		r.ShowVertical, err = parseBool(key, value)
	case "waterline":
		r.Waterline, err = parseFloat(key, value)
		if err == nil && (r.Waterline < 0 || r.Waterline > 100) {
			err = fmt.Errorf("waterline %g outside 0-100", r.Waterline)
		}
	case "show_waterline":
		r.ShowWaterline, err = parseBool(key, value)
	case "color":
		r.Color, err = tools.ParseColor(value)
	case "waterline_color":
		r.WaterlineColor, err = tools.ParseColor(value)
	}
	return err
}

var (
	exportFormats   = []string{"auto", "mp4", "webm"}
	exportQualities = []string{"low", "medium", "high"}
)

func setExportField(e *Export, key, value string) error {
	var err error
	switch key {
	case "format":
		e.Format, err = oneOf(key, value, exportFormats)
	case "quality":
		e.Quality, err = oneOf(key, value, exportQualities)
	case "playback_rate":
		e.PlaybackRate, err = parsePositive(key, value)
	case "fps":
		e.FPS, err = parsePositive(key, value)
	case "gap":
		e.Gap, err = parseInt(key, value)
		if err == nil && e.Gap < 0 {
			err = fmt.Errorf("gap cannot be negative")
		}
	case "transcode":
		e.Transcode, err = parseBool(key, value)
	case "ffmpeg":
		e.FFmpeg = value
	case "include_annotations":
		e.IncludeAnnotations, err = parseBool(key, value)
	}
	return err
}

func setNotifyField(n *Notify, key, value string) error {
	b, err := parseBool(key, value)
	if err != nil {
		return err
	}
	switch key {
	case "export":
		n.Export = b
	case "export_failed":
		n.ExportFailed = b
	case "copy":
		n.Copy = b
	}
	return nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for key %s: %w", key, err)
	}
	return b, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for key %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for key %s: %w", key, err)
	}
	return f, nil
}

func parsePositive(key, value string) (float64, error) {
	f, err := parseFloat(key, value)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return f, nil
}

func oneOf(key, value string, allowed []string) (string, error) {
	v := strings.ToLower(value)
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q (want %s)", key, value, strings.Join(allowed, ", "))
}
