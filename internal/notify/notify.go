// Package notify sends desktop notifications for export and clipboard events.
package notify

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/swimlens/internal/platform"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventExport fires when an export file has been written.
	EventExport Event = "export"
	// EventExportFailed fires when an export ends in error.
	EventExportFailed Event = "export_failed"
	// EventCopy fires when a frame is copied to the clipboard.
	EventCopy Event = "copy"
)

// Preferences holds the notification title and per event body templates.
// Each template receives a single %s detail.
type Preferences struct {
	AppName   string
	Title     string
	Templates map[Event]string
}

// DefaultPreferences returns the built in wording.
func DefaultPreferences() Preferences {
	return Preferences{
		AppName: "SwimLens",
		Title:   "SwimLens",
		Templates: map[Event]string{
			EventExport:       "Exported %s",
			EventExportFailed: "Export failed: %s",
			EventCopy:         "Copied %s to clipboard",
		},
	}
}

// sendFunc is replaced in tests.
var sendFunc = platform.Notify

// Notifier sends OS notifications for enabled events.
type Notifier struct {
	prefs   Preferences
	enabled map[Event]bool
	log     zerolog.Logger
}

// New creates a notifier with every event disabled.
func New(prefs Preferences, l zerolog.Logger) *Notifier {
	tmpl := make(map[Event]string, len(prefs.Templates))
	for k, v := range prefs.Templates {
		tmpl[k] = v
	}
	prefs.Templates = tmpl
	return &Notifier{prefs: prefs, enabled: map[Event]bool{}, log: l}
}

// Enable toggles notifications for event.
func (n *Notifier) Enable(event Event, on bool) {
	if n == nil {
		return
	}
	n.enabled[event] = on
}

// Enabled reports whether event will notify.
func (n *Notifier) Enabled(event Event) bool {
	return n != nil && n.enabled[event]
}

// ExportComplete announces a finished export. preview, when given, is shown
// as the notification icon.
func (n *Notifier) ExportComplete(path string, preview image.Image) {
	if !n.Enabled(EventExport) {
		return
	}
	detail := path
	if abs, err := filepath.Abs(path); err == nil {
		detail = abs
	}
	opts := n.options()
	if preview != nil {
		icon, cleanup, err := writePreview(preview)
		if err != nil {
			n.log.Warn().Err(err).Msg("notification preview")
		} else {
			defer cleanup()
			opts.IconPath = icon
		}
	}
	n.dispatch(EventExport, detail, opts)
}

// ExportFailed announces a failed export.
func (n *Notifier) ExportFailed(summary string) {
	if !n.Enabled(EventExportFailed) {
		return
	}
	n.dispatch(EventExportFailed, summary, n.options())
}

// Copy announces a clipboard copy.
func (n *Notifier) Copy(detail string) {
	if !n.Enabled(EventCopy) {
		return
	}
	if strings.TrimSpace(detail) == "" {
		detail = "frame"
	}
	n.dispatch(EventCopy, detail, n.options())
}

func (n *Notifier) options() platform.Options {
	return platform.Options{AppName: n.prefs.AppName}
}

func (n *Notifier) dispatch(event Event, detail string, opts platform.Options) {
	tmpl := strings.TrimSpace(n.prefs.Templates[event])
	if tmpl == "" {
		return
	}
	body := strings.TrimSpace(fmt.Sprintf(tmpl, strings.TrimSpace(detail)))
	if body == "" {
		return
	}
	if err := sendFunc(n.prefs.Title, body, opts); err != nil {
		n.log.Warn().Err(err).Str("event", string(event)).Msg("notification failed")
	}
}

func writePreview(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "swimlens-preview-*.png")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	return path, func() { _ = os.Remove(path) }, nil
}
