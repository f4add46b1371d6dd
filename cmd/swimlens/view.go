package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/export"
	"github.com/example/swimlens/internal/media"
	"github.com/example/swimlens/internal/render"
	"github.com/example/swimlens/internal/theme"
	"github.com/example/swimlens/internal/tools"
	"github.com/example/swimlens/internal/viewer"
)

// runWindow is replaced in tests.
var runWindow = func(s *viewer.Session, title string) error { return s.Run(title) }

type viewCmd struct {
	*root
	fs *flag.FlagSet

	tool      string
	color     string
	waterline float64
	guides    bool
	themeName string
	shapes    shapeList
	sources   []string
}

func (c *viewCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseViewCmd(args []string, r *root) (*viewCmd, error) {
	r = r.subcommand("view")
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	c := &viewCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	ref := r.config.Tools.Reference
	fs.StringVar(&c.tool, "tool", tools.ToolArrow.String(), "initial tool: arrow, pen, angle, eraser or waterline")
	fs.StringVar(&c.color, "color", tools.HexColor(r.config.Tools.Color), "drawing colour")
	fs.Float64Var(&c.waterline, "waterline", ref.Waterline, "waterline position in percent of the height")
	fs.BoolVar(&c.guides, "guides", ref.ShowHorizontal, "show the horizontal reference guides")
	fs.StringVar(&c.themeName, "theme", r.config.Theme, "window theme: "+strings.Join(theme.Names(), ", ")+" or a .theme file")
	fs.Var(&c.shapes, "draw", "annotation to preload, may be repeated")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c.sources = fs.Args()
	if len(c.sources) < 1 || len(c.sources) > 2 {
		return nil, &UsageError{of: c}
	}
	if _, err := tools.ParseTool(c.tool); err != nil {
		return nil, err
	}
	if _, err := tools.ParseColor(c.color); err != nil {
		return nil, err
	}
	if c.waterline < 0 || c.waterline > 100 {
		return nil, fmt.Errorf("-waterline must be between 0 and 100")
	}
	return c, nil
}

// loadTheme resolves the window theme, falling back to the default when the
// requested one cannot be loaded.
func (c *viewCmd) loadTheme() *theme.Theme {
	t, err := themeLoader().Load(c.themeName)
	if err != nil {
		c.log.Warn().Err(err).Str("theme", c.themeName).Msg("using default theme")
		return theme.Default()
	}
	return t
}

// themeLoader is replaced in tests.
var themeLoader = theme.NewLoader

// settings applies the command flags on top of the configured tool settings.
func (c *viewCmd) settings() tools.Settings {
	st := c.config.Tools
	st.Color, _ = tools.ParseColor(c.color)
	st.Reference.Waterline = c.waterline
	st.Reference.ShowHorizontal = c.guides
	return st
}

func (c *viewCmd) Run() error {
	sy, closeAll, err := openSources(c.sources, c.log)
	if err != nil {
		return err
	}
	defer closeAll()

	st := c.settings()
	store := annotation.NewStore()
	for _, s := range c.shapes {
		s.add(store, st)
	}
	engine, err := render.NewEngine(render.WithLogger(c.log))
	if err != nil {
		return err
	}
	cfg := c.config
	opts := export.DefaultOptions()
	opts.PlaybackRate = cfg.Export.PlaybackRate
	opts.FPS = cfg.Export.FPS
	opts.Gap = cfg.Export.Gap
	opts.Transcode = cfg.Export.Transcode
	opts.IncludeAnnotations = cfg.Export.IncludeAnnotations
	opts.AppName = cfg.AppName
	if cfg.SaveDir != "" {
		opts.Dir = cfg.SaveDir
	}
	if opts.Format, err = export.ParseFormat(cfg.Export.Format); err != nil {
		return err
	}
	if opts.Quality, err = export.ParseQuality(cfg.Export.Quality); err != nil {
		return err
	}
	pipeline := export.NewPipeline(sy, store, engine, newRecorder(c.log),
		export.WithLogger(c.log),
		export.WithTranscoder(media.NewFFmpeg(cfg.Export.FFmpeg, c.log)),
		export.WithNotifier(c.notifier),
	)

	session := viewer.NewSession(sy, store, engine,
		viewer.WithLogger(c.log),
		viewer.WithSettings(st),
		viewer.WithExport(pipeline, opts),
		viewer.WithNotifier(c.notifier),
		viewer.WithTheme(c.loadTheme()),
	)
	tool, _ := tools.ParseTool(c.tool)
	session.SetTool(tool)
	defer pipeline.Cancel()
	return runWindow(session, windowTitle(c.sources))
}

func windowTitle(sources []string) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		src, err := media.ParseSource(s)
		if err != nil {
			names[i] = s
			continue
		}
		names[i] = src.String()
	}
	return "SwimLens - " + strings.Join(names, " vs ")
}
