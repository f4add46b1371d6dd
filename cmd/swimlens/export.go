package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/export"
	"github.com/example/swimlens/internal/media"
	"github.com/example/swimlens/internal/render"
)

// newRecorder is replaced in tests.
var newRecorder = func(l zerolog.Logger) export.Recorder { return media.NewRecorder(l) }

type exportCmd struct {
	*root
	fs *flag.FlagSet

	format       string
	quality      string
	rate         float64
	fps          float64
	gap          int
	noAnnotation bool
	noTranscode  bool
	ffmpeg       string
	dir          string
	single       bool
	maxDuration  time.Duration
	waterline    float64
	noProgress   bool
	shapes       shapeList

	sources []string
	opts    export.Options
}

func (c *exportCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseExportCmd(args []string, r *root) (*exportCmd, error) {
	r = r.subcommand("export")
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	c := &exportCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	cfg := r.config
	fs.StringVar(&c.format, "format", cfg.Export.Format, "output container: auto, mp4 or webm")
	fs.StringVar(&c.quality, "quality", cfg.Export.Quality, "transcode quality: low, medium or high")
	fs.Float64Var(&c.rate, "rate", cfg.Export.PlaybackRate, "playback rate while recording")
	fs.Float64Var(&c.fps, "fps", cfg.Export.FPS, "output frame rate")
	fs.IntVar(&c.gap, "gap", cfg.Export.Gap, "gap between comparison panels in pixels")
	fs.BoolVar(&c.noAnnotation, "no-annotations", !cfg.Export.IncludeAnnotations, "record the video without drawings")
	fs.BoolVar(&c.noTranscode, "no-transcode", !cfg.Export.Transcode, "keep WebM output instead of converting to MP4")
	fs.StringVar(&c.ffmpeg, "ffmpeg", cfg.Export.FFmpeg, "ffmpeg binary used for transcoding")
	fs.StringVar(&c.dir, "dir", pick(cfg.SaveDir != "", cfg.SaveDir, "."), "output directory")
	fs.BoolVar(&c.single, "single", false, "record only the first video")
	fs.DurationVar(&c.maxDuration, "max-duration", 0, "stop after this much media time (required for cameras and streams)")
	fs.Float64Var(&c.waterline, "waterline", cfg.Tools.Reference.Waterline, "waterline position in percent of the height")
	fs.BoolVar(&c.noProgress, "no-progress", false, "hide the progress bar")
	fs.Var(&c.shapes, "draw", "annotation to draw, may be repeated")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c.sources = fs.Args()
	if len(c.sources) < 1 || len(c.sources) > 2 {
		return nil, &UsageError{of: c}
	}
	if c.maxDuration <= 0 && liveSources(c.sources) {
		return nil, fmt.Errorf("-max-duration is required when recording a camera or stream")
	}
	if c.waterline < 0 || c.waterline > 100 {
		return nil, fmt.Errorf("-waterline must be between 0 and 100")
	}
	var err error
	opts := export.Options{
		PlaybackRate:       c.rate,
		FPS:                c.fps,
		Gap:                c.gap,
		IncludeAnnotations: !c.noAnnotation,
		Transcode:          !c.noTranscode,
		Single:             c.single,
		MaxDuration:        c.maxDuration,
		Dir:                c.dir,
		AppName:            cfg.AppName,
	}
	if opts.Format, err = export.ParseFormat(c.format); err != nil {
		return nil, err
	}
	if opts.Quality, err = export.ParseQuality(c.quality); err != nil {
		return nil, err
	}
	c.opts = opts
	return c, nil
}

func (c *exportCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sy, closeAll, err := openSources(c.sources, c.log)
	if err != nil {
		return err
	}
	defer closeAll()

	settings := c.config.Tools
	settings.Reference.Waterline = c.waterline
	store := annotation.NewStore()
	store.SetReferenceLines(annotation.ReferenceLayout(settings.Reference))
	for _, s := range c.shapes {
		s.add(store, settings)
	}

	engine, err := render.NewEngine(render.WithLogger(c.log))
	if err != nil {
		return err
	}
	ff := media.NewFFmpeg(c.ffmpeg, c.log)
	if !c.noProgress {
		ff.Progress = c.stderr
	}
	p := export.NewPipeline(sy, store, engine, newRecorder(c.log),
		export.WithLogger(c.log),
		export.WithTranscoder(ff),
		export.WithNotifier(c.notifier),
	)
	if !c.noProgress {
		bar := progressbar.NewOptions(100,
			progressbar.OptionSetWriter(c.stderr),
			progressbar.OptionSetDescription("recording"),
			progressbar.OptionClearOnFinish(),
		)
		p.OnProgress(func(pr export.Progress) {
			if pr.Status.Active() {
				_ = bar.Set(int(pr.Percent))
			} else {
				_ = bar.Finish()
			}
		})
	}

	if err := p.Start(ctx, c.opts); err != nil {
		return exportError(err)
	}
	go func() {
		select {
		case <-ctx.Done():
			p.Cancel()
		case <-p.Done():
		}
	}()
	path, err := p.Wait()
	if err != nil {
		return exportError(err)
	}
	fmt.Fprintln(c.stdout, path)
	return nil
}

func exportError(err error) error {
	var f *export.Failure
	if errors.As(err, &f) {
		return fmt.Errorf("export failed: %w", f)
	}
	if errors.Is(err, export.ErrCancelled) {
		return errors.New("export cancelled")
	}
	return fmt.Errorf("export failed: %w", err)
}
