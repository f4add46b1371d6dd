package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/media"
	"github.com/example/swimlens/internal/playback"
	"github.com/example/swimlens/internal/render"
)

// SchedulerFunc creates the scheduler that drives one export run. The
// scheduler must stop running callbacks once ctx is done.
type SchedulerFunc func(ctx context.Context) playback.Scheduler

// Pipeline records exports. One run may be active at a time.
type Pipeline struct {
	sync     *playback.Synchronizer
	store    *annotation.Store
	engine   *render.Engine
	recorder Recorder
	tc       Transcoder
	notifier Notifier
	log      zerolog.Logger
	sched    SchedulerFunc
	verify   func(path string) error
	now      func() time.Time
	metrics  *metrics

	mu       sync.Mutex
	progress Progress
	listener func(Progress)
	run      *run
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithTranscoder enables WebM to MP4 conversion.
func WithTranscoder(t Transcoder) Option { return func(p *Pipeline) { p.tc = t } }

// WithNotifier reports finished exports.
func WithNotifier(n Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

// WithScheduler replaces the loop scheduler.
func WithScheduler(fn SchedulerFunc) Option { return func(p *Pipeline) { p.sched = fn } }

// WithClock sets the clock used for output file names.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithVerifier replaces the MP4 container check.
func WithVerifier(fn func(path string) error) Option { return func(p *Pipeline) { p.verify = fn } }

// NewPipeline wires an export pipeline to the session's videos and
// annotations.
func NewPipeline(s *playback.Synchronizer, store *annotation.Store, engine *render.Engine, rec Recorder, opts ...Option) *Pipeline {
	p := &Pipeline{
		sync:     s,
		store:    store,
		engine:   engine,
		recorder: rec,
		log:      zerolog.Nop(),
		sched: func(ctx context.Context) playback.Scheduler {
			return playback.NewLoopScheduler(ctx)
		},
		verify:  media.VerifyMP4,
		now:     time.Now,
		metrics: newMetrics(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// OnProgress registers the progress listener. It is called synchronously
// from the export goroutine.
func (p *Pipeline) OnProgress(fn func(Progress)) {
	p.mu.Lock()
	p.listener = fn
	p.mu.Unlock()
}

// Progress returns the latest progress.
func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Pipeline) publish(pr Progress) {
	p.mu.Lock()
	prev := p.progress.Status
	p.progress = pr
	fn := p.listener
	p.mu.Unlock()
	if prev != pr.Status {
		ev := p.log.Info()
		if pr.Status == StatusError {
			ev = p.log.Error()
			if pr.Err != nil {
				ev = ev.Str("detail", pr.Err.Detail)
			}
		}
		ev.Str("status", pr.Status.String()).Float64("percent", pr.Percent).Msg(pr.Message)
	}
	if fn != nil {
		fn(pr)
	}
}

// saved is a video's state before the export took it over.
type saved struct {
	video playback.Video
	rate  float64
	muted bool
}

type run struct {
	opts      Options
	ctx       context.Context
	cancelCtx context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
	started   time.Time

	// frameMu serialises frame callbacks with cancellation and cleanup.
	frameMu  sync.Mutex
	finished bool

	codec     media.Codec
	transcode bool
	layout    Layout
	comp      *composer
	tmpPath   string
	saved     []saved
	recording bool
	interval  time.Duration
	duration  time.Duration
	frames    int
	lastFrame image.Image

	path string
	err  error
}

// Start prepares an export and begins encoding in the background. Use Wait
// for the result and Cancel to abort. The progress listener must not call
// Cancel synchronously.
func (p *Pipeline) Start(ctx context.Context, opts Options) error {
	opts = opts.normalized()
	p.mu.Lock()
	if p.run != nil && !p.run.isDone() {
		p.mu.Unlock()
		return ErrBusy
	}
	r := &run{opts: opts, done: make(chan struct{}), started: time.Now()}
	r.ctx, r.cancelCtx = context.WithCancel(ctx)
	p.run = r
	p.mu.Unlock()

	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	p.publish(Progress{Status: StatusPreparing, Message: "Preparing export"})
	if err := p.prepare(r); err != nil {
		p.failLocked(r, err)
		return err
	}
	if r.cancelled.Load() {
		p.cleanupLocked(r)
		p.finishCancelledLocked(r)
		return ErrCancelled
	}
	if err := p.begin(r); err != nil {
		p.failLocked(r, err)
		return err
	}
	if r.cancelled.Load() {
		p.cleanupLocked(r)
		p.finishCancelledLocked(r)
		return ErrCancelled
	}
	sched := p.sched(r.ctx)
	var frame func()
	frame = func() {
		if p.frame(r) {
			sched.Schedule(frame)
		}
	}
	sched.Schedule(frame)
	return nil
}

// Run starts an export and waits for it.
func (p *Pipeline) Run(ctx context.Context, opts Options) (string, error) {
	if err := p.Start(ctx, opts); err != nil {
		return "", err
	}
	return p.Wait()
}

// Wait blocks until the current run ends and returns the output path.
func (p *Pipeline) Wait() (string, error) {
	p.mu.Lock()
	r := p.run
	p.mu.Unlock()
	if r == nil {
		return "", errors.New("no export started")
	}
	<-r.done
	return r.path, r.err
}

// Done returns a channel closed when the current run ends, or nil.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == nil {
		return nil
	}
	return p.run.done
}

func (r *run) isDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (p *Pipeline) prepare(r *run) error {
	v0 := p.sync.Video(annotation.ChannelBefore)
	if v0 == nil {
		return newFailure("No video loaded", playback.ErrNoVideo)
	}
	codec, transcode, err := p.resolveCodec(r.opts)
	if err != nil {
		return newFailure("No supported video format", err)
	}
	r.codec = codec
	r.transcode = transcode

	v1 := p.sync.Video(annotation.ChannelAfter)
	if v1 != nil && !r.opts.Single {
		r.layout = ComparisonLayout(v0.Size(), v1.Size(), float64(r.opts.Gap))
	} else {
		r.layout = SingleLayout(v0.Size())
	}
	if r.layout.Width <= 0 || r.layout.Height <= 0 {
		return newFailure("Video has no dimensions", fmt.Errorf("canvas %dx%d", r.layout.Width, r.layout.Height))
	}
	r.comp = newComposer(p.engine, r.layout)
	r.interval = time.Duration(float64(time.Second) / r.opts.FPS)
	r.duration = v0.Duration()
	if v1 != nil && !r.opts.Single && v1.Duration() > r.duration {
		r.duration = v1.Duration()
	}
	if r.opts.MaxDuration > 0 && (r.duration == 0 || r.opts.MaxDuration < r.duration) {
		r.duration = r.opts.MaxDuration
	}
	if err := os.MkdirAll(r.opts.Dir, 0o755); err != nil {
		return newFailure("Cannot create output directory", err)
	}
	r.tmpPath = filepath.Join(r.opts.Dir, fmt.Sprintf(".%s-%s.%s", r.opts.AppName, uuid.NewString(), codec.Container))
	p.log.Debug().Str("codec", codec.String()).Bool("transcode", transcode).Int("width", r.layout.Width).Int("height", r.layout.Height).Bool("comparison", r.layout.Comparison).Msg("export prepared")
	return nil
}

// resolveCodec picks the first supported codec in priority order, preferring
// the requested container. An MP4 request served by WebM is marked for
// transcoding when a transcoder is available.
func (p *Pipeline) resolveCodec(o Options) (media.Codec, bool, error) {
	var first *media.Codec
	for i := range media.CodecPriority {
		c := media.CodecPriority[i]
		if !p.recorder.Supported(c) {
			continue
		}
		if o.Format == FormatAuto || string(o.Format) == c.Container {
			return c, false, nil
		}
		if first == nil {
			first = &c
		}
	}
	if first == nil {
		return media.Codec{}, false, ErrNoSupportedFormat
	}
	if o.Format == FormatMP4 && first.Container == "webm" {
		if o.Transcode && p.tc != nil && p.tc.Available() {
			return *first, true, nil
		}
		p.log.Warn().Str("codec", first.String()).Msg("mp4 unavailable and no transcoder, keeping webm")
	}
	return *first, false, nil
}

func (p *Pipeline) channels(r *run) []playback.Video {
	out := []playback.Video{p.sync.Video(annotation.ChannelBefore)}
	if r.layout.Comparison {
		out = append(out, p.sync.Video(annotation.ChannelAfter))
	}
	return out
}

// begin hands the videos to the recorder: everything is paused, the
// exported channels rewound and muted, the export rate applied, the recorder
// opened and playback started. On error the caller's cleanup restores
// whatever was changed.
func (p *Pipeline) begin(r *run) error {
	p.publish(Progress{Status: StatusEncoding, Percent: 5, Message: "Starting recorder"})
	p.sync.Pause()
	for _, v := range p.channels(r) {
		r.saved = append(r.saved, saved{video: v, rate: v.PlaybackRate(), muted: v.Muted()})
	}
	for i := range r.saved {
		if err := p.sync.SeekChannel(annotation.Channel(i), 0); err != nil {
			return newFailure("Failed to rewind video", err)
		}
	}
	for _, s := range r.saved {
		s.video.SetMuted(true)
		s.video.SetPlaybackRate(r.opts.PlaybackRate)
	}
	if err := p.recorder.Start(r.tmpPath, r.codec, r.opts.FPS, r.layout.Width, r.layout.Height); err != nil {
		return newFailure("Failed to start recorder", err)
	}
	r.recording = true
	if err := p.play(r); err != nil {
		return newFailure("Failed to start playback", err)
	}
	p.publish(Progress{Status: StatusEncoding, Percent: 10, Message: "Recording"})
	return nil
}

func (p *Pipeline) play(r *run) error {
	if !r.layout.Comparison {
		return p.sync.PlayChannel(annotation.ChannelBefore)
	}
	return p.sync.Play()
}

// frame renders and writes one output frame. It returns true when another
// frame should be scheduled.
func (p *Pipeline) frame(r *run) bool {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	if r.finished || r.cancelled.Load() || r.ctx.Err() != nil {
		return false
	}

	videos := p.channels(r)
	t0 := videos[0].CurrentTime()
	frames := make([]channelFrame, len(videos))
	for i, v := range videos {
		ch := annotation.Channel(i)
		frames[i] = channelFrame{Image: v.Frame(), Visible: p.store.VisibleFor(annotation.Timestamp(v.CurrentTime()), ch)}
	}
	img, err := r.comp.compose(r.ctx, frames, p.store.ReferenceLines(), r.opts.IncludeAnnotations)
	if err != nil {
		if r.cancelled.Load() || r.ctx.Err() != nil {
			return false
		}
		p.failLocked(r, newFailure("Failed to render frame", err))
		return false
	}
	if err := p.recorder.WriteFrame(img); err != nil {
		p.failLocked(r, newFailure("Failed to write frame", err))
		return false
	}
	r.frames++
	r.lastFrame = img
	p.metrics.frame(r.ctx)
	p.log.Debug().Int("frame", r.frames).Dur("t", t0).Msg("frame written")

	if err := p.sync.Tick(time.Duration(float64(r.interval) / r.opts.PlaybackRate)); err != nil {
		p.failLocked(r, newFailure("Failed to decode video", err))
		return false
	}
	t := videos[0].CurrentTime()
	p.publish(Progress{Status: StatusEncoding, Percent: encodingPercent(t, r.duration), Message: "Recording"})

	if p.ended(r, videos, t) {
		p.finalizeLocked(r)
		return false
	}
	return true
}

func (p *Pipeline) ended(r *run, videos []playback.Video, t time.Duration) bool {
	if r.opts.MaxDuration > 0 && t >= r.opts.MaxDuration {
		return true
	}
	for _, v := range videos {
		if !v.Ended() {
			return false
		}
	}
	return true
}

// encodingPercent maps media time onto the 10-90% band reserved for
// recording.
func encodingPercent(t, d time.Duration) float64 {
	if d <= 0 {
		return 10
	}
	return min(10+80*float64(t)/float64(d), 90)
}

func (p *Pipeline) finalizeLocked(r *run) {
	p.stopRecorder(r)
	p.restore(r)

	src, ext := r.tmpPath, r.codec.Container
	if r.transcode {
		p.publish(Progress{Status: StatusEncoding, Percent: 92, Message: "Converting to MP4"})
		out := filepath.Join(r.opts.Dir, fmt.Sprintf(".%s-%s.mp4", r.opts.AppName, uuid.NewString()))
		if err := p.tc.Transcode(r.ctx, src, out, r.opts.Quality.Bitrate(), r.duration); err != nil {
			_ = os.Remove(src)
			_ = os.Remove(out)
			p.failLocked(r, newFailure("Failed to convert to MP4", err))
			return
		}
		_ = os.Remove(src)
		src, ext = out, "mp4"
	}
	if ext == "mp4" {
		if err := p.verify(src); err != nil {
			_ = os.Remove(src)
			p.failLocked(r, newFailure("Recorded file is not a valid MP4", err))
			return
		}
	}
	dest := filepath.Join(r.opts.Dir, FileName(r.opts.AppName, p.now(), ext))
	if err := os.Rename(src, dest); err != nil {
		_ = os.Remove(src)
		p.failLocked(r, newFailure("Failed to save export", err))
		return
	}
	r.path = dest
	r.finished = true
	p.publish(Progress{Status: StatusComplete, Percent: 100, Message: "Export complete", Path: dest})
	p.metrics.run(r.ctx, "complete", time.Since(r.started))
	if p.notifier != nil {
		p.notifier.ExportComplete(dest, r.lastFrame)
	}
	p.close(r)
}

func (p *Pipeline) stopRecorder(r *run) {
	if !r.recording {
		return
	}
	r.recording = false
	if err := p.recorder.Stop(); err != nil {
		p.log.Warn().Err(err).Msg("stop recorder")
	}
}

// restore puts every video back the way the user left it, paused. Runs that
// failed before taking over any video leave playback untouched.
func (p *Pipeline) restore(r *run) {
	if len(r.saved) == 0 {
		return
	}
	for _, s := range r.saved {
		s.video.Pause()
		s.video.SetPlaybackRate(s.rate)
		s.video.SetMuted(s.muted)
	}
	r.saved = nil
	p.sync.Pause()
}

func (p *Pipeline) cleanupLocked(r *run) {
	p.stopRecorder(r)
	if r.tmpPath != "" {
		if err := os.Remove(r.tmpPath); err != nil && !os.IsNotExist(err) {
			p.log.Warn().Err(err).Str("path", r.tmpPath).Msg("remove partial export")
		}
	}
	p.restore(r)
}

func (p *Pipeline) failLocked(r *run, err error) {
	if r.finished {
		return
	}
	p.cleanupLocked(r)
	if r.cancelled.Load() {
		p.log.Debug().Err(err).Msg("export step failed after cancel")
		p.finishCancelledLocked(r)
		return
	}
	var f *Failure
	if !errors.As(err, &f) {
		f = newFailure("Export failed", err)
	}
	r.err = f
	r.finished = true
	p.publish(Progress{Status: StatusError, Message: f.Summary, Err: f})
	p.metrics.run(r.ctx, "error", time.Since(r.started))
	if p.notifier != nil {
		p.notifier.ExportFailed(f.Summary)
	}
	p.close(r)
}

// Cancel aborts the active export. It is safe to call from any goroutine
// and is a no-op when nothing is running. Cancel returns once the partial
// file is gone and the videos are restored.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	r := p.run
	p.mu.Unlock()
	if r == nil || r.isDone() {
		return
	}
	if !r.cancelled.CompareAndSwap(false, true) {
		return
	}
	r.cancelCtx()
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	if r.finished {
		return
	}
	p.cleanupLocked(r)
	p.finishCancelledLocked(r)
}

func (p *Pipeline) finishCancelledLocked(r *run) {
	if r.finished {
		return
	}
	r.err = ErrCancelled
	r.finished = true
	p.publish(Progress{Status: StatusIdle, Message: "Export cancelled"})
	p.metrics.run(context.Background(), "cancelled", time.Since(r.started))
	p.close(r)
}

func (p *Pipeline) close(r *run) {
	r.cancelCtx()
	if r.comp != nil {
		r.comp.close()
	}
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// Layout returns the canvas geometry an export with opts would use.
func (p *Pipeline) Layout(opts Options) (Layout, error) {
	opts = opts.normalized()
	v0 := p.sync.Video(annotation.ChannelBefore)
	if v0 == nil {
		return Layout{}, playback.ErrNoVideo
	}
	if v1 := p.sync.Video(annotation.ChannelAfter); v1 != nil && !opts.Single {
		return ComparisonLayout(v0.Size(), v1.Size(), float64(opts.Gap)), nil
	}
	return SingleLayout(v0.Size()), nil
}
