package export

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/swimlens/internal/annotation"
	"github.com/example/swimlens/internal/geometry"
	"github.com/example/swimlens/internal/media"
	"github.com/example/swimlens/internal/playback"
	"github.com/example/swimlens/internal/playback/playbacktest"
	"github.com/example/swimlens/internal/render"
)

func mp4Box(typ string, payload []byte) []byte {
	out := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint32(out, uint32(8+len(payload)))
	copy(out[4:], typ)
	return append(out, payload...)
}

func minimalMP4() []byte {
	return bytes.Join([][]byte{mp4Box("ftyp", []byte("isom")), mp4Box("moov", nil)}, nil)
}

type fakeRecorder struct {
	mu        sync.Mutex
	supported map[string]bool
	startErr  error
	writeErr  error

	path    string
	codec   media.Codec
	size    image.Point
	frames  []*image.RGBA
	started bool
	stopped bool
}

func newFakeRecorder(codecs ...string) *fakeRecorder {
	r := &fakeRecorder{supported: map[string]bool{}}
	for _, c := range codecs {
		r.supported[c] = true
	}
	return r
}

func (r *fakeRecorder) Supported(c media.Codec) bool { return r.supported[c.String()] }

func (r *fakeRecorder) Start(path string, c media.Codec, fps float64, w, h int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return err
	}
	r.path, r.codec, r.size, r.started = path, c, image.Pt(w, h), true
	return nil
}

func (r *fakeRecorder) WriteFrame(img image.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	cp := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(cp, cp.Bounds(), img, img.Bounds().Min, draw.Src)
	r.frames = append(r.frames, cp)
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.codec.Container == "mp4" {
		return os.WriteFile(r.path, minimalMP4(), 0o644)
	}
	return os.WriteFile(r.path, []byte("webm"), 0o644)
}

type fakeTranscoder struct {
	available bool
	err       error
	bitrate   int64
	calls     int

	// started, when set, is closed once Transcode is entered; Transcode
	// then waits for ctx to end.
	started chan struct{}
}

func (f *fakeTranscoder) Available() bool { return f.available }

func (f *fakeTranscoder) Transcode(ctx context.Context, in, out string, bitrate int64, _ time.Duration) error {
	f.calls++
	f.bitrate = bitrate
	if f.started != nil {
		close(f.started)
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	if _, err := os.Stat(in); err != nil {
		return err
	}
	return os.WriteFile(out, minimalMP4(), 0o644)
}

type fakeNotifier struct {
	mu       sync.Mutex
	complete []string
	failed   []string
}

func (n *fakeNotifier) ExportComplete(path string, _ image.Image) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.complete = append(n.complete, path)
}

func (n *fakeNotifier) ExportFailed(summary string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, summary)
}

type fixture struct {
	sync     *playback.Synchronizer
	store    *annotation.Store
	rec      *fakeRecorder
	sched    *playback.ManualScheduler
	pipeline *Pipeline
	dir      string
	v0, v1   *playbacktest.Video
}

func newFixture(t *testing.T, rec *fakeRecorder, opts ...Option) *fixture {
	t.Helper()
	engine, err := render.NewEngine()
	require.NoError(t, err)
	f := &fixture{
		sync:  playback.NewSynchronizer(),
		store: annotation.NewStore(),
		rec:   rec,
		sched: &playback.ManualScheduler{},
		dir:   t.TempDir(),
	}
	f.v0 = playbacktest.New(64, 48, time.Second)
	f.sync.SetSource(annotation.ChannelBefore, f.v0, media.Source{URL: "before.mp4"})
	opts = append([]Option{
		WithScheduler(func(context.Context) playback.Scheduler { return f.sched }),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	}, opts...)
	f.pipeline = NewPipeline(f.sync, f.store, engine, rec, opts...)
	return f
}

func (f *fixture) options() Options {
	o := DefaultOptions()
	o.Dir = f.dir
	return o
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func isArrowGreen(c color.RGBA) bool { return c.G > 0x80 && c.R < 0x60 }

func TestSingleChannelExportShowsArrowFromItsTimestamp(t *testing.T) {
	f := newFixture(t, newFakeRecorder("mp4/avc1"))
	f.store.AddArrow(annotation.Arrow{
		Start: geometry.Pt(8, 24), End: geometry.Pt(56, 24),
		Color: color.RGBA{0x10, 0xb9, 0x81, 0xff}, Thickness: 4,
		Timestamp: 500 * time.Millisecond, Channel: annotation.ChannelBefore,
	})

	var statuses []Status
	f.pipeline.OnProgress(func(p Progress) { statuses = append(statuses, p.Status) })
	require.NoError(t, f.pipeline.Start(context.Background(), f.options()))
	f.sched.RunUntilIdle(1000)
	path, err := f.pipeline.Wait()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "swimlens-video-1700000000000.mp4"), path)
	assert.Equal(t, []string{"swimlens-video-1700000000000.mp4"}, f.files(t))
	assert.Equal(t, image.Pt(64, 48), f.rec.size)
	assert.True(t, f.rec.stopped)
	require.Greater(t, len(f.rec.frames), 20)

	assert.False(t, isArrowGreen(f.rec.frames[10].RGBAAt(32, 24)), "arrow must not show before 500ms")
	assert.True(t, isArrowGreen(f.rec.frames[20].RGBAAt(32, 24)), "arrow must show after 500ms")

	assert.Equal(t, StatusPreparing, statuses[0])
	assert.Equal(t, StatusComplete, statuses[len(statuses)-1])
	assert.Equal(t, 100.0, f.pipeline.Progress().Percent)

	assert.Equal(t, 1.0, f.v0.PlaybackRate(), "rate is restored")
	assert.False(t, f.v0.Muted(), "mute is restored")
	assert.True(t, f.v0.Paused())
}

func TestExcludeAnnotations(t *testing.T) {
	f := newFixture(t, newFakeRecorder("mp4/avc1"))
	f.store.AddArrow(annotation.Arrow{
		Start: geometry.Pt(8, 24), End: geometry.Pt(56, 24),
		Color: color.RGBA{0x10, 0xb9, 0x81, 0xff}, Thickness: 4,
	})
	opts := f.options()
	opts.IncludeAnnotations = false
	require.NoError(t, f.pipeline.Start(context.Background(), opts))
	f.sched.RunUntilIdle(1000)
	_, err := f.pipeline.Wait()
	require.NoError(t, err)
	assert.False(t, isArrowGreen(f.rec.frames[5].RGBAAt(32, 24)))
}

func TestComparisonLayoutRemapsSecondChannel(t *testing.T) {
	l := ComparisonLayout(geometry.Size{W: 100, H: 100}, geometry.Size{W: 100, H: 100}, 16)
	assert.Equal(t, 216, l.Width)
	assert.Equal(t, 100, l.Height)
	require.Len(t, l.Panels, 2)
	assert.Equal(t, geometry.Pt(216, 0), l.Panels[1].Transform.Apply(geometry.Pt(100, 0)))
	assert.Equal(t, geometry.Pt(100, 0), l.Panels[0].Transform.Apply(geometry.Pt(100, 0)))

	// A narrower second video is pillarboxed inside its half.
	l = ComparisonLayout(geometry.Size{W: 100, H: 100}, geometry.Size{W: 50, H: 100}, 16)
	p := l.Panels[1]
	assert.InDelta(t, 25, p.Fit.X-p.Bounds.X, 1e-9)
	assert.Equal(t, geometry.Pt(151, 10), p.Transform.Apply(geometry.Pt(10, 10)))

	// A shorter primary is letterboxed to the taller height.
	l = ComparisonLayout(geometry.Size{W: 100, H: 50}, geometry.Size{W: 100, H: 100}, 10)
	assert.Equal(t, 100, l.Height)
	assert.InDelta(t, 25, l.Panels[0].Fit.Y, 1e-9)
}

func TestComparisonExportDrawsChannelsInTheirPanels(t *testing.T) {
	f := newFixture(t, newFakeRecorder("mp4/avc1"))
	f.v0 = playbacktest.New(100, 100, 500*time.Millisecond)
	f.v1 = playbacktest.New(100, 100, 300*time.Millisecond)
	f.sync.SetSource(annotation.ChannelBefore, f.v0, media.Source{})
	f.sync.SetSource(annotation.ChannelAfter, f.v1, media.Source{})
	f.store.AddArrow(annotation.Arrow{
		Start: geometry.Pt(10, 70), End: geometry.Pt(90, 70),
		Color: color.RGBA{0x10, 0xb9, 0x81, 0xff}, Thickness: 4,
		Channel: annotation.ChannelAfter,
	})

	require.NoError(t, f.pipeline.Start(context.Background(), f.options()))
	f.sched.RunUntilIdle(1000)
	_, err := f.pipeline.Wait()
	require.NoError(t, err)

	assert.Equal(t, image.Pt(216, 100), f.rec.size)
	frame := f.rec.frames[1]
	assert.True(t, isArrowGreen(frame.RGBAAt(166, 70)), "after-channel arrow lands in the right panel")
	assert.False(t, isArrowGreen(frame.RGBAAt(50, 70)), "after-channel arrow stays out of the left panel")
	assert.True(t, f.v1.Ended())
	assert.True(t, f.v0.Ended(), "export runs until the longer video ends")
}

func TestCancelRestoresStateAndDiscardsFile(t *testing.T) {
	f := newFixture(t, newFakeRecorder("mp4/avc1"))
	f.v0.SetPlaybackRate(1)
	f.v0.SetMuted(false)

	require.NoError(t, f.pipeline.Start(context.Background(), f.options()))
	f.sched.Step()
	assert.Equal(t, 16.0, f.v0.PlaybackRate(), "export rate applied while recording")
	assert.True(t, f.v0.Muted())
	f.sched.Step()
	f.sched.Step()

	f.pipeline.Cancel()
	_, err := f.pipeline.Wait()
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	assert.Equal(t, 1.0, f.v0.PlaybackRate())
	assert.False(t, f.v0.Muted())
	assert.True(t, f.v0.Paused())
	assert.True(t, f.rec.stopped)
	assert.Empty(t, f.files(t), "no file is left behind")
	assert.Equal(t, StatusIdle, f.pipeline.Progress().Status)

	frames := len(f.rec.frames)
	f.sched.RunUntilIdle(10)
	assert.Equal(t, frames, len(f.rec.frames), "no frames after cancel")
}

func TestNoSupportedFormat(t *testing.T) {
	f := newFixture(t, newFakeRecorder())
	err := f.pipeline.Start(context.Background(), f.options())
	require.ErrorIs(t, err, ErrNoSupportedFormat)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "No supported video format", failure.Summary)
	assert.Equal(t, StatusError, f.pipeline.Progress().Status)
	assert.False(t, f.rec.started)
}

func TestPlayFailureStopsRecorder(t *testing.T) {
	f := newFixture(t, newFakeRecorder("mp4/avc1"))
	f.v0.PlayErr = errors.New("autoplay denied")

	err := f.pipeline.Start(context.Background(), f.options())
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "Failed to start playback", failure.Summary)
	assert.Contains(t, failure.Detail, "autoplay denied")
	assert.True(t, f.rec.stopped, "recorder is never left running")
	assert.Empty(t, f.files(t))
	assert.Equal(t, 1.0, f.v0.PlaybackRate())
	assert.False(t, f.v0.Muted())
}

func TestWriteFailure(t *testing.T) {
	rec := newFakeRecorder("mp4/avc1")
	rec.writeErr = errors.New("disk full")
	f := newFixture(t, rec)
	require.NoError(t, f.pipeline.Start(context.Background(), f.options()))
	f.sched.RunUntilIdle(10)
	_, err := f.pipeline.Wait()
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "Failed to write frame", failure.Summary)
	assert.Empty(t, f.files(t))
}

func TestBusyWhileRunning(t *testing.T) {
	f := newFixture(t, newFakeRecorder("mp4/avc1"))
	require.NoError(t, f.pipeline.Start(context.Background(), f.options()))
	assert.ErrorIs(t, f.pipeline.Start(context.Background(), f.options()), ErrBusy)
	f.pipeline.Cancel()
	_, err := f.pipeline.Wait()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestWebMTranscodedToMP4(t *testing.T) {
	tc := &fakeTranscoder{available: true}
	f := newFixture(t, newFakeRecorder("webm/VP90"), WithTranscoder(tc))
	opts := f.options()
	opts.Format = FormatMP4
	opts.Quality = QualityHigh

	require.NoError(t, f.pipeline.Start(context.Background(), opts))
	f.sched.RunUntilIdle(1000)
	path, err := f.pipeline.Wait()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".mp4"))
	assert.Equal(t, 1, tc.calls)
	assert.Equal(t, int64(10_000_000), tc.bitrate)
	assert.Len(t, f.files(t), 1, "intermediate webm is removed")
}

func TestTranscodeFailureRestoresVideo(t *testing.T) {
	tc := &fakeTranscoder{available: true, err: errors.New("ffmpeg exited with status 1")}
	n := &fakeNotifier{}
	f := newFixture(t, newFakeRecorder("webm/VP90"), WithTranscoder(tc), WithNotifier(n))
	f.v0.SetPlaybackRate(0.5)
	f.v0.SetMuted(false)
	opts := f.options()
	opts.Format = FormatMP4

	require.NoError(t, f.pipeline.Start(context.Background(), opts))
	f.sched.RunUntilIdle(1000)
	path, err := f.pipeline.Wait()
	assert.Empty(t, path)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "Failed to convert to MP4", failure.Summary)
	assert.Contains(t, failure.Detail, "ffmpeg exited with status 1")

	pr := f.pipeline.Progress()
	assert.Equal(t, StatusError, pr.Status)
	require.NotNil(t, pr.Err)
	assert.Equal(t, failure.Summary, pr.Err.Summary)

	assert.Equal(t, 1, tc.calls)
	assert.True(t, f.rec.stopped)
	assert.Empty(t, f.files(t), "webm and partial mp4 are removed")
	assert.Equal(t, 0.5, f.v0.PlaybackRate())
	assert.False(t, f.v0.Muted())
	assert.True(t, f.v0.Paused())
	assert.Equal(t, []string{"Failed to convert to MP4"}, n.failed)
}

func TestCancelDuringTranscodeIsCancelled(t *testing.T) {
	tc := &fakeTranscoder{available: true, started: make(chan struct{})}
	n := &fakeNotifier{}
	f := newFixture(t, newFakeRecorder("webm/VP90"), WithTranscoder(tc), WithNotifier(n))
	opts := f.options()
	opts.Format = FormatMP4

	require.NoError(t, f.pipeline.Start(context.Background(), opts))
	go f.sched.RunUntilIdle(1000)
	select {
	case <-tc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("transcode never started")
	}

	f.pipeline.Cancel()
	_, err := f.pipeline.Wait()
	require.ErrorIs(t, err, ErrCancelled)
	var failure *Failure
	assert.False(t, errors.As(err, &failure))
	assert.Equal(t, StatusIdle, f.pipeline.Progress().Status)
	assert.Empty(t, f.files(t))
	assert.Empty(t, n.failed, "a cancel is not reported as a failure")
	assert.Empty(t, n.complete)
}

func TestSingleExportLeavesSecondChannelPosition(t *testing.T) {
	f := newFixture(t, newFakeRecorder("mp4/avc1"))
	f.v1 = playbacktest.New(64, 48, 2*time.Second)
	f.sync.SetSource(annotation.ChannelAfter, f.v1, media.Source{})
	require.NoError(t, f.sync.Seek(700*time.Millisecond))

	opts := f.options()
	opts.Single = true
	require.NoError(t, f.pipeline.Start(context.Background(), opts))
	f.sched.RunUntilIdle(1000)
	_, err := f.pipeline.Wait()
	require.NoError(t, err)

	assert.Equal(t, image.Pt(64, 48), f.rec.size)
	assert.True(t, f.v0.Ended())
	assert.Equal(t, 700*time.Millisecond, f.v1.CurrentTime(), "unexported channel is not rewound")
}

func TestPrepareFailureLeavesPlaybackAlone(t *testing.T) {
	f := newFixture(t, newFakeRecorder())
	require.NoError(t, f.sync.Play())

	err := f.pipeline.Start(context.Background(), f.options())
	require.ErrorIs(t, err, ErrNoSupportedFormat)
	assert.False(t, f.v0.Paused(), "playback continues after a failed prepare")
}

func TestWebMKeptWithoutTranscoder(t *testing.T) {
	f := newFixture(t, newFakeRecorder("webm/VP80"))
	opts := f.options()
	opts.Format = FormatMP4
	require.NoError(t, f.pipeline.Start(context.Background(), opts))
	f.sched.RunUntilIdle(1000)
	path, err := f.pipeline.Wait()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".webm"))
}

func TestResolveCodecPrefersRequestedContainer(t *testing.T) {
	f := newFixture(t, newFakeRecorder("mp4/mp4v", "webm/VP90"))
	c, transcode, err := f.pipeline.resolveCodec(Options{Format: FormatWebM})
	require.NoError(t, err)
	assert.Equal(t, "webm/VP90", c.String())
	assert.False(t, transcode)

	c, _, err = f.pipeline.resolveCodec(Options{Format: FormatAuto})
	require.NoError(t, err)
	assert.Equal(t, "mp4/mp4v", c.String())
}

func TestEncodingPercent(t *testing.T) {
	assert.Equal(t, 10.0, encodingPercent(0, 10*time.Second))
	assert.Equal(t, 50.0, encodingPercent(5*time.Second, 10*time.Second))
	assert.Equal(t, 90.0, encodingPercent(10*time.Second, 10*time.Second))
	assert.Equal(t, 90.0, encodingPercent(20*time.Second, 10*time.Second))
	assert.Equal(t, 10.0, encodingPercent(time.Second, 0))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "swimlens-video-1700000000000.webm", FileName("swimlens", time.UnixMilli(1700000000000), "webm"))
}

func TestParseOptions(t *testing.T) {
	q, err := ParseQuality("HIGH")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), q.Bitrate())
	assert.Equal(t, int64(2_500_000), QualityLow.Bitrate())
	_, err = ParseQuality("ultra")
	assert.Error(t, err)

	fm, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, fm)
	_, err = ParseFormat("avi")
	assert.Error(t, err)
}
