package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// FFmpeg converts recordings with the ffmpeg command line tool.
type FFmpeg struct {
	Binary string
	// Progress receives a progress bar when set.
	Progress io.Writer
	Log      zerolog.Logger
}

// NewFFmpeg returns a transcoder using binary, or "ffmpeg" from PATH.
func NewFFmpeg(binary string, l zerolog.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary, Log: l}
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := lookPath(f.Binary)
	return err == nil
}

// Args returns the command line used to convert in to an H.264 MP4 at
// bitrate bits per second.
func (f *FFmpeg) Args(in, out string, bitrate int64) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", in, "-c:v", "libx264", "-pix_fmt", "yuv420p", "-movflags", "+faststart"}
	if bitrate > 0 {
		args = append(args, "-b:v", strconv.FormatInt(bitrate, 10))
	}
	return append(args, "-progress", "pipe:1", "-nostats", out)
}

// Transcode converts in to out. total is the expected media duration and
// only drives the progress bar.
func (f *FFmpeg) Transcode(ctx context.Context, in, out string, bitrate int64, total time.Duration) error {
	cmd := exec.CommandContext(ctx, f.Binary, f.Args(in, out, bitrate)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	f.Log.Debug().Strs("args", cmd.Args).Msg("running ffmpeg")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var bar *progressbar.ProgressBar
	if f.Progress != nil && total > 0 {
		bar = progressbar.NewOptions64(total.Milliseconds(),
			progressbar.OptionSetWriter(f.Progress),
			progressbar.OptionSetDescription("transcoding"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		ms, ok := parseProgress(sc.Text())
		if ok && bar != nil {
			_ = bar.Set64(min(ms, total.Milliseconds()))
		}
	}
	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return nil
}

// parseProgress extracts the encoded position in milliseconds from a
// "-progress" key=value line. ffmpeg reports out_time_ms in microseconds.
func parseProgress(line string) (int64, bool) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || (key != "out_time_us" && key != "out_time_ms") {
		return 0, false
	}
	us, err := strconv.ParseInt(val, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return us / 1000, true
}
