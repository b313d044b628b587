package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hszk-dev/clipstream/internal/procgroup"
)

// FFmpegConfig holds configuration for the FFmpeg transcoder.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// VideoCodec is the video codec to use.
	// Default: libx264
	VideoCodec string

	// VideoPreset controls the encoding speed/quality tradeoff.
	// Options: ultrafast, superfast, veryfast, faster, fast, medium, slow, slower, veryslow
	// Default: fast
	VideoPreset string

	// AudioCodec is the audio codec to use.
	// Default: aac
	AudioCodec string

	// KillGrace is the time between SIGTERM and SIGKILL on cancellation.
	KillGrace time.Duration
}

// DefaultFFmpegConfig returns an FFmpegConfig with production-ready defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath:  "ffmpeg",
		VideoCodec:  "libx264",
		VideoPreset: "fast",
		AudioCodec:  "aac",
		KillGrace:   procgroup.DefaultGrace,
	}
}

// FFmpegTranscoder implements Transcoder using FFmpeg CLI.
type FFmpegTranscoder struct {
	config FFmpegConfig
}

// Compile-time verification that FFmpegTranscoder implements Transcoder.
var _ Transcoder = (*FFmpegTranscoder)(nil)

// NewFFmpegTranscoder creates a new FFmpeg-based transcoder.
func NewFFmpegTranscoder(cfg FFmpegConfig) *FFmpegTranscoder {
	return &FFmpegTranscoder{
		config: cfg,
	}
}

// TranscodeClip cuts and encodes one clip, running ffmpeg in its own process group.
func (t *FFmpegTranscoder) TranscodeClip(ctx context.Context, req ClipRequest) error {
	if err := t.validateInput(req.InputPath); err != nil {
		return err
	}

	if err := t.validateOutputDir(filepath.Dir(req.OutputPath)); err != nil {
		return err
	}

	args := t.buildClipArgs(req)

	var stderr bytes.Buffer
	cmd := exec.Command(t.config.FFmpegPath, args...)
	cmd.Stdout = nil // Discard stdout
	cmd.Stderr = &stderr

	if err := procgroup.Run(ctx, cmd, t.config.KillGrace); err != nil {
		_ = os.Remove(req.OutputPath)
		if ctx.Err() != nil {
			return fmt.Errorf("transcoding cancelled: %w", ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg execution failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	return nil
}

// validateInput checks if the input file exists and is readable.
func (t *FFmpegTranscoder) validateInput(inputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", inputPath)
		}
		return fmt.Errorf("failed to access input file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", inputPath)
	}

	return nil
}

// validateOutputDir checks if the output directory exists.
func (t *FFmpegTranscoder) validateOutputDir(outputDir string) error {
	info, err := os.Stat(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", outputDir)
		}
		return fmt.Errorf("failed to access output directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s", outputDir)
	}

	return nil
}

// buildClipArgs constructs the FFmpeg command arguments.
// -ss before -i seeks on the input, which is fast and frame accurate when re-encoding.
func (t *FFmpegTranscoder) buildClipArgs(req ClipRequest) []string {
	vb := req.Spec.VideoBitrate

	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(req.Start),
		"-i", req.InputPath,
		"-t", formatSeconds(req.Duration),
		"-vf", req.FilterChain,
		"-c:v", t.config.VideoCodec,
		"-preset", t.config.VideoPreset,
		"-b:v", strconv.Itoa(vb),
		"-maxrate", strconv.Itoa(vb),
		"-bufsize", strconv.Itoa(vb * 2),
		"-c:a", t.config.AudioCodec,
		"-b:a", strconv.Itoa(req.Spec.AudioBitrate),
		"-movflags", "+faststart",
		"-y", // Overwrite output files without asking
		req.OutputPath,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
