package acquisition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hszk-dev/clipstream/internal/domain/model"
	"github.com/hszk-dev/clipstream/internal/procgroup"
)

// YtDlpConfig holds configuration for the yt-dlp acquirer.
type YtDlpConfig struct {
	// BinaryPath is the path to the yt-dlp binary.
	// If empty, "yt-dlp" will be used (assumes it's in PATH).
	BinaryPath string

	// BaseURL is the site root canonical watch URLs are built from.
	BaseURL string

	// VideoFormat is the -f selector for video acquisitions.
	VideoFormat string

	// AudioFormat is the -f selector for audio acquisitions.
	AudioFormat string

	// SocketTimeout bounds each network read inside yt-dlp.
	SocketTimeout time.Duration

	// KillGrace is the time between SIGTERM and SIGKILL on cancellation.
	KillGrace time.Duration
}

// DefaultYtDlpConfig returns a YtDlpConfig with production-ready defaults.
func DefaultYtDlpConfig() YtDlpConfig {
	return YtDlpConfig{
		BinaryPath:    "yt-dlp",
		BaseURL:       "https://www.youtube.com",
		VideoFormat:   "bv*[height<=1920][ext=mp4]+ba[ext=m4a]/b[ext=mp4]/bv*+ba/b",
		AudioFormat:   "ba[ext=m4a]/ba",
		SocketTimeout: 30 * time.Second,
		KillGrace:     procgroup.DefaultGrace,
	}
}

// YtDlpAcquirer implements MediaAcquirer using the yt-dlp CLI.
type YtDlpAcquirer struct {
	config YtDlpConfig
}

// Compile-time verification that YtDlpAcquirer implements MediaAcquirer.
var _ MediaAcquirer = (*YtDlpAcquirer)(nil)

// NewYtDlpAcquirer creates a new yt-dlp based acquirer.
func NewYtDlpAcquirer(cfg YtDlpConfig) *YtDlpAcquirer {
	def := DefaultYtDlpConfig()
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = def.BinaryPath
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.VideoFormat == "" {
		cfg.VideoFormat = def.VideoFormat
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = def.AudioFormat
	}
	return &YtDlpAcquirer{config: cfg}
}

// ytDlpInfo is the subset of the --dump-single-json payload we read.
type ytDlpInfo struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Duration     float64 `json:"duration"`
	Availability string  `json:"availability"`
	LiveStatus   string  `json:"live_status"`
	Ext          string  `json:"ext"`
}

// AcquireWith runs one yt-dlp attempt with the given identity.
func (a *YtDlpAcquirer) AcquireWith(ctx context.Context, req AcquireRequest, s Strategy) (*model.MediaAsset, error) {
	if req.Kind != model.KindMetadata {
		if err := validateOutputDir(req.OutputDir); err != nil {
			return nil, err
		}
	}

	args := a.buildArgs(req, s)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(a.config.BinaryPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := procgroup.Run(ctx, cmd, a.config.KillGrace); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp cancelled: %w", ctx.Err())
		}
		return nil, &ToolError{
			Tool:     "yt-dlp",
			ExitCode: procgroup.ExitCode(err),
			Stderr:   lastLines(stderr.String(), 20),
			Err:      err,
		}
	}

	info, err := parseInfo(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	asset := &model.MediaAsset{
		ResourceID:      req.ResourceID,
		Kind:            req.Kind,
		DurationSeconds: info.Duration,
		Title:           info.Title,
		Container:       info.Ext,
	}
	if req.Kind == model.KindMetadata {
		return asset, nil
	}

	path, size, err := locateOutput(req.OutputBase())
	if err != nil {
		return nil, err
	}
	asset.Path = path
	asset.SizeBytes = size
	asset.Container = strings.TrimPrefix(filepath.Ext(path), ".")
	return asset, nil
}

// buildArgs constructs the yt-dlp command arguments.
func (a *YtDlpAcquirer) buildArgs(req AcquireRequest, s Strategy) []string {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"--user-agent", s.UserAgent,
		"--add-header", "Accept-Language:" + s.AcceptLanguage,
		"--extractor-args", "youtube:player_client=" + s.PlayerClient,
	}

	switch s.IPFamily {
	case IPv4:
		args = append(args, "--force-ipv4")
	case IPv6:
		args = append(args, "--force-ipv6")
	}

	if a.config.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", fmt.Sprintf("%d", int(a.config.SocketTimeout.Seconds())))
	}

	switch req.Kind {
	case model.KindMetadata:
		args = append(args, "--dump-single-json", "--skip-download")
	case model.KindVideo:
		args = append(args,
			"-f", a.config.VideoFormat,
			"--merge-output-format", "mp4",
			"--dump-single-json", "--no-simulate",
			"-o", req.OutputBase()+".%(ext)s",
		)
	case model.KindAudio:
		args = append(args,
			"-f", a.config.AudioFormat,
			"--dump-single-json", "--no-simulate",
			"-o", req.OutputBase()+".%(ext)s",
		)
	}

	return append(args, model.CanonicalURL(a.config.BaseURL, req.ResourceID))
}

// parseInfo decodes the JSON info document and rejects media that cannot be clipped.
func parseInfo(data []byte) (*ytDlpInfo, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty metadata: %w", ErrTransport)
	}

	// Only the last line holds the info document when yt-dlp prints other output first.
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}

	var info ytDlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}

	switch info.Availability {
	case "private", "needs_auth", "premium_only", "subscriber_only":
		return nil, fmt.Errorf("availability %s: %w", info.Availability, ErrUnavailable)
	}
	if info.LiveStatus == "is_live" || info.LiveStatus == "is_upcoming" {
		return nil, fmt.Errorf("live status %s: %w", info.LiveStatus, ErrUnavailable)
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("media reports no duration: %w", ErrUnavailable)
	}

	return &info, nil
}

// locateOutput finds the finished file for an attempt, ignoring fragments.
func locateOutput(base string) (string, int64, error) {
	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return "", 0, fmt.Errorf("glob output: %w", err)
	}

	var best string
	var bestSize int64
	for _, m := range matches {
		if isPartial(m) {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = m, info.Size()
		}
	}

	if best == "" {
		return "", 0, fmt.Errorf("yt-dlp produced no output for %s: %w", filepath.Base(base), ErrTransport)
	}
	return best, bestSize, nil
}

func isPartial(path string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".temp", ".json"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return strings.Contains(filepath.Base(path), ".part-Frag")
}

// validateOutputDir checks if the output directory exists.
func validateOutputDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s: %w", dir, ErrInvalidRequest)
		}
		return fmt.Errorf("failed to access output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s: %w", dir, ErrInvalidRequest)
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
