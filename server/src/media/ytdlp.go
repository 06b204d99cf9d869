package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bgocumlu/juke/server/src/logger"
)

const (
	DefaultFormat = "bestaudio/best"

	// Estimation constants: audio is re-encoded at 192 kbps; a known
	// filesize gets a 20% buffer, a bitrate-derived one gets 30%.
	audioBitrateBitsPerSecond = 192_000
	knownSizeBuffer           = 1.2
	estimatedSizeBuffer       = 1.3
)

// Runner executes the yt-dlp binary. Tests replace it so no subprocess
// is ever spawned.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

type execRunner struct {
	binary string
}

func (runner execRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	command := exec.CommandContext(ctx, runner.binary, args...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", runner.binary, strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// YTDLP wraps the yt-dlp binary as a Provider.
type YTDLP struct {
	runner Runner
}

func NewYTDLP() *YTDLP {
	return &YTDLP{runner: execRunner{binary: "yt-dlp"}}
}

func NewYTDLPWithRunner(runner Runner) *YTDLP {
	return &YTDLP{runner: runner}
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ThumbnailURL is deterministic from the id; the provider is not
// trusted to return one.
func ThumbnailURL(videoID string) string {
	return "https://img.youtube.com/vi/" + videoID + "/hqdefault.jpg"
}

func (ytdlp *YTDLP) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults < 1 {
		maxResults = 10
	}

	out, err := ytdlp.runner.Run(ctx,
		"--quiet", "--no-warnings",
		"--flat-playlist", "--skip-download",
		"--dump-json",
		fmt.Sprintf("ytsearch%d:%s", maxResults, query),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	// One JSON object per line.
	results := make([]SearchResult, 0, maxResults)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry struct {
			ID       string   `json:"id"`
			Title    string   `json:"title"`
			Duration *float64 `json:"duration"`
			Channel  string   `json:"channel"`
			Uploader string   `json:"uploader"`
			URL      string   `json:"url"`
		}
		if err := json.Unmarshal(line, &entry); err != nil {
			logger.Debugw("Skipping unparsable search entry", "error", err)
			continue
		}
		if entry.ID == "" {
			continue
		}

		channel := entry.Channel
		if channel == "" {
			channel = entry.Uploader
		}
		url := entry.URL
		if url == "" {
			url = watchURL(entry.ID)
		}

		results = append(results, SearchResult{
			ID:        entry.ID,
			Title:     entry.Title,
			Duration:  entry.Duration,
			Thumbnail: ThumbnailURL(entry.ID),
			Channel:   channel,
			URL:       url,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("search: scan output: %w", err)
	}

	return results, nil
}

func (ytdlp *YTDLP) Info(ctx context.Context, videoID string, brief bool) (*VideoInfo, error) {
	out, err := ytdlp.runner.Run(ctx,
		"--quiet", "--no-warnings", "--skip-download",
		"--dump-json",
		watchURL(videoID),
	)
	if err != nil {
		return nil, fmt.Errorf("info %s: %w", videoID, err)
	}

	var info VideoInfo
	if err := json.Unmarshal(bytes.TrimSpace(out), &info); err != nil {
		return nil, fmt.Errorf("info %s: decode: %w", videoID, err)
	}
	if info.ID == "" {
		info.ID = videoID
	}
	if info.Thumbnail == "" {
		info.Thumbnail = ThumbnailURL(videoID)
	}
	if brief {
		info.Formats = nil
	}

	return &info, nil
}

func (ytdlp *YTDLP) SizeEstimate(ctx context.Context, videoID string, maxMB int) (*SizeEstimate, error) {
	info, err := ytdlp.Info(ctx, videoID, false)
	if err != nil {
		return nil, err
	}

	return EstimateFromInfo(info, maxMB), nil
}

// EstimateFromInfo prefers a reported audio-only filesize; otherwise it
// derives one from the duration and the target bitrate. Unknown
// duration fails closed.
func EstimateFromInfo(info *VideoInfo, maxMB int) *SizeEstimate {
	limit := int64(maxMB) * 1024 * 1024

	if size := bestAudioFilesize(info.Formats); size > 0 {
		buffered := int64(float64(size) * knownSizeBuffer)
		return &SizeEstimate{
			Bytes:     &buffered,
			OverLimit: buffered > limit,
			Duration:  info.Duration,
		}
	}

	if info.Duration == nil {
		return &SizeEstimate{OverLimit: true}
	}

	raw := *info.Duration * audioBitrateBitsPerSecond / 8
	buffered := int64(raw * estimatedSizeBuffer)
	return &SizeEstimate{
		Bytes:     &buffered,
		OverLimit: buffered > limit,
		Duration:  info.Duration,
	}
}

func bestAudioFilesize(formats []Format) int64 {
	var best int64
	for _, format := range formats {
		if format.VCodec != "" && format.VCodec != "none" {
			continue
		}
		if format.ACodec == "" || format.ACodec == "none" {
			continue
		}
		if format.Filesize > best {
			best = format.Filesize
		}
	}
	return best
}

func (ytdlp *YTDLP) ExtractAudio(ctx context.Context, videoID string, format string, destDir string) (string, *VideoInfo, error) {
	if format == "" {
		format = DefaultFormat
	}

	info, err := ytdlp.Info(ctx, videoID, true)
	if err != nil {
		return "", nil, err
	}

	outputTemplate := filepath.Join(destDir, "%(id)s.%(ext)s")
	_, err = ytdlp.runner.Run(ctx,
		"--quiet", "--no-warnings",
		"-f", format,
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"-o", outputTemplate,
		watchURL(videoID),
	)
	if err != nil {
		return "", nil, fmt.Errorf("extract %s: %w", videoID, err)
	}

	return filepath.Join(destDir, videoID+".mp3"), info, nil
}
