package media

import (
	"context"
)

// SearchResult is one metadata-only search hit.
type SearchResult struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	URL       string   `json:"url"`
}

// Format is one downloadable rendition of a video.
type Format struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution,omitempty"`
	Filesize   int64  `json:"filesize,omitempty"`
	ACodec     string `json:"acodec,omitempty"`
	VCodec     string `json:"vcodec,omitempty"`
	URL        string `json:"url,omitempty"`
}

// StreamFormat picks the format to hand out as a direct stream URL:
// the largest audio-only rendition, else the first one with a URL.
func StreamFormat(formats []Format) (Format, bool) {
	var best Format
	var bestSize int64 = -1
	for _, format := range formats {
		if format.URL == "" {
			continue
		}
		audioOnly := (format.VCodec == "" || format.VCodec == "none") &&
			format.ACodec != "" && format.ACodec != "none"
		if audioOnly && format.Filesize > bestSize {
			best = format
			bestSize = format.Filesize
		}
	}
	if bestSize >= 0 {
		return best, true
	}
	for _, format := range formats {
		if format.URL != "" {
			return format, true
		}
	}
	return Format{}, false
}

type VideoInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Channel     string   `json:"channel,omitempty"`
	ViewCount   int64    `json:"view_count,omitempty"`
	UploadDate  string   `json:"upload_date,omitempty"`
	Formats     []Format `json:"formats,omitempty"`
}

// SizeEstimate reports the expected audio size of a video. When the
// duration cannot be determined the estimate fails closed: Bytes and
// Duration are nil and OverLimit is true.
type SizeEstimate struct {
	Bytes     *int64   `json:"bytes,omitempty"`
	OverLimit bool     `json:"over_limit"`
	Duration  *float64 `json:"duration,omitempty"`
}

// Provider is the external media source. ExtractAudio downloads and
// post-processes to a single MP3 in destDir and returns its path.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
	Info(ctx context.Context, videoID string, brief bool) (*VideoInfo, error)
	SizeEstimate(ctx context.Context, videoID string, maxMB int) (*SizeEstimate, error)
	ExtractAudio(ctx context.Context, videoID string, format string, destDir string) (string, *VideoInfo, error)
}
