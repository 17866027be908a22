package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ytrelay/internal/retry"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 10 * time.Minute
)

var channelIDRegex = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)

// YtdlpLister implements VideoLister using yt-dlp as a subprocess with
// flat-playlist JSON output.
type YtdlpLister struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout is the maximum time to wait for yt-dlp. Defaults to 10 minutes.
	Timeout time.Duration

	// ExtraArgs are additional arguments to pass to yt-dlp.
	ExtraArgs []string

	// RetryConfig holds retry behavior configuration.
	RetryConfig *retry.Config
}

// NewYtdlpLister creates a new yt-dlp based video lister.
func NewYtdlpLister() *YtdlpLister {
	cfg := retry.DefaultConfig()
	return &YtdlpLister{
		Path:        defaultYtdlpPath,
		Timeout:     defaultYtdlpTimeout,
		RetryConfig: &cfg,
	}
}

// ListVideos fetches the newest videos from the channel using yt-dlp.
func (y *YtdlpLister) ListVideos(ctx context.Context, channelURL string, opts *ListOptions) ([]Candidate, error) {
	if err := y.checkInstalled(ctx); err != nil {
		return nil, err
	}

	cfg := y.RetryConfig
	if cfg == nil {
		defaultCfg := retry.DefaultConfig()
		cfg = &defaultCfg
	}

	var videos []Candidate
	err := retry.Do(ctx, *cfg, ytdlpErrorClassifier, func(ctx context.Context) error {
		url := normalizeChannelURL(channelURL)

		args := []string{
			"--flat-playlist",
			"-J", // JSON output
			"--no-warnings",
		}
		if opts != nil && opts.MaxResults > 0 {
			args = append(args, "--playlist-end", strconv.Itoa(opts.MaxResults))
		}
		args = append(args, y.ExtraArgs...)
		args = append(args, url)

		timeout := y.Timeout
		if timeout == 0 {
			timeout = defaultYtdlpTimeout
		}
		cmdCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(cmdCtx, y.path(), args...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err != nil {
			if cmdCtx.Err() == context.DeadlineExceeded {
				return &ListerError{Source: "ytdlp", Channel: channelURL, Err: ErrNetworkTimeout}
			}
			if cmdCtx.Err() == context.Canceled {
				return &ListerError{Source: "ytdlp", Channel: channelURL, Err: context.Canceled}
			}

			// Check for common error patterns in stderr
			errMsg := stderr.String()
			if strings.Contains(errMsg, "not found") || strings.Contains(errMsg, "does not exist") {
				return &ListerError{Source: "ytdlp", Channel: channelURL, Err: ErrChannelNotFound}
			}
			if strings.Contains(errMsg, "rate") || strings.Contains(errMsg, "429") {
				return &ListerError{Source: "ytdlp", Channel: channelURL, Err: ErrRateLimited}
			}

			return &ListerError{Source: "ytdlp", Channel: channelURL,
				Err: fmt.Errorf("yt-dlp failed: %w: %s", err, errMsg)}
		}

		parsed, parseErr := parseYtdlpListing(stdout.Bytes())
		if parseErr != nil {
			return &ListerError{Source: "ytdlp", Channel: channelURL, Err: parseErr}
		}
		videos = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return videos, nil
}

// checkInstalled verifies that yt-dlp is available.
func (y *YtdlpLister) checkInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, y.path(), "--version")
	if err := cmd.Run(); err != nil {
		return &ListerError{Source: "ytdlp", Channel: "", Err: ErrYtdlpNotInstalled}
	}
	return nil
}

func (y *YtdlpLister) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}

// normalizeChannelURL ensures the URL points to the channel's videos tab.
func normalizeChannelURL(url string) string {
	// If it's just a channel ID, construct full URL
	if channelIDRegex.MatchString(url) && !strings.Contains(url, "youtube.com") {
		return "https://www.youtube.com/channel/" + url + "/videos"
	}

	if strings.Contains(url, "/videos") {
		return url
	}

	url = strings.TrimSuffix(url, "/")
	return url + "/videos"
}

// ytdlpPlaylist represents yt-dlp's JSON output for a channel listing.
type ytdlpPlaylist struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Uploader string       `json:"uploader"`
	Entries  []ytdlpEntry `json:"entries"`
}

// ytdlpEntry represents a single video in yt-dlp's JSON output.
type ytdlpEntry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Uploader   string `json:"uploader"`
	UploadDate string `json:"upload_date"` // YYYYMMDD format
	Timestamp  int64  `json:"timestamp"`   // Unix timestamp
	LiveStatus string `json:"live_status"` // "is_upcoming" for scheduled premieres
}

// parseYtdlpListing parses yt-dlp's JSON output into candidates.
// Upcoming premieres are skipped: there is nothing to download yet.
func parseYtdlpListing(data []byte) ([]Candidate, error) {
	var playlist ytdlpPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	videos := make([]Candidate, 0, len(playlist.Entries))
	for _, entry := range playlist.Entries {
		if entry.LiveStatus == "is_upcoming" {
			continue
		}
		videos = append(videos, Candidate{
			ID:          entry.ID,
			Title:       entry.Title,
			ChannelName: coalesce(entry.Uploader, playlist.Uploader, playlist.Title),
			Published:   parseYtdlpDate(entry),
		})
	}

	return videos, nil
}

// parseYtdlpDate extracts the published time from a yt-dlp entry.
func parseYtdlpDate(entry ytdlpEntry) time.Time {
	// Prefer timestamp if available
	if entry.Timestamp > 0 {
		return time.Unix(entry.Timestamp, 0).UTC()
	}

	// Fall back to upload_date (YYYYMMDD)
	if entry.UploadDate != "" {
		t, err := time.Parse("20060102", entry.UploadDate)
		if err == nil {
			return t
		}
	}

	return time.Time{}
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ytdlpErrorClassifier determines if a yt-dlp error is retryable.
func ytdlpErrorClassifier(err error) bool {
	if err == nil {
		return false
	}

	var listerErr *ListerError
	if errors.As(err, &listerErr) {
		switch {
		case errors.Is(listerErr.Err, ErrChannelNotFound),
			errors.Is(listerErr.Err, ErrYtdlpNotInstalled),
			errors.Is(listerErr.Err, context.Canceled):
			return false
		default:
			// Retryable: rate limit, timeout, network errors
			return true
		}
	}

	return retry.IsRetryable(err)
}
