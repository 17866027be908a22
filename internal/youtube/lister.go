// Package youtube provides channel video listing and the recency filter
// that turns raw listings into download candidates.
package youtube

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for video listing operations.
var (
	ErrChannelNotFound   = errors.New("youtube: channel not found")
	ErrRateLimited       = errors.New("youtube: rate limited")
	ErrNetworkTimeout    = errors.New("youtube: network timeout")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
)

// VideoLister fetches the video listing of a channel. Implementations may
// use different strategies (yt-dlp, RSS, API).
type VideoLister interface {
	// ListVideos fetches videos from the channel URL, newest first.
	// The URL can be a channel URL, handle (@username), or channel ID.
	ListVideos(ctx context.Context, channelURL string, opts *ListOptions) ([]Candidate, error)
}

// ListOptions configures video listing behavior.
type ListOptions struct {
	// MaxResults limits the number of videos returned. 0 means no limit.
	MaxResults int
}

// Candidate is a video discovered on a channel, not yet downloaded.
type Candidate struct {
	// ID is the YouTube video ID (e.g., "dQw4w9WgXcQ").
	ID string

	// Title is the video title.
	Title string

	// ChannelName is the display name of the channel the video belongs to.
	ChannelName string

	// Published is when the video was published. Zero if the source did
	// not report a usable date.
	Published time.Time
}

// URL returns the full watch URL for this candidate.
func (c Candidate) URL() string {
	return "https://www.youtube.com/watch?v=" + c.ID
}

// DedupKey returns the ledger key for this candidate. Keys are the exact
// video title so re-runs recognize prior work; videos without a title
// fall back to the stable video ID.
func (c Candidate) DedupKey() string {
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}

// ListerError wraps errors with context about the listing operation.
type ListerError struct {
	Source  string // Source of error: "ytdlp", "rss", "api"
	Channel string // Channel URL or ID being listed
	Err     error  // Underlying error
}

func (e *ListerError) Error() string {
	return "youtube: " + e.Source + " listing " + e.Channel + ": " + e.Err.Error()
}

func (e *ListerError) Unwrap() error { return e.Err }
