// Package download executes per-video download jobs through a bounded
// worker pool.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/lrstanley/go-ytdlp"

	"ytrelay/internal/youtube"
)

// Result is the outcome of one download job. Exactly one of the path
// fields being populated or Err being non-nil holds; a job either
// produces artifacts or fails.
type Result struct {
	Candidate youtube.Candidate
	VideoPath string // path to the video artifact, empty if none
	AudioPath string // path to the audio artifact, empty if none
	Err       error
}

// OK reports whether the job produced at least one artifact.
func (r Result) OK() bool { return r.Err == nil }

// DownloadError wraps a per-video download failure with context.
type DownloadError struct {
	VideoID string
	Title   string
	Err     error
}

func (e *DownloadError) Error() string {
	return "download: " + e.VideoID + " (" + e.Title + "): " + e.Err.Error()
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Fetcher downloads a single candidate and returns its artifacts.
type Fetcher interface {
	Fetch(ctx context.Context, c youtube.Candidate) Result
}

// YtdlpFetcher fetches videos through the go-ytdlp bindings.
//
// When AudioOnly is set the fetcher requests an audio stream directly and
// lets yt-dlp produce the MP3, instead of downloading the full video and
// discarding the video track. If the audio-only path fails it falls back
// to a regular video download; the caller's transcode step takes over
// from there.
type YtdlpFetcher struct {
	// DownloadDir is the root output directory. Artifacts land in a
	// date-partitioned subdirectory (DownloadDir/YYYYMMDD).
	DownloadDir string

	// PreferredResolution is the target video height, e.g. "720p".
	// When the source does not offer it, the best available is taken.
	PreferredResolution string

	// AudioOnly requests audio streams directly (MP3 conversion enabled).
	AudioOnly bool

	Logger *slog.Logger

	// now supplies the date for the output subdirectory.
	now func() time.Time
}

// NewYtdlpFetcher creates a fetcher writing under downloadDir.
func NewYtdlpFetcher(downloadDir, preferredResolution string, audioOnly bool, logger *slog.Logger) *YtdlpFetcher {
	return &YtdlpFetcher{
		DownloadDir:         downloadDir,
		PreferredResolution: preferredResolution,
		AudioOnly:           audioOnly,
		Logger:              logger,
		now:                 time.Now,
	}
}

// Fetch downloads one candidate.
func (f *YtdlpFetcher) Fetch(ctx context.Context, c youtube.Candidate) Result {
	dir := filepath.Join(f.DownloadDir, f.now().Format("20060102"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Result{Candidate: c, Err: &DownloadError{VideoID: c.ID, Title: c.Title,
			Err: fmt.Errorf("create output directory: %w", err)}}
	}

	base := SafeFilename(c.Title, c.ID)

	if f.AudioOnly {
		audioPath, err := f.fetchAudio(ctx, c, dir, base)
		if err == nil {
			return Result{Candidate: c, AudioPath: audioPath}
		}
		f.Logger.Warn("audio-only download failed, falling back to video",
			slog.String("video", c.ID),
			slog.String("title", c.Title),
			slog.Any("error", err))
	}

	videoPath, err := f.fetchVideo(ctx, c, dir, base)
	if err != nil {
		return Result{Candidate: c, Err: &DownloadError{VideoID: c.ID, Title: c.Title, Err: err}}
	}
	return Result{Candidate: c, VideoPath: videoPath}
}

// fetchAudio downloads the best audio stream and extracts it as MP3.
func (f *YtdlpFetcher) fetchAudio(ctx context.Context, c youtube.Candidate, dir, base string) (string, error) {
	dl := ytdlp.New().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat("mp3").
		RestrictFilenames().
		ForceOverwrites().
		NoPlaylist().
		Print("after_move:filepath").
		Output(filepath.Join(dir, base+".%(ext)s"))

	r, err := dl.Run(ctx, c.URL())
	if err != nil {
		return "", fmt.Errorf("audio download: %w", err)
	}

	if path := lastPathLine(r.Stdout); path != "" {
		return path, nil
	}
	return filepath.Join(dir, base+".mp3"), nil
}

// fetchVideo downloads the video at the preferred resolution, falling
// back to the best the source offers.
func (f *YtdlpFetcher) fetchVideo(ctx context.Context, c youtube.Candidate, dir, base string) (string, error) {
	dl := ytdlp.New().
		Format(FormatForResolution(f.PreferredResolution)).
		RestrictFilenames().
		ForceOverwrites().
		NoPlaylist().
		Print("after_move:filepath").
		Output(filepath.Join(dir, base+".%(ext)s"))

	r, err := dl.Run(ctx, c.URL())
	if err != nil {
		return "", fmt.Errorf("video download: %w", err)
	}

	if path := lastPathLine(r.Stdout); path != "" {
		return path, nil
	}
	return filepath.Join(dir, base+".mp4"), nil
}

// FormatForResolution builds a yt-dlp format expression that prefers the
// given resolution and degrades to the best available. Resolution
// selection is best effort, never a hard failure.
func FormatForResolution(resolution string) string {
	height, err := strconv.Atoi(strings.TrimSuffix(resolution, "p"))
	if err != nil || height <= 0 {
		return "bestvideo+bestaudio/best"
	}
	h := strconv.Itoa(height)
	return "bestvideo[height<=" + h + "]+bestaudio/best[height<=" + h + "]/best"
}

// SafeFilename derives a filesystem-safe base name from a video title.
// Letters, digits, spaces, dashes and underscores are kept; everything
// else becomes an underscore. An empty result falls back to the video ID.
func SafeFilename(title, videoID string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	safe := strings.TrimSpace(b.String())
	if safe == "" {
		return videoID
	}
	return safe
}

// lastPathLine returns the last line of output that looks like a file
// path. yt-dlp prints the final artifact path when asked for
// after_move:filepath, but postprocessor chatter may surround it.
func lastPathLine(out string) string {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && (strings.HasPrefix(line, "/") || strings.Contains(line, string(os.PathSeparator))) {
			return line
		}
	}
	return ""
}
