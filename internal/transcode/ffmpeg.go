// Package transcode turns downloaded videos into audio-only artifacts.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultFFmpegPath    = "ffmpeg"
	defaultFFmpegTimeout = 15 * time.Minute
)

// ErrFFmpegNotInstalled indicates the ffmpeg binary was not found.
var ErrFFmpegNotInstalled = errors.New("transcode: ffmpeg not installed")

// TranscodeError wraps a per-video transcode failure with context.
type TranscodeError struct {
	Path string // Source video path
	Err  error  // Underlying error
}

func (e *TranscodeError) Error() string {
	return "transcode: " + e.Path + ": " + e.Err.Error()
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Transcoder produces an audio artifact from a downloaded video.
type Transcoder interface {
	// Transcode writes an MP3 next to the video at videoPath and returns
	// the audio path. When keepOriginal is false, the source video is
	// deleted only after the audio artifact is confirmed on disk; a
	// failed transcode never destroys the source.
	Transcode(ctx context.Context, videoPath string, keepOriginal bool) (string, error)
}

// FFmpeg invokes the ffmpeg binary as a subprocess.
type FFmpeg struct {
	// Path is the path to the ffmpeg executable. Defaults to "ffmpeg".
	Path string

	// Timeout bounds a single transcode run. Defaults to 15 minutes.
	Timeout time.Duration

	Logger *slog.Logger
}

// NewFFmpeg creates a transcoder using ffmpeg from PATH.
func NewFFmpeg(logger *slog.Logger) *FFmpeg {
	return &FFmpeg{
		Path:    defaultFFmpegPath,
		Timeout: defaultFFmpegTimeout,
		Logger:  logger,
	}
}

// Transcode extracts the audio track of videoPath into an MP3.
func (f *FFmpeg) Transcode(ctx context.Context, videoPath string, keepOriginal bool) (string, error) {
	audioPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".mp3"

	timeout := f.Timeout
	if timeout == 0 {
		timeout = defaultFFmpegTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-q:a", "2",
		audioPath,
	}
	cmd := exec.CommandContext(cmdCtx, f.path(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.Logger.Info("transcoding to mp3", slog.String("video", videoPath))

	if err := cmd.Run(); err != nil {
		// Never leave a partial artifact behind.
		os.Remove(audioPath)

		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return "", &TranscodeError{Path: videoPath, Err: ErrFFmpegNotInstalled}
		}
		if cmdCtx.Err() == context.DeadlineExceeded {
			return "", &TranscodeError{Path: videoPath, Err: cmdCtx.Err()}
		}
		return "", &TranscodeError{Path: videoPath,
			Err: fmt.Errorf("ffmpeg failed: %w: %s", err, stderr.String())}
	}

	// Confirm the artifact before touching the source.
	info, err := os.Stat(audioPath)
	if err != nil || info.Size() == 0 {
		os.Remove(audioPath)
		return "", &TranscodeError{Path: videoPath, Err: fmt.Errorf("audio artifact missing after transcode")}
	}

	if !keepOriginal {
		if err := os.Remove(videoPath); err != nil {
			f.Logger.Warn("could not remove source video",
				slog.String("video", videoPath),
				slog.Any("error", err))
		}
	}

	f.Logger.Info("transcode complete", slog.String("audio", audioPath))
	return audioPath, nil
}

func (f *FFmpeg) path() string {
	if f.Path != "" {
		return f.Path
	}
	return defaultFFmpegPath
}
