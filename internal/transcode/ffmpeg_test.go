package transcode

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// writeMockFFmpeg creates a shell script that behaves like ffmpeg: the
// last argument is the output file, which it fills with fake audio data.
func writeMockFFmpeg(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to create mock ffmpeg: %v", err)
	}
	return path
}

func writeVideo(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "episode.mp4")
	if err := os.WriteFile(path, []byte("video data"), 0644); err != nil {
		t.Fatalf("failed to create video file: %v", err)
	}
	return path
}

func TestFFmpeg_Transcode(t *testing.T) {
	dir := t.TempDir()
	videoPath := writeVideo(t, dir)
	mock := writeMockFFmpeg(t, dir, `
for last do :; done
echo "fake mp3 data" > "$last"
`)

	f := NewFFmpeg(discardLogger())
	f.Path = mock

	audioPath, err := f.Transcode(context.Background(), videoPath, false)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}

	want := filepath.Join(dir, "episode.mp3")
	if audioPath != want {
		t.Errorf("Transcode() = %q, want %q", audioPath, want)
	}
	if _, err := os.Stat(audioPath); err != nil {
		t.Errorf("audio artifact missing: %v", err)
	}
	if _, err := os.Stat(videoPath); !os.IsNotExist(err) {
		t.Error("source video still exists, want removed when keepOriginal is false")
	}
}

func TestFFmpeg_Transcode_KeepOriginal(t *testing.T) {
	dir := t.TempDir()
	videoPath := writeVideo(t, dir)
	mock := writeMockFFmpeg(t, dir, `
for last do :; done
echo "fake mp3 data" > "$last"
`)

	f := NewFFmpeg(discardLogger())
	f.Path = mock

	if _, err := f.Transcode(context.Background(), videoPath, true); err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	if _, err := os.Stat(videoPath); err != nil {
		t.Errorf("source video missing: %v, want kept when keepOriginal is true", err)
	}
}

func TestFFmpeg_Transcode_FailureKeepsSource(t *testing.T) {
	dir := t.TempDir()
	videoPath := writeVideo(t, dir)
	mock := writeMockFFmpeg(t, dir, `
echo "conversion failed" >&2
exit 1
`)

	f := NewFFmpeg(discardLogger())
	f.Path = mock

	_, err := f.Transcode(context.Background(), videoPath, false)
	if err == nil {
		t.Fatal("Transcode() error = nil, want error")
	}

	var terr *TranscodeError
	if !errors.As(err, &terr) {
		t.Errorf("Transcode() error = %T, want *TranscodeError", err)
	}
	if _, err := os.Stat(videoPath); err != nil {
		t.Errorf("source video missing after failed transcode: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "episode.mp3")); !os.IsNotExist(err) {
		t.Error("partial audio artifact left behind after failure")
	}
}

func TestFFmpeg_Transcode_EmptyArtifactIsFailure(t *testing.T) {
	dir := t.TempDir()
	videoPath := writeVideo(t, dir)
	mock := writeMockFFmpeg(t, dir, `
for last do :; done
: > "$last"
`)

	f := NewFFmpeg(discardLogger())
	f.Path = mock

	if _, err := f.Transcode(context.Background(), videoPath, false); err == nil {
		t.Fatal("Transcode() error = nil for empty artifact, want error")
	}
	if _, err := os.Stat(videoPath); err != nil {
		t.Errorf("source video missing after failed transcode: %v", err)
	}
}

func TestFFmpeg_Transcode_NotInstalled(t *testing.T) {
	dir := t.TempDir()
	videoPath := writeVideo(t, dir)

	f := NewFFmpeg(discardLogger())
	f.Path = filepath.Join(dir, "nonexistent-ffmpeg")

	_, err := f.Transcode(context.Background(), videoPath, false)
	if err == nil {
		t.Fatal("Transcode() error = nil for missing binary, want error")
	}
}
