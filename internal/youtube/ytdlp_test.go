package youtube

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeChannelURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "channel ID only",
			input: "UCuAXFkgsw1L7xaCfnd5JJOw",
			want:  "https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw/videos",
		},
		{
			name:  "channel URL without videos",
			input: "https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw",
			want:  "https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw/videos",
		},
		{
			name:  "channel URL with videos",
			input: "https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw/videos",
			want:  "https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw/videos",
		},
		{
			name:  "handle URL",
			input: "https://www.youtube.com/@testchannel",
			want:  "https://www.youtube.com/@testchannel/videos",
		},
		{
			name:  "handle URL with trailing slash",
			input: "https://www.youtube.com/@testchannel/",
			want:  "https://www.youtube.com/@testchannel/videos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeChannelURL(tt.input)
			if got != tt.want {
				t.Errorf("normalizeChannelURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseYtdlpListing(t *testing.T) {
	videos, err := parseYtdlpListing([]byte(sampleYtdlpOutput))
	if err != nil {
		t.Fatalf("parseYtdlpListing() error = %v", err)
	}

	// Three entries in the sample; the upcoming premiere is skipped.
	if len(videos) != 2 {
		t.Fatalf("parseYtdlpListing() len = %d, want 2", len(videos))
	}

	v := videos[0]
	if v.ID != "dQw4w9WgXcQ" {
		t.Errorf("video.ID = %q, want %q", v.ID, "dQw4w9WgXcQ")
	}
	if v.Title != "Test Video 1" {
		t.Errorf("video.Title = %q, want %q", v.Title, "Test Video 1")
	}
	if v.ChannelName != "Test Channel" {
		t.Errorf("video.ChannelName = %q, want %q", v.ChannelName, "Test Channel")
	}
	if v.Published.IsZero() {
		t.Error("video.Published is zero, want parsed timestamp")
	}
}

func TestParseYtdlpListing_Malformed(t *testing.T) {
	if _, err := parseYtdlpListing([]byte("not json")); err == nil {
		t.Error("parseYtdlpListing() error = nil for malformed output, want error")
	}
}

func TestParseYtdlpDate(t *testing.T) {
	tests := []struct {
		name  string
		entry ytdlpEntry
		want  time.Time
	}{
		{
			name: "timestamp",
			entry: ytdlpEntry{
				Timestamp: 1704067200, // 2024-01-01 00:00:00 UTC
			},
			want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "upload_date",
			entry: ytdlpEntry{
				UploadDate: "20240115",
			},
			want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "timestamp preferred over upload_date",
			entry: ytdlpEntry{
				Timestamp:  1704067200,
				UploadDate: "20240115",
			},
			want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "no date",
			entry: ytdlpEntry{},
			want:  time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseYtdlpDate(tt.entry)
			if !got.Equal(tt.want) {
				t.Errorf("parseYtdlpDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYtdlpErrorClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "channel not found is permanent",
			err:  &ListerError{Source: "ytdlp", Channel: "x", Err: ErrChannelNotFound},
			want: false,
		},
		{
			name: "missing binary is permanent",
			err:  &ListerError{Source: "ytdlp", Channel: "", Err: ErrYtdlpNotInstalled},
			want: false,
		},
		{
			name: "rate limit is retryable",
			err:  &ListerError{Source: "ytdlp", Channel: "x", Err: ErrRateLimited},
			want: true,
		},
		{
			name: "timeout is retryable",
			err:  &ListerError{Source: "ytdlp", Channel: "x", Err: ErrNetworkTimeout},
			want: true,
		},
		{
			name: "cancellation is permanent",
			err:  &ListerError{Source: "ytdlp", Channel: "x", Err: context.Canceled},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ytdlpErrorClassifier(tt.err); got != tt.want {
				t.Errorf("ytdlpErrorClassifier(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestYtdlpLister_NotInstalled(t *testing.T) {
	lister := &YtdlpLister{
		Path: "/nonexistent/path/to/yt-dlp",
	}

	_, err := lister.ListVideos(context.Background(), "https://www.youtube.com/@test", nil)
	if !errors.Is(err, ErrYtdlpNotInstalled) {
		t.Errorf("ListVideos() error = %v, want ErrYtdlpNotInstalled", err)
	}
}

// TestYtdlpLister_MockBinary drives the lister against a shell script that
// mimics yt-dlp's flat-playlist output.
func TestYtdlpLister_MockBinary(t *testing.T) {
	dir := t.TempDir()
	mockPath := filepath.Join(dir, "yt-dlp")

	script := `#!/bin/sh
if [ "$1" = "--version" ]; then
    echo "2026.01.01"
    exit 0
fi
cat << 'EOF'
` + sampleYtdlpOutput + `
EOF
`
	if err := os.WriteFile(mockPath, []byte(script), 0755); err != nil {
		t.Fatalf("failed to create mock yt-dlp: %v", err)
	}

	lister := &YtdlpLister{
		Path:    mockPath,
		Timeout: 30 * time.Second,
	}

	videos, err := lister.ListVideos(context.Background(), "https://www.youtube.com/@test", &ListOptions{MaxResults: 5})
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}

	if len(videos) != 2 {
		t.Errorf("ListVideos() len = %d, want 2", len(videos))
	}
}

const sampleYtdlpOutput = `{
  "id": "UCuAXFkgsw1L7xaCfnd5JJOw",
  "title": "Test Channel - Videos",
  "uploader": "Test Channel",
  "entries": [
    {
      "id": "dQw4w9WgXcQ",
      "title": "Test Video 1",
      "uploader": "Test Channel",
      "upload_date": "20260110",
      "timestamp": 1768003200
    },
    {
      "id": "test123abc",
      "title": "Test Video 2",
      "uploader": "Test Channel",
      "upload_date": "20260109",
      "timestamp": 1767916800
    },
    {
      "id": "upcoming01",
      "title": "Scheduled Premiere",
      "uploader": "Test Channel",
      "live_status": "is_upcoming"
    }
  ]
}`
