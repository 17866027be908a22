package download

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ytrelay/internal/youtube"
)

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]Result // keyed by candidate ID
	delay   time.Duration

	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, c youtube.Candidate) Result {
	cur := f.active.Add(1)
	for {
		max := f.maxSeen.Load()
		if cur <= max || f.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.active.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.results[c.ID]; ok {
		r.Candidate = c
		return r
	}
	return Result{Candidate: c, VideoPath: "/tmp/" + c.ID + ".mp4"}
}

type fakeTranscoder struct {
	err   error
	calls atomic.Int32
}

func (f *fakeTranscoder) Transcode(ctx context.Context, videoPath string, keepOriginal bool) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return videoPath + ".mp3", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func candidates(ids ...string) []youtube.Candidate {
	out := make([]youtube.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, youtube.Candidate{ID: id, Title: "Video " + id, ChannelName: "Example Channel"})
	}
	return out
}

func TestPool_Submit_OneResultPerCandidate(t *testing.T) {
	pool := NewPool(&fakeFetcher{}, nil, true, 4, discardLogger())

	results := pool.Submit(context.Background(), candidates("a", "b", "c", "d", "e"))
	if len(results) != 5 {
		t.Fatalf("Submit() returned %d results, want 5", len(results))
	}

	seen := make(map[string]bool)
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("result for %q has error: %v", r.Candidate.ID, r.Err)
		}
		seen[r.Candidate.ID] = true
	}
	if len(seen) != 5 {
		t.Errorf("results cover %d distinct candidates, want 5", len(seen))
	}
}

func TestPool_Submit_Empty(t *testing.T) {
	pool := NewPool(&fakeFetcher{}, nil, true, 4, discardLogger())
	if results := pool.Submit(context.Background(), nil); results != nil {
		t.Errorf("Submit(nil) = %v, want nil", results)
	}
}

func TestPool_Submit_FailureDoesNotAbortSiblings(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]Result{
		"bad": {Err: &DownloadError{VideoID: "bad", Title: "Video bad", Err: errors.New("boom")}},
	}}
	pool := NewPool(fetcher, nil, true, 2, discardLogger())

	results := pool.Submit(context.Background(), candidates("a", "bad", "b"))
	if len(results) != 3 {
		t.Fatalf("Submit() returned %d results, want 3", len(results))
	}

	var failed, ok int
	for _, r := range results {
		if r.OK() {
			ok++
		} else {
			failed++
		}
	}
	if failed != 1 || ok != 2 {
		t.Errorf("got %d failed / %d ok, want 1 failed / 2 ok", failed, ok)
	}
}

func TestPool_Submit_BoundedConcurrency(t *testing.T) {
	fetcher := &fakeFetcher{delay: 20 * time.Millisecond}
	pool := NewPool(fetcher, nil, true, 2, discardLogger())

	pool.Submit(context.Background(), candidates("a", "b", "c", "d", "e", "f"))

	if max := fetcher.maxSeen.Load(); max > 2 {
		t.Errorf("observed %d concurrent fetches, want at most 2", max)
	}
}

func TestPool_Submit_TranscodeReplacesVideo(t *testing.T) {
	transcoder := &fakeTranscoder{}
	pool := NewPool(&fakeFetcher{}, transcoder, false, 1, discardLogger())

	results := pool.Submit(context.Background(), candidates("a"))
	if len(results) != 1 {
		t.Fatalf("Submit() returned %d results, want 1", len(results))
	}

	r := results[0]
	if r.AudioPath != "/tmp/a.mp4.mp3" {
		t.Errorf("AudioPath = %q, want transcoded path", r.AudioPath)
	}
	if r.VideoPath != "" {
		t.Errorf("VideoPath = %q, want empty when video is not kept", r.VideoPath)
	}
}

func TestPool_Submit_TranscodeKeepsVideoWhenConfigured(t *testing.T) {
	pool := NewPool(&fakeFetcher{}, &fakeTranscoder{}, true, 1, discardLogger())

	r := pool.Submit(context.Background(), candidates("a"))[0]
	if r.VideoPath == "" {
		t.Error("VideoPath empty, want kept alongside audio")
	}
	if r.AudioPath == "" {
		t.Error("AudioPath empty, want transcoded artifact")
	}
}

func TestPool_Submit_TranscodeFailureKeepsVideoArtifact(t *testing.T) {
	transcoder := &fakeTranscoder{err: errors.New("no audio track")}
	pool := NewPool(&fakeFetcher{}, transcoder, false, 1, discardLogger())

	r := pool.Submit(context.Background(), candidates("a"))[0]
	if !r.OK() {
		t.Fatalf("result has error %v, want partial success", r.Err)
	}
	if r.VideoPath == "" {
		t.Error("VideoPath empty after failed transcode, want video artifact kept")
	}
	if r.AudioPath != "" {
		t.Errorf("AudioPath = %q after failed transcode, want empty", r.AudioPath)
	}
}

func TestPool_Submit_NoTranscodeWhenAudioAlreadyPresent(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]Result{
		"a": {AudioPath: "/tmp/a.mp3"},
	}}
	transcoder := &fakeTranscoder{}
	pool := NewPool(fetcher, transcoder, false, 1, discardLogger())

	r := pool.Submit(context.Background(), candidates("a"))[0]
	if r.AudioPath != "/tmp/a.mp3" {
		t.Errorf("AudioPath = %q, want direct audio artifact", r.AudioPath)
	}
	if transcoder.calls.Load() != 0 {
		t.Errorf("transcoder called %d times, want 0", transcoder.calls.Load())
	}
}
