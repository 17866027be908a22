package download

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ytrelay/internal/transcode"
	"ytrelay/internal/youtube"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 4

// Pool runs download jobs over a fixed-size set of workers. Each
// submitted candidate yields exactly one Result; a failing job never
// aborts its siblings.
type Pool struct {
	fetcher    Fetcher
	transcoder transcode.Transcoder // nil when MP3 conversion is disabled
	keepVideo  bool
	workers    int
	logger     *slog.Logger
}

// NewPool creates a pool of the given size. transcoder may be nil, in
// which case downloaded videos are returned as-is. keepVideo controls
// whether the video artifact survives a successful transcode.
func NewPool(fetcher Fetcher, transcoder transcode.Transcoder, keepVideo bool, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		fetcher:    fetcher,
		transcoder: transcoder,
		keepVideo:  keepVideo,
		workers:    workers,
		logger:     logger,
	}
}

// Submit processes the candidates and returns one Result per candidate.
// Result order is completion order, not submission order. Partial failure
// is data: per-job errors land in Result.Err, never as a returned error.
func (p *Pool) Submit(ctx context.Context, candidates []youtube.Candidate) []Result {
	if len(candidates) == 0 {
		return nil
	}

	jobs := make(chan youtube.Candidate)
	results := make(chan Result, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				results <- p.run(ctx, c)
			}
		}()
	}

	for _, c := range candidates {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]Result, 0, len(candidates))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// run executes a single download job plus its optional transcode step.
func (p *Pool) run(ctx context.Context, c youtube.Candidate) Result {
	jobID := uuid.NewString()
	logger := p.logger.With(
		slog.String("job", jobID),
		slog.String("video", c.ID),
		slog.String("title", c.Title),
		slog.String("channel", c.ChannelName))

	logger.Info("downloading")
	result := p.fetcher.Fetch(ctx, c)
	if result.Err != nil {
		logger.Error("download failed", slog.Any("error", result.Err))
		return result
	}

	// The fetcher may have produced the audio directly. Only transcode
	// when conversion is on and we have a video but no audio yet.
	if p.transcoder != nil && result.AudioPath == "" && result.VideoPath != "" {
		audioPath, err := p.transcoder.Transcode(ctx, result.VideoPath, p.keepVideo)
		if err != nil {
			// Partial success: the video artifact can still be delivered.
			logger.Warn("transcode failed, keeping video artifact", slog.Any("error", err))
		} else {
			result.AudioPath = audioPath
			if !p.keepVideo {
				result.VideoPath = ""
			}
		}
	}

	logger.Info("download complete",
		slog.String("video_path", result.VideoPath),
		slog.String("audio_path", result.AudioPath))
	return result
}
