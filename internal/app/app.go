// Package app orchestrates the watch cycle: enumerate channels, filter
// against the ledger, download, dispatch, record.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ytrelay/internal/config"
	"ytrelay/internal/download"
	"ytrelay/internal/messenger"
	"ytrelay/internal/youtube"
)

// ChannelSource enumerates recent videos for one configured channel.
type ChannelSource interface {
	ListRecent(ctx context.Context, ch config.Channel) ([]youtube.Candidate, error)
}

// Downloader turns candidates into artifacts, one result per candidate.
type Downloader interface {
	Submit(ctx context.Context, candidates []youtube.Candidate) []download.Result
}

// Dispatcher fans an artifact out to all configured recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, a messenger.Artifact) messenger.DeliveryReport
}

// Ledger is the durable record of already-processed videos.
type Ledger interface {
	Contains(key string) bool
	Add(key string) error
}

// CycleStats summarizes one completed cycle.
type CycleStats struct {
	Channels       int
	Candidates     int // new candidates after ledger filtering
	Skipped        int // filtered out by the ledger
	Downloaded     int
	DownloadFailed int
	Delivered      int
	DeliveryFailed int
	Recorded       int
}

// App runs watch cycles over the configured channels.
type App struct {
	channels   []config.Channel
	source     ChannelSource
	downloader Downloader
	dispatcher Dispatcher
	ledger     Ledger
	logger     *slog.Logger

	now func() time.Time
}

// New assembles an app from its collaborators.
func New(channels []config.Channel, source ChannelSource, downloader Downloader, dispatcher Dispatcher, ledger Ledger, logger *slog.Logger) *App {
	return &App{
		channels:   channels,
		source:     source,
		downloader: downloader,
		dispatcher: dispatcher,
		ledger:     ledger,
		logger:     logger,
		now:        time.Now,
	}
}

// RunOnce executes a single cycle. Per-channel and per-video errors are
// logged and contained; the returned error is reserved for cancellation
// and for ledger write failures, which are fatal to the cycle.
// A video's ledger entry is written only after its delivery fan-out has
// been attempted, so an interrupted cycle retries the video next time.
func (a *App) RunOnce(ctx context.Context) (CycleStats, error) {
	cycleID := uuid.NewString()
	logger := a.logger.With(slog.String("cycle", cycleID))

	var stats CycleStats
	stats.Channels = len(a.channels)
	logger.Info("cycle started", slog.Int("channels", stats.Channels))

	candidates, skipped := a.enumerate(ctx, logger)
	stats.Candidates = len(candidates)
	stats.Skipped = skipped

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	results := a.downloader.Submit(ctx, candidates)
	for _, r := range results {
		if r.OK() {
			stats.Downloaded++
		} else {
			stats.DownloadFailed++
		}
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	for _, r := range results {
		if !r.OK() {
			// No artifact, no ledger entry: retried next cycle.
			continue
		}

		report := a.dispatcher.Dispatch(ctx, artifactFor(r))
		stats.Delivered += len(report.Deliveries) - report.Failed()
		stats.DeliveryFailed += report.Failed()

		// A key that cannot be recorded would be re-downloaded and
		// re-delivered every cycle; that makes ledger I/O the one
		// per-item failure that aborts the cycle.
		key := r.Candidate.DedupKey()
		if err := a.ledger.Add(key); err != nil {
			logger.Error("ledger write failed",
				slog.String("key", key),
				slog.Any("error", err))
			return stats, fmt.Errorf("record %q: %w", key, err)
		}
		stats.Recorded++
	}

	logger.Info("cycle finished",
		slog.Int("candidates", stats.Candidates),
		slog.Int("skipped", stats.Skipped),
		slog.Int("downloaded", stats.Downloaded),
		slog.Int("download_failed", stats.DownloadFailed),
		slog.Int("delivered", stats.Delivered),
		slog.Int("delivery_failed", stats.DeliveryFailed),
		slog.Int("recorded", stats.Recorded))
	return stats, nil
}

// enumerate lists recent videos across all channels and filters out the
// ones the ledger already knows. A failing channel never aborts the rest.
func (a *App) enumerate(ctx context.Context, logger *slog.Logger) ([]youtube.Candidate, int) {
	var candidates []youtube.Candidate
	skipped := 0

	for _, ch := range a.channels {
		if ctx.Err() != nil {
			break
		}

		listed, err := a.source.ListRecent(ctx, ch)
		if err != nil {
			logger.Error("channel enumeration failed",
				slog.String("channel", ch.Name),
				slog.String("url", ch.URL),
				slog.Any("error", err))
			continue
		}

		for _, c := range listed {
			if a.ledger.Contains(c.DedupKey()) {
				skipped++
				logger.Debug("already processed, skipping",
					slog.String("video", c.ID),
					slog.String("title", c.Title))
				continue
			}
			candidates = append(candidates, c)
		}
	}

	return candidates, skipped
}

// RunDaemon runs cycles until ctx is cancelled, waiting out the interval
// between cycle starts. Cycle duration counts against the interval.
func (a *App) RunDaemon(ctx context.Context, interval time.Duration) error {
	for {
		start := a.now()
		if _, err := a.RunOnce(ctx); err != nil {
			return err
		}

		wait := interval - a.now().Sub(start)
		if wait < 0 {
			wait = 0
		}
		a.logger.Info("next cycle scheduled",
			slog.Time("at", a.now().Add(wait)),
			slog.Duration("in", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func artifactFor(r download.Result) messenger.Artifact {
	return messenger.Artifact{
		ChannelName: r.Candidate.ChannelName,
		Title:       r.Candidate.Title,
		VideoPath:   r.VideoPath,
		AudioPath:   r.AudioPath,
	}
}
