package youtube

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"ytrelay/internal/config"
)

// Source adapts a VideoLister into the candidate feed for one check cycle:
// it lists a channel and applies the per-channel recency window and count
// limit.
type Source struct {
	lister VideoLister
	logger *slog.Logger

	// now is the clock used for the recency window.
	now func() time.Time
}

// NewSource creates a source adapter over the given lister.
func NewSource(lister VideoLister, logger *slog.Logger) *Source {
	return &Source{
		lister: lister,
		logger: logger,
		now:    time.Now,
	}
}

// ListRecent returns the channel's candidates published within the
// channel's days_to_check window (inclusive boundary), at most max_videos
// of them, most recently published first.
//
// Videos with no usable publish date are excluded: undated content must
// never slip through a recency filter.
func (s *Source) ListRecent(ctx context.Context, ch config.Channel) ([]Candidate, error) {
	// The listing is not pre-limited: truncation happens after the
	// recency filter, so an undated or upcoming entry among the newest
	// listings cannot crowd out an in-window video behind it.
	videos, err := s.lister.ListVideos(ctx, ch.URL, nil)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-time.Duration(ch.DaysToCheck) * 24 * time.Hour)

	selected := make([]Candidate, 0, len(videos))
	for _, v := range videos {
		if v.Published.IsZero() {
			s.logger.Debug("skipping undated video",
				slog.String("channel", ch.Name),
				slog.String("title", v.Title))
			continue
		}
		if v.Published.Before(cutoff) {
			s.logger.Debug("skipping video outside recency window",
				slog.String("channel", ch.Name),
				slog.String("title", v.Title),
				slog.Time("published", v.Published))
			continue
		}
		if v.ChannelName == "" {
			v.ChannelName = ch.Name
		}
		selected = append(selected, v)
	}

	// Most recent first; when truncating, the most recent are kept.
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Published.After(selected[j].Published)
	})
	if ch.MaxVideos > 0 && uint(len(selected)) > ch.MaxVideos {
		selected = selected[:ch.MaxVideos]
	}

	return selected, nil
}
