package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mastodon_syncer/internal/config"
	"mastodon_syncer/internal/domain"
)

// SyncService runs one tick: fetch all feeds concurrently, merge, order by
// publish time, cap the batch, then post sequentially with per-item
// failure isolation.
type SyncService struct {
	sources  []Source
	state    StateStore
	mastodon StatusPublisher
	events   EventPublisher
	logger   *slog.Logger
	config   config.SyncConfig
}

func NewSyncService(
	sources []Source,
	state StateStore,
	statusPublisher StatusPublisher,
	events EventPublisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		sources:  sources,
		state:    state,
		mastodon: statusPublisher,
		events:   events,
		logger:   logger,
		config:   cfg,
	}
}

func (s *SyncService) Sync(ctx context.Context) (*domain.SyncReport, error) {
	startTime := time.Now()
	s.logger.Info("starting sync",
		"feeds", len(s.sources),
		"max_posts_per_check", s.config.MaxPostsPerCheck,
	)

	report := &domain.SyncReport{}

	items := s.fetchAll(ctx, report)
	report.Fetched = len(items)
	s.logger.Info("fetched items from feeds", "count", len(items), "feed_errors", report.FeedErrors)

	candidates := s.selectCandidates(items)
	report.Candidates = len(candidates)

	for i := range candidates {
		item := &candidates[i]

		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		posted, err := s.state.IsPosted(ctx, item.ID)
		if err != nil {
			s.logger.Error("posted-state lookup failed", "item_id", item.ID, "error", err)
			report.Errors++
			continue
		}
		if posted {
			report.Skipped++
			continue
		}

		s.logger.Info("posting new item", "item_id", item.ID, "title", item.Title)

		statusURL, err := s.syncItem(ctx, item)
		if err != nil {
			s.logger.Error("post failed", "item_id", item.ID, "error", err)
			report.Errors++
			if err := s.state.IncrementFailed(ctx); err != nil {
				s.logger.Error("failed to record failure", "error", err)
			}
			continue
		}

		if err := s.state.MarkPosted(ctx, item.ID); err != nil {
			s.logger.Error("failed to mark item posted", "item_id", item.ID, "error", err)
		}
		report.Posted++
		s.logger.Info("posted", "item_id", item.ID, "status_url", statusURL)

		// Rate-limit courtesy pause between posts.
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-time.After(s.config.PostDelay):
		}
	}

	if stats, err := s.state.Stats(ctx); err != nil {
		s.logger.Error("failed to read stats", "error", err)
	} else {
		report.TotalPosts = stats.Total
		report.TotalFailed = stats.Failed
	}

	report.Duration = time.Since(startTime)

	s.logger.Info("sync completed",
		"new", report.Posted,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"total", report.TotalPosts,
		"failed", report.TotalFailed,
		"duration", report.Duration,
	)

	return report, nil
}

// fetchAll queries every feed concurrently and merges the successful
// results. A failed feed is logged and excluded; it never aborts the tick
// or cancels the other fetches.
func (s *SyncService) fetchAll(ctx context.Context, report *domain.SyncReport) []domain.FeedItem {
	type fetchResult struct {
		items []domain.FeedItem
		err   error
	}

	results := make([]fetchResult, len(s.sources))
	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			items, err := src.FetchItems(ctx)
			results[i] = fetchResult{items: items, err: err}
		}(i, src)
	}
	wg.Wait()

	var merged []domain.FeedItem
	for i, res := range results {
		if res.err != nil {
			s.logger.Error("feed fetch failed", "feed", s.sources[i].URL(), "error", res.err)
			report.FeedErrors++
			continue
		}
		merged = append(merged, res.items...)
	}
	return merged
}

// selectCandidates sorts the merged set ascending by publish time and
// keeps the most recent MaxPostsPerCheck items, still in chronological
// order. Dedup happens after this window, so the actually-posted count can
// be lower.
func (s *SyncService) selectCandidates(items []domain.FeedItem) []domain.FeedItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.Before(items[j].PublishedAt)
	})

	if len(items) > s.config.MaxPostsPerCheck {
		items = items[len(items)-s.config.MaxPostsPerCheck:]
	}
	return items
}

// syncItem uploads the item's media and creates the status. A media
// failure costs only that attachment; a status failure propagates to the
// caller's per-item handling.
func (s *SyncService) syncItem(ctx context.Context, item *domain.FeedItem) (string, error) {
	var mediaIDs []string

	if len(item.Media) > 0 {
		s.logger.Debug("uploading media", "item_id", item.ID, "count", len(item.Media))
	}

	for _, media := range item.Media {
		if media.Type != domain.MediaImage && media.Type != domain.MediaVideo {
			continue
		}

		attachment, err := s.mastodon.UploadMediaWithRetry(ctx, media)
		if err != nil {
			s.logger.Error("media upload failed", "item_id", item.ID, "url", media.URL, "error", err)
			continue
		}
		if attachment == nil {
			// Skipped by policy (oversized video).
			continue
		}

		mediaIDs = append(mediaIDs, attachment.ID)
		if err := s.state.IncrementMediaUploaded(ctx, 1); err != nil {
			s.logger.Error("failed to record media upload", "error", err)
		}
	}

	status, err := s.mastodon.PostStatus(ctx, item, mediaIDs)
	if err != nil {
		return "", err
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, item, status.URL); err != nil {
			s.logger.Warn("event publish failed", "item_id", item.ID, "error", err)
		}
	}

	return status.URL, nil
}
