package jsonfeed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mastodon_syncer/internal/domain"
)

const userAgent = "Mozilla/4.0 (compatible; MastodonSyncBot/1.0)"

// FetchError reports a failed feed fetch: network error, non-success
// status, or an unparseable body. It is isolated per feed and never fatal
// to a tick.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch feed %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config holds per-feed source configuration.
type Config struct {
	URL      string
	MaxMedia int
	Timeout  time.Duration
}

// Source fetches one JSON feed and normalizes its items.
type Source struct {
	httpClient *http.Client
	url        string
	maxMedia   int
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a source for a single feed URL.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		url:      cfg.URL,
		maxMedia: cfg.MaxMedia,
		logger:   logger.With("feed", cfg.URL),
		now:      time.Now,
	}
}

// URL returns the feed URL this source polls.
func (s *Source) URL() string {
	return s.url
}

// FetchItems fetches the feed document and returns its normalized items.
func (s *Source) FetchItems(ctx context.Context) ([]domain.FeedItem, error) {
	feed, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("feed loaded", "title", feed.Title, "items", len(feed.Items))

	return s.parseItems(feed), nil
}

func (s *Source) fetch(ctx context.Context) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &FetchError{URL: s.url, Err: err}
	}

	req.Header.Set("Accept", "application/json, application/feed+json, */*")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: s.url, StatusCode: resp.StatusCode}
	}

	var feed Feed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, &FetchError{URL: s.url, Err: fmt.Errorf("decode feed: %w", err)}
	}

	return &feed, nil
}

// parseItems maps raw entries to domain items. A missing items array is an
// empty result, not an error.
func (s *Source) parseItems(feed *Feed) []domain.FeedItem {
	if len(feed.Items) == 0 {
		s.logger.Warn("no items found in feed")
		return []domain.FeedItem{}
	}

	items := make([]domain.FeedItem, 0, len(feed.Items))
	for i := range feed.Items {
		raw := &feed.Items[i]

		content := raw.ContentText
		if content == "" {
			content = stripHTML(raw.ContentHTML)
		}

		url := raw.URL
		if url == "" {
			url = raw.ExternalURL
		}

		publishedAt := s.now()
		if raw.DatePublished != "" {
			if t, err := time.Parse(time.RFC3339, raw.DatePublished); err == nil {
				publishedAt = t
			} else {
				s.logger.Warn("failed to parse publish date",
					"date", raw.DatePublished,
				)
			}
		}

		items = append(items, domain.FeedItem{
			ID:          identify(raw),
			Title:       raw.Title,
			Content:     content,
			URL:         url,
			Author:      itemAuthor(raw, feed.Title),
			PublishedAt: publishedAt,
			Media:       extractMedia(raw, s.maxMedia),
		})
	}

	return items
}

func itemAuthor(raw *Item, feedTitle string) string {
	if len(raw.Authors) > 0 && raw.Authors[0].Name != "" {
		return raw.Authors[0].Name
	}
	if raw.Author != nil && raw.Author.Name != "" {
		return raw.Author.Name
	}
	return feedTitle
}

// identify hashes the item's natural key (source id, else URL, else title,
// else the full serialized entry) and truncates the digest to 16 hex
// characters. The truncation is kept for continuity with previously
// persisted ids; it is not a full collision-resistant identifier.
func identify(raw *Item) string {
	key := raw.ID
	if key == "" {
		key = raw.URL
	}
	if key == "" {
		key = raw.Title
	}
	if key == "" {
		serialized, _ := json.Marshal(raw)
		key = string(serialized)
	}

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
