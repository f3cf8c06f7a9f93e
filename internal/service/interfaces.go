package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"mastodon_syncer/internal/domain"
	"mastodon_syncer/internal/mastodon"
)

// Source fetches and normalizes one configured feed.
type Source interface {
	URL() string
	FetchItems(ctx context.Context) ([]domain.FeedItem, error)
}

// StateStore persists the posted-item history and counters. Every
// mutation is flushed before the call returns.
type StateStore interface {
	IsPosted(ctx context.Context, id string) (bool, error)
	MarkPosted(ctx context.Context, id string) error
	IncrementFailed(ctx context.Context) error
	IncrementMediaUploaded(ctx context.Context, count int) error
	Stats(ctx context.Context) (domain.Stats, error)
}

// StatusPublisher is the publishing network: credential verification,
// media upload with bounded retry, and status creation.
type StatusPublisher interface {
	VerifyCredentials(ctx context.Context) (*mastodon.Account, error)
	UploadMediaWithRetry(ctx context.Context, media domain.MediaAttachment) (*mastodon.Attachment, error)
	PostStatus(ctx context.Context, item *domain.FeedItem, mediaIDs []string) (*mastodon.Status, error)
}

// EventPublisher emits a message for every successfully posted status.
// Optional; a nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, item *domain.FeedItem, statusURL string) error
	Close() error
}
