package domain

import "time"

// MediaType classifies a media attachment for upload purposes.
type MediaType string

const (
	MediaImage   MediaType = "image"
	MediaVideo   MediaType = "video"
	MediaUnknown MediaType = "unknown"
)

// MediaAttachment is a single piece of media associated with a feed item.
type MediaAttachment struct {
	URL         string
	Type        MediaType
	Description string
}

// FeedItem is the normalized unit of content produced by a feed source.
// Items are built once per ingestion pass and never mutated; only the ID
// survives the tick, in the state store.
type FeedItem struct {
	ID          string // truncated hex digest of the item's natural key
	Title       string
	Content     string // plain text, HTML already stripped
	URL         string
	Author      string
	PublishedAt time.Time
	Media       []MediaAttachment
}
