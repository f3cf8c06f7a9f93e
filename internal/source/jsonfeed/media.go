package jsonfeed

import (
	"path"
	"strings"

	"mastodon_syncer/internal/domain"
)

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "avif": true,
}

var videoExtensions = map[string]bool{
	"mp4": true, "webm": true, "mov": true, "avi": true, "mkv": true,
}

// extractMedia collects media candidates in priority order: the primary
// image, the banner image when distinct, the explicit attachments list,
// then image/video URLs scraped from the embedded HTML. Duplicate URLs are
// dropped and the result is capped at maxMedia.
func extractMedia(raw *Item, maxMedia int) []domain.MediaAttachment {
	var media []domain.MediaAttachment
	seen := make(map[string]bool)

	add := func(url string, mediaType domain.MediaType, description string) {
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		media = append(media, domain.MediaAttachment{
			URL:         url,
			Type:        mediaType,
			Description: description,
		})
	}

	add(raw.Image, detectMediaType(raw.Image), "")

	if raw.BannerImage != raw.Image {
		add(raw.BannerImage, detectMediaType(raw.BannerImage), "")
	}

	for _, att := range raw.Attachments {
		add(att.URL, attachmentType(att), att.Title)
	}

	for _, src := range extractTagSources(raw.ContentHTML, imgTagSrc) {
		add(src, domain.MediaImage, "")
	}
	for _, src := range extractTagSources(raw.ContentHTML, videoTagSrc) {
		add(src, domain.MediaVideo, "")
	}

	if len(media) > maxMedia {
		media = media[:maxMedia]
	}
	return media
}

// attachmentType classifies an attachment from its declared MIME type,
// falling back to URL heuristics when none is provided.
func attachmentType(att Attachment) domain.MediaType {
	switch {
	case strings.HasPrefix(att.MimeType, "image/"):
		return domain.MediaImage
	case strings.HasPrefix(att.MimeType, "video/"):
		return domain.MediaVideo
	default:
		return detectMediaType(att.URL)
	}
}

// detectMediaType infers a media type from the URL: file extension first,
// then substring heuristics, defaulting to image when nothing matches and
// the URL is non-empty.
func detectMediaType(url string) domain.MediaType {
	if url == "" {
		return domain.MediaUnknown
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(url), "."))
	if i := strings.IndexByte(ext, '?'); i >= 0 {
		ext = ext[:i]
	}

	switch {
	case imageExtensions[ext]:
		return domain.MediaImage
	case videoExtensions[ext]:
		return domain.MediaVideo
	case strings.Contains(url, "video") || strings.Contains(url, "mp4"):
		return domain.MediaVideo
	case strings.Contains(url, "image") || strings.Contains(url, "photo") || strings.Contains(url, "pbs.twimg.com"):
		return domain.MediaImage
	default:
		return domain.MediaImage
	}
}
