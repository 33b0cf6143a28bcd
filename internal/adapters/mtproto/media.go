package mtproto

import (
	"strings"

	"github.com/gotd/td/tg"

	"tg-medinsights/internal/domain"
)

// classifyMedia maps Telegram media onto the closed MediaKind set. Only
// photos and image documents are downloadable here; everything else is
// recorded as MediaOther and left on the platform.
func classifyMedia(media tg.MessageMediaClass) domain.MediaKind {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		return domain.MediaPhoto
	case *tg.MessageMediaDocument:
		if doc, ok := m.Document.AsNotEmpty(); ok && strings.HasPrefix(doc.MimeType, "image/") {
			return domain.MediaDocumentImage
		}
		return domain.MediaOther
	default:
		return domain.MediaOther
	}
}

// imageLocation returns the download location and file extension for image
// media, or ok=false when the media is not a downloadable image.
func imageLocation(media tg.MessageMediaClass) (tg.InputFileLocationClass, string, bool) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.AsNotEmpty()
		if !ok {
			return nil, "", false
		}
		sizeType, ok := largestPhotoSize(photo.Sizes)
		if !ok {
			return nil, "", false
		}
		return &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     sizeType,
		}, "jpg", true
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.AsNotEmpty()
		if !ok || !strings.HasPrefix(doc.MimeType, "image/") {
			return nil, "", false
		}
		return &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}, MimeExtension(doc.MimeType), true
	default:
		return nil, "", false
	}
}

// largestPhotoSize picks the size type with the biggest area.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, bool) {
	var (
		best     string
		bestArea int
	)
	for _, raw := range sizes {
		switch s := raw.(type) {
		case *tg.PhotoSize:
			if area := s.W * s.H; area > bestArea {
				bestArea, best = area, s.Type
			}
		case *tg.PhotoSizeProgressive:
			if area := s.W * s.H; area > bestArea {
				bestArea, best = area, s.Type
			}
		}
	}
	return best, best != ""
}

// MimeExtension derives a file extension from an image MIME type.
func MimeExtension(mimeType string) string {
	if idx := strings.LastIndex(mimeType, "/"); idx >= 0 && idx+1 < len(mimeType) {
		return mimeType[idx+1:]
	}
	return "bin"
}

// NormalizeAlias strips t.me URL prefixes and the @ sigil from a channel
// reference.
func NormalizeAlias(alias string) string {
	trimmed := strings.TrimSpace(alias)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(trimmed, prefix) {
			trimmed = strings.TrimPrefix(trimmed, prefix)
			break
		}
	}
	trimmed = strings.TrimPrefix(trimmed, "@")
	return strings.TrimSuffix(trimmed, "/")
}

// channelStorageName yields the directory-safe channel name: the public
// username when present, otherwise the sanitized title.
func channelStorageName(channel *tg.Channel) string {
	if channel.Username != "" {
		return channel.Username
	}
	return SanitizeChannelName(channel.Title)
}

// SanitizeChannelName makes a channel title safe for use as a path segment.
func SanitizeChannelName(title string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(strings.TrimSpace(title))
}
