package domain

import (
	"bytes"
	"fmt"
	"time"
)

// MediaKind is the closed set of media attachments the scraper distinguishes.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaPhoto
	MediaDocumentImage
	MediaOther
)

// String returns the staging-document tag for the kind.
func (k MediaKind) String() string {
	switch k {
	case MediaNone:
		return ""
	case MediaPhoto:
		return "photo"
	case MediaDocumentImage:
		return "document_image"
	case MediaOther:
		return "other_media"
	default:
		return fmt.Sprintf("media_kind(%d)", int(k))
	}
}

// MarshalJSON emits the tag the staged documents use: null for no media,
// a string otherwise.
func (k MediaKind) MarshalJSON() ([]byte, error) {
	if k == MediaNone {
		return []byte("null"), nil
	}
	return []byte(`"` + k.String() + `"`), nil
}

// UnmarshalJSON accepts the staged-document tags.
func (k *MediaKind) UnmarshalJSON(data []byte) error {
	switch string(bytes.Trim(data, `"`)) {
	case "null", "":
		*k = MediaNone
	case "photo":
		*k = MediaPhoto
	case "document_image":
		*k = MediaDocumentImage
	case "other_media":
		*k = MediaOther
	default:
		return fmt.Errorf("unknown media kind %s", data)
	}
	return nil
}

// ScrapedMessage is one channel message as staged to disk. Field names match
// the staged JSON documents consumed by the raw loader.
type ScrapedMessage struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"date"`
	Message     string    `json:"message"`
	Views       *int      `json:"views"`
	ChannelID   int64     `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	HasMedia    bool      `json:"has_media"`
	MediaType   MediaKind `json:"media_type"`
	FileName    *string   `json:"file_name"`
	FilePath    *string   `json:"file_path"`
}

// RawDocument is a staged message document ready for the raw store: the
// verbatim payload plus the identity fields the dedup check needs.
type RawDocument struct {
	MessageID   int64
	ChannelName string
	Payload     []byte
}

// DetectionRecord is one detected object in one staged image. MessageID is
// the sha256 hex of the image path (the bulk-load join surrogate);
// SourceMessageID is parsed from the staged media filename and is 0 when
// the name does not carry one.
type DetectionRecord struct {
	MessageID       string
	SourceMessageID int64
	DetectedClass   string
	Confidence      float64
	DetectedAt      time.Time
}

// Detection is a single model hit for an image.
type Detection struct {
	Class      string
	Confidence float64
}

// ScrapeStats summarises one scrape run.
type ScrapeStats struct {
	Channels int
	Messages int
	Media    int
}

// KeywordCount is one row of the top-products report.
type KeywordCount struct {
	Keyword string `json:"product_keyword"`
	Count   int64  `json:"occurrence_count"`
}

// ChannelActivity is daily posting volume for one channel.
type ChannelActivity struct {
	Date         time.Time `json:"activity_date"`
	MessageCount int64     `json:"message_count"`
	TotalViews   int64     `json:"total_views"`
}

// MessageHit is one message-search result.
type MessageHit struct {
	MessageID   string    `json:"message_id"`
	ChannelName string    `json:"channel_name"`
	Text        string    `json:"message_text"`
	Views       int64     `json:"views_count"`
	PostedAt    time.Time `json:"message_timestamp"`
}
