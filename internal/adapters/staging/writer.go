package staging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tg-medinsights/internal/domain"
)

// DateLayout names the first partition level of the staging tree.
const DateLayout = "2006-01-02"

// Writer stages scraped messages and media as a (date, channel, id)
// partitioned file tree. Writes for the same key overwrite, which is what
// makes a retried scrape safe.
type Writer struct {
	messagesBase string
	imagesBase   string
}

// NewWriter creates a writer over the two staging roots.
func NewWriter(messagesBase, imagesBase string) *Writer {
	return &Writer{messagesBase: messagesBase, imagesBase: imagesBase}
}

// WriteMessage persists one message as an indented JSON document at
// {messagesBase}/{date}/{channel}/{id}.json.
func (w *Writer) WriteMessage(msg domain.ScrapedMessage, scrapeDate time.Time) error {
	dir := filepath.Join(w.messagesBase, scrapeDate.Format(DateLayout), msg.ChannelName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create message partition: %w", err)
	}
	data, err := json.MarshalIndent(msg, "", "    ")
	if err != nil {
		return fmt.Errorf("encode message %d: %w", msg.ID, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.json", msg.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write message %d: %w", msg.ID, err)
	}
	return nil
}

// MediaPath creates the media partition directory and returns the file
// name and path for a message's media blob:
// {imagesBase}/{date}/{channel}/message_{id}_{kind}.{ext}.
func (w *Writer) MediaPath(scrapeDate time.Time, channel string, msgID int64, kind domain.MediaKind, ext string) (string, string, error) {
	dir := filepath.Join(w.imagesBase, scrapeDate.Format(DateLayout), channel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create media partition: %w", err)
	}
	name := fmt.Sprintf("message_%d_%s.%s", msgID, mediaNameToken(kind), ext)
	return name, filepath.Join(dir, name), nil
}

func mediaNameToken(kind domain.MediaKind) string {
	switch kind {
	case domain.MediaPhoto:
		return "photo"
	case domain.MediaDocumentImage:
		return "doc_image"
	default:
		return "media"
	}
}

var _ domain.MessageSink = (*Writer)(nil)
