package staging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tg-medinsights/internal/domain"
)

func TestWriteMessageOverwrites(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, t.TempDir())
	date := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	msg := domain.ScrapedMessage{ID: 101, ChannelName: "chan_a", Message: "first"}
	if err := w.WriteMessage(msg, date); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg.Message = "second"
	if err := w.WriteMessage(msg, date); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir := filepath.Join(base, "2024-06-01", "chan_a")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read partition: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 document, got %d", len(entries))
	}
	if entries[0].Name() != "101.json" {
		t.Fatalf("expected document named by id, got %s", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, "101.json"))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var stored domain.ScrapedMessage
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("parse document: %v", err)
	}
	if stored.Message != "second" {
		t.Fatalf("expected overwrite, got %q", stored.Message)
	}
}

func TestWriteMessageMediaTypeTags(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, t.TempDir())
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := w.WriteMessage(domain.ScrapedMessage{ID: 1, ChannelName: "c", MediaType: domain.MediaNone}, date); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.WriteMessage(domain.ScrapedMessage{ID: 2, ChannelName: "c", HasMedia: true, MediaType: domain.MediaPhoto}, date); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noMedia, err := os.ReadFile(filepath.Join(base, "2024-06-01", "c", "1.json"))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !strings.Contains(string(noMedia), `"media_type": null`) {
		t.Fatalf("expected null media_type, got:\n%s", noMedia)
	}

	photo, err := os.ReadFile(filepath.Join(base, "2024-06-01", "c", "2.json"))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !strings.Contains(string(photo), `"media_type": "photo"`) {
		t.Fatalf("expected photo media_type, got:\n%s", photo)
	}
}

func TestMediaPath(t *testing.T) {
	imagesBase := t.TempDir()
	w := NewWriter(t.TempDir(), imagesBase)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	name, path, err := w.MediaPath(date, "chan_a", 42, domain.MediaPhoto, "jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "message_42_photo.jpg" {
		t.Fatalf("unexpected media name %s", name)
	}
	wantDir := filepath.Join(imagesBase, "2024-06-01", "chan_a")
	if filepath.Dir(path) != wantDir {
		t.Fatalf("expected path under %s, got %s", wantDir, path)
	}
	if info, err := os.Stat(wantDir); err != nil || !info.IsDir() {
		t.Fatalf("expected media partition directory to exist: %v", err)
	}

	docName, _, err := w.MediaPath(date, "chan_a", 42, domain.MediaDocumentImage, "png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docName != "message_42_doc_image.png" {
		t.Fatalf("unexpected media name %s", docName)
	}
}
