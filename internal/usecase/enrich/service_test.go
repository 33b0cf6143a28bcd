package enrich

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-medinsights/internal/domain"
)

type stubDetector struct {
	perImage map[string][]domain.Detection
	failOn   string
	calls    []string
}

func (d *stubDetector) Detect(_ context.Context, imagePath string) ([]domain.Detection, error) {
	d.calls = append(d.calls, imagePath)
	if d.failOn != "" && strings.HasSuffix(imagePath, d.failOn) {
		return nil, fmt.Errorf("corrupt image")
	}
	return d.perImage[filepath.Base(imagePath)], nil
}

func writeImage(t *testing.T, root string, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestAnalyzeFansOutDetections(t *testing.T) {
	root := t.TempDir()
	path := writeImage(t, root, "2024-06-01", "chan_a", "message_42_photo.jpg")

	detector := &stubDetector{perImage: map[string][]domain.Detection{
		"message_42_photo.jpg": {
			{Class: "person", Confidence: 0.91},
			{Class: "bottle", Confidence: 0.55},
			{Class: "box", Confidence: 0.31},
		},
	}}
	service := NewService(detector, zerolog.Nop())

	records, err := service.Analyze(context.Background(), root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	wantID := PathID(path)
	for _, r := range records {
		if r.MessageID != wantID {
			t.Fatalf("expected shared message id %s, got %s", wantID, r.MessageID)
		}
		if r.SourceMessageID != 42 {
			t.Fatalf("expected source message id 42, got %d", r.SourceMessageID)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			t.Fatalf("confidence out of range: %f", r.Confidence)
		}
		if r.DetectedAt.IsZero() {
			t.Fatalf("expected detection timestamp to be set")
		}
	}
}

func TestAnalyzeEmptyRoot(t *testing.T) {
	service := NewService(&stubDetector{}, zerolog.Nop())

	records, err := service.Analyze(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("unexpected error for missing root: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}

	records, err = service.Analyze(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error for empty root: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestAnalyzeFiltersExtensionsRecursively(t *testing.T) {
	root := t.TempDir()
	writeImage(t, root, "a", "b", "c", "deep.PNG")
	writeImage(t, root, "2024-06-01", "chan", "message_1_photo.jpg")
	writeImage(t, root, "2024-06-01", "chan", "notes.txt")
	writeImage(t, root, "clip.mp4")

	detector := &stubDetector{}
	service := NewService(detector, zerolog.Nop())
	if _, err := service.Analyze(context.Background(), root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detector.calls) != 2 {
		t.Fatalf("expected 2 images analyzed, got %d: %v", len(detector.calls), detector.calls)
	}
}

func TestAnalyzeSkipsFailedImages(t *testing.T) {
	root := t.TempDir()
	writeImage(t, root, "bad.jpg")
	writeImage(t, root, "good.jpg")

	detector := &stubDetector{
		failOn: "bad.jpg",
		perImage: map[string][]domain.Detection{
			"good.jpg": {{Class: "person", Confidence: 0.8}},
		},
	}
	service := NewService(detector, zerolog.Nop())

	records, err := service.Analyze(context.Background(), root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the good image to survive, got %d records", len(records))
	}
	if len(detector.calls) != 2 {
		t.Fatalf("expected both images attempted, got %d", len(detector.calls))
	}
}

func TestAnalyzeDropsOutOfRangeConfidence(t *testing.T) {
	root := t.TempDir()
	writeImage(t, root, "odd.jpg")

	detector := &stubDetector{perImage: map[string][]domain.Detection{
		"odd.jpg": {
			{Class: "ok", Confidence: 1.0},
			{Class: "too_high", Confidence: 1.2},
			{Class: "negative", Confidence: -0.1},
		},
	}}
	service := NewService(detector, zerolog.Nop())

	records, err := service.Analyze(context.Background(), root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].DetectedClass != "ok" {
		t.Fatalf("expected only the in-range detection, got %+v", records)
	}
}

func TestSourceMessageID(t *testing.T) {
	cases := map[string]int64{
		"message_42_photo.jpg":     42,
		"message_7_doc_image.webp": 7,
		"unrelated.jpg":            0,
		"message_x_photo.jpg":      0,
	}
	for name, want := range cases {
		if got := SourceMessageID(filepath.Join("any", "where", name)); got != want {
			t.Fatalf("%s: expected %d, got %d", name, want, got)
		}
	}
}

func TestWriteCSVFormat(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	records := []domain.DetectionRecord{
		{MessageID: "abc", DetectedClass: "person", Confidence: 0.91, DetectedAt: ts},
		{MessageID: "def", DetectedClass: "bottle", Confidence: 0.5, DetectedAt: ts},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 headerless rows, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "abc,person,0.91,2024-06-01T12:30:00Z" {
		t.Fatalf("unexpected first row: %s", lines[0])
	}
}
