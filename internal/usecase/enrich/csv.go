package enrich

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tg-medinsights/internal/domain"
)

// WriteCSV encodes the record set in the bulk-load wire format: headerless
// rows of (message_id, detected_object_class, confidence_score,
// detection_timestamp).
func WriteCSV(w io.Writer, records []domain.DetectionRecord) error {
	cw := csv.NewWriter(w)
	for _, r := range records {
		row := []string{
			r.MessageID,
			r.DetectedClass,
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			r.DetectedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write detection row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the record set to {processedDir}/detections.csv,
// creating the directory when needed.
func ExportCSV(processedDir string, records []domain.DetectionRecord) (string, error) {
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return "", fmt.Errorf("create processed dir: %w", err)
	}
	path := filepath.Join(processedDir, "detections.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()
	if err := WriteCSV(f, records); err != nil {
		return "", err
	}
	return path, nil
}
