package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-medinsights/internal/domain"
	"tg-medinsights/internal/infra/metrics"
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

var mediaFileNamePattern = regexp.MustCompile(`^message_(\d+)_`)

// Service runs the enrichment stage: it discovers staged images and fans
// every model detection out into one DetectionRecord.
type Service struct {
	detector domain.ObjectDetector
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates the enrichment runner.
func NewService(detector domain.ObjectDetector, log zerolog.Logger) *Service {
	return &Service{detector: detector, log: log, now: time.Now}
}

// Analyze walks mediaRoot recursively and runs the detector on every image
// matching the extension allow-list. Image-level failures are logged and
// skipped. A missing or empty root is a valid nothing-to-process outcome
// and yields an empty record set with no error.
func (s *Service) Analyze(ctx context.Context, mediaRoot string) ([]domain.DetectionRecord, error) {
	images, err := s.findImages(mediaRoot)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		s.log.Info().Str("dir", mediaRoot).Msg("enrich: no images to analyze")
		return nil, nil
	}

	var records []domain.DetectionRecord
	for _, imagePath := range images {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		imageID := PathID(imagePath)
		sourceID := SourceMessageID(imagePath)

		start := time.Now()
		detections, err := s.detector.Detect(ctx, imagePath)
		metrics.ObserveNetworkRequest("detector", "detect", start, err)
		if err != nil {
			metrics.ImagesFailed.Inc()
			s.log.Warn().Err(err).Str("image", imagePath).Msg("enrich: detection failed, skipping image")
			continue
		}

		detectedAt := s.now().UTC()
		for _, d := range detections {
			if d.Confidence < 0 || d.Confidence > 1 {
				s.log.Warn().Float64("confidence", d.Confidence).Str("image", imagePath).Msg("enrich: dropping out-of-range detection")
				continue
			}
			records = append(records, domain.DetectionRecord{
				MessageID:       imageID,
				SourceMessageID: sourceID,
				DetectedClass:   d.Class,
				Confidence:      d.Confidence,
				DetectedAt:      detectedAt,
			})
		}
		metrics.DetectionsEmitted.Add(float64(len(detections)))
	}
	s.log.Info().Int("images", len(images)).Int("detections", len(records)).Msg("enrich: finished")
	return records, nil
}

// findImages lists image files under root in walk order, unbounded depth.
func (s *Service) findImages(root string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	var images []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk media root: %w", err)
	}
	return images, nil
}

// PathID derives the stable per-image identifier: the sha256 hex of the
// full file path. Content-independent on purpose; each run joins against
// that run's paths.
func PathID(imagePath string) string {
	sum := sha256.Sum256([]byte(imagePath))
	return hex.EncodeToString(sum[:])
}

// SourceMessageID recovers the originating message id from the staged
// media file name (message_{id}_{kind}.{ext}). Returns 0 when the name
// does not carry one.
func SourceMessageID(imagePath string) int64 {
	match := mediaFileNamePattern.FindStringSubmatch(filepath.Base(imagePath))
	if match == nil {
		return 0
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
