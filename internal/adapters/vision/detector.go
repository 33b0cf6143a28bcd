package vision

import (
	"context"
	"fmt"
	"os"

	visionapi "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"tg-medinsights/internal/domain"
)

// Detector implements domain.ObjectDetector on Cloud Vision object
// localization. The model is opaque to the pipeline: image in, labelled
// objects with scores out.
type Detector struct {
	client     *visionapi.ImageAnnotatorClient
	maxResults int32
	log        zerolog.Logger
}

// NewDetector creates the detector. credentialsFile may be empty, in which
// case ambient application-default credentials apply.
func NewDetector(ctx context.Context, credentialsFile string, maxResults int, log zerolog.Logger) (*Detector, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := visionapi.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	return &Detector{client: client, maxResults: int32(maxResults), log: log}, nil
}

// Close releases the client.
func (d *Detector) Close() error {
	return d.client.Close()
}

// Detect runs object localization on one image file.
func (d *Detector) Detect(ctx context.Context, imagePath string) ([]domain.Detection, error) {
	content, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	resp, err := d.client.AnnotateImage(ctx, &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: content},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: d.maxResults},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("annotate image: %w", err)
	}
	if respErr := resp.GetError(); respErr != nil {
		return nil, fmt.Errorf("annotate image: %s", respErr.GetMessage())
	}

	annotations := resp.GetLocalizedObjectAnnotations()
	detections := make([]domain.Detection, 0, len(annotations))
	for _, a := range annotations {
		score := float64(a.GetScore())
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		detections = append(detections, domain.Detection{
			Class:      a.GetName(),
			Confidence: score,
		})
	}
	d.log.Debug().Str("image", imagePath).Int("objects", len(detections)).Msg("vision: image annotated")
	return detections, nil
}

var _ domain.ObjectDetector = (*Detector)(nil)
