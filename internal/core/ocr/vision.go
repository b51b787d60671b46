package ocr

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
)

// visionLanguageHints are BCP-47 hints for card screenshots.
var visionLanguageHints = []string{"en", "es"}

// VisionClient is the subset of vision.ImageAnnotatorClient used by VisionEngine.
type VisionClient interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

var _ VisionClient = (*vision.ImageAnnotatorClient)(nil)

// VisionEngine recognizes text with Google Cloud Vision document text detection.
type VisionEngine struct {
	client VisionClient
}

// NewVisionEngine dials Cloud Vision. Application default credentials are used
// when credentialsFile is empty.
func NewVisionEngine(ctx context.Context, credentialsFile string) (*VisionEngine, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}

	return &VisionEngine{client: client}, nil
}

// NewVisionEngineWithClient wraps an existing client.
func NewVisionEngineWithClient(client VisionClient) *VisionEngine {
	return &VisionEngine{client: client}
}

func (e *VisionEngine) Name() string { return "vision" }

// Recognize sends a single-image batch with document text detection.
func (e *VisionEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	resp, err := e.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: in.Image},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: visionLanguageHints},
		}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("annotate image: %w", err)
	}

	if len(resp.GetResponses()) == 0 {
		return Result{}, fmt.Errorf("annotate image: %w", apperrors.ErrEmptyResponse)
	}

	annotated := resp.GetResponses()[0]
	if st := annotated.GetError(); st != nil && st.GetCode() != 0 {
		return Result{}, fmt.Errorf("%w: vision code %d: %s", apperrors.ErrRecognitionFailed, st.GetCode(), st.GetMessage())
	}

	return Result{
		InputID:   in.ID,
		Engine:    e.Name(),
		PlainText: strings.TrimSpace(annotated.GetFullTextAnnotation().GetText()),
	}, nil
}

func (e *VisionEngine) Close() error {
	if err := e.client.Close(); err != nil {
		return fmt.Errorf("close vision client: %w", err)
	}

	return nil
}
