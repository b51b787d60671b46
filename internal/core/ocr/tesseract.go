package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text with the local Tesseract library.
// A fresh client is created per image; gosseract clients are not goroutine safe.
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed engine for the given language packs.
func NewTesseractEngine(languages []string) *TesseractEngine {
	return &TesseractEngine{
		languages:     append([]string(nil), languages...),
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs Tesseract on a single image.
func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("tesseract: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	langs := in.Languages
	if len(langs) == 0 {
		langs = e.languages
	}

	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return Result{}, fmt.Errorf("set languages: %w", err)
		}
	}

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	return Result{
		InputID:   in.ID,
		Engine:    e.Name(),
		PlainText: strings.TrimSpace(text),
	}, nil
}
