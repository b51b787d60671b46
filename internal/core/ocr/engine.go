// Package ocr turns card screenshots into plain text.
//
// Engines are interchangeable behind the Engine interface: a local Tesseract
// binding, Google Cloud Vision and an OpenAI vision model. Remote engines are
// wrapped in a circuit breaker and every engine is instrumented.
package ocr

import "context"

// Input is a single image prepared for recognition.
type Input struct {
	// ID correlates the request with logs.
	ID string
	// Image holds PNG-encoded bytes, see Prepare.
	Image []byte
	// Languages are engine-specific language hints.
	Languages []string
}

// Result is the recognized text of one image.
type Result struct {
	InputID   string
	Engine    string
	PlainText string
}

// Engine recognizes text in images.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// Closer is implemented by engines that hold remote connections.
type Closer interface {
	Close() error
}

// Close releases engine resources when the engine holds any.
func Close(e Engine) error {
	if c, ok := e.(Closer); ok {
		return c.Close()
	}

	return nil
}
