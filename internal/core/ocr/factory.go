package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/config"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/observability"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Instrumented records duration and outcome of every recognition.
type Instrumented struct {
	next Engine
}

func NewInstrumented(next Engine) *Instrumented {
	return &Instrumented{next: next}
}

func (i *Instrumented) Name() string { return i.next.Name() }

func (i *Instrumented) Recognize(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	res, err := i.next.Recognize(ctx, in)

	observability.OCRRequestDuration.WithLabelValues(i.next.Name()).Observe(time.Since(start).Seconds())

	status := statusSuccess
	if err != nil {
		status = statusError
	}

	observability.OCRRequests.WithLabelValues(i.next.Name(), status).Inc()

	return res, err
}

// State forwards the breaker state when the wrapped engine has one.
func (i *Instrumented) State() string {
	if s, ok := i.next.(interface{ State() string }); ok {
		return s.State()
	}

	return ""
}

func (i *Instrumented) Close() error {
	return Close(i.next)
}

// New builds the engine selected in the configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Engine, error) {
	breakerCfg := BreakerConfig{Failures: cfg.BreakerFailures, Timeout: cfg.BreakerTimeout}

	var engine Engine

	switch cfg.OCREngine {
	case config.EngineTesseract:
		engine = NewTesseractEngine(cfg.OCRLanguages)
	case config.EngineVision:
		v, err := NewVisionEngine(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}

		engine = NewBreaker(v, breakerCfg, logger)
	case config.EngineOpenAI:
		engine = NewBreaker(NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), breakerCfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrEngineUnknown, cfg.OCREngine)
	}

	logger.Info().Str("engine", engine.Name()).Msg("OCR engine ready")

	return NewInstrumented(engine), nil
}
