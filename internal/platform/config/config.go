package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
)

// OCR engine names.
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
	EngineOpenAI    = "openai"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	BotToken      string  `env:"BOT_TOKEN,required"`
	TargetGroupID int64   `env:"TARGET_GROUP_ID" envDefault:"-1002565451607"`
	ReplyInSource bool    `env:"REPLY_IN_SOURCE" envDefault:"true"`
	SendRPS       float64 `env:"SEND_RPS" envDefault:"1"`
	SendBurst     int     `env:"SEND_BURST" envDefault:"3"`

	// Health server
	Port           int `env:"PORT" envDefault:"8000"`
	HealthMaxConns int `env:"HEALTH_MAX_CONNS" envDefault:"64"`

	// OCR
	OCREngine        string        `env:"OCR_ENGINE" envDefault:"tesseract"`
	OCRLanguages     []string      `env:"OCR_LANGUAGES" envSeparator:"," envDefault:"eng,spa"`
	OCRTimeout       time.Duration `env:"OCR_TIMEOUT" envDefault:"60s"`
	OCRMaxImageBytes int           `env:"OCR_MAX_IMAGE_BYTES" envDefault:"20971520"`
	OCRMaxPixels     int64         `env:"OCR_MAX_PIXELS" envDefault:"40000000"`
	OCRMaxDimension  int           `env:"OCR_MAX_DIMENSION" envDefault:"4096"`

	// Remote OCR engines
	GoogleCredentialsFile string        `env:"GOOGLE_CREDENTIALS_FILE"`
	OpenAIAPIKey          string        `env:"OPENAI_API_KEY"`
	OpenAIModel           string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL         string        `env:"OPENAI_BASE_URL"`
	BreakerFailures       uint32        `env:"OCR_BREAKER_FAILURES" envDefault:"5"`
	BreakerTimeout        time.Duration `env:"OCR_BREAKER_TIMEOUT" envDefault:"1m"`

	// Card journal
	PostgresDSN      string        `env:"POSTGRES_DSN"`
	RelayDedupWindow time.Duration `env:"RELAY_DEDUP_WINDOW" envDefault:"0s"`
	JournalRetention time.Duration `env:"JOURNAL_RETENTION" envDefault:"720h"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	cfg.OCREngine = strings.ToLower(strings.TrimSpace(cfg.OCREngine))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.OCREngine {
	case EngineTesseract, EngineVision:
	case EngineOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for the openai engine", apperrors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrEngineUnknown, c.OCREngine)
	}

	if c.Port <= 0 {
		return fmt.Errorf("%w: PORT must be positive", apperrors.ErrInvalidInput)
	}

	if c.SendRPS <= 0 {
		return fmt.Errorf("%w: SEND_RPS must be positive", apperrors.ErrInvalidInput)
	}

	if c.OCRMaxImageBytes <= 0 {
		return fmt.Errorf("%w: OCR_MAX_IMAGE_BYTES must be positive", apperrors.ErrInvalidInput)
	}

	if c.OCRMaxPixels <= 0 {
		return fmt.Errorf("%w: OCR_MAX_PIXELS must be positive", apperrors.ErrInvalidInput)
	}

	return nil
}

// JournalEnabled reports whether a card journal database is configured.
func (c *Config) JournalEnabled() bool {
	return c.PostgresDSN != ""
}
