package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
)

const (
	openAITranscribePrompt = "Transcribe all text visible in this image exactly as written, " +
		"one line per visual line. Do not translate, explain or add anything."
	openAIMaxTokens = 512
)

// OpenAIEngine transcribes images with a vision-capable chat model.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine builds an engine for the given key and model. An empty
// baseURL uses the public API.
func NewOpenAIEngine(apiKey, model, baseURL string) *OpenAIEngine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	encoded := base64.StdEncoding.EncodeToString(in.Image)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   openAIMaxTokens,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: openAITranscribePrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + encoded,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("openai transcription: %w", apperrors.ErrEmptyResponse)
	}

	return Result{
		InputID:   in.ID,
		Engine:    e.Name(),
		PlainText: strings.TrimSpace(resp.Choices[0].Message.Content),
	}, nil
}
