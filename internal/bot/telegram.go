package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
)

const (
	updatesTimeoutSeconds = 60
	downloadTimeout       = 60 * time.Second
)

var errDownloadStatus = errors.New("unexpected download status")

// telegramAPI is the subset of *tgbotapi.BotAPI the bot relies on.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client wraps the Bot API with an outbound rate limit and attachment downloads.
type Client struct {
	api     telegramAPI
	limiter *rate.Limiter
	http    *http.Client
	logger  *zerolog.Logger
}

// NewAPI authenticates against the Bot API.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}

	return api, nil
}

// NewClient builds a client sending at most rps messages per second.
func NewClient(api telegramAPI, rps float64, burst int, logger *zerolog.Logger) *Client {
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		http:    &http.Client{Timeout: downloadTimeout},
		logger:  logger,
	}
}

// DeleteWebhook removes any webhook and drops updates queued while the bot
// was down, otherwise long polling is rejected with a conflict.
func (c *Client) DeleteWebhook() error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	c.logger.Info().Msg("Webhook deleted, pending updates dropped")

	return nil
}

// Updates starts long polling.
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updatesTimeoutSeconds

	return c.api.GetUpdatesChan(u)
}

// StopUpdates stops long polling.
func (c *Client) StopUpdates() {
	c.api.StopReceivingUpdates()
}

// SendCard posts an HTML message, as a reply when replyTo is set.
func (c *Client) SendCard(ctx context.Context, chatID int64, replyTo int, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate limit: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyToMessageID = replyTo

	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf(ErrSendMessage, chatID, err)
	}

	return nil
}

// Reply answers a command in the chat it came from.
func (c *Client) Reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	if err := c.SendCard(ctx, msg.Chat.ID, msg.MessageID, text); err != nil {
		c.logger.Error().Err(err).Int64(LogFieldChatID, msg.Chat.ID).Msg("failed to send reply")
	}
}

// FetchImage downloads an attachment, refusing bodies larger than maxBytes.
func (c *Client) FetchImage(ctx context.Context, fileID string, maxBytes int) ([]byte, error) {
	fileURL, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", redactURL(err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errDownloadStatus, resp.StatusCode)
	}

	if maxBytes > 0 && resp.ContentLength > int64(maxBytes) {
		return nil, fmt.Errorf("%w: %d bytes", apperrors.ErrImageTooLarge, resp.ContentLength)
	}

	body := io.Reader(resp.Body)
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, int64(maxBytes)+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}

	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", apperrors.ErrImageTooLarge, maxBytes)
	}

	return data, nil
}

// redactURL strips the request URL from transport errors; file URLs embed the bot token.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}

	return err
}
