package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/phrase-relay-bot/internal/core/ocr"
	"github.com/lueurxax/phrase-relay-bot/internal/platform/observability"
	"github.com/lueurxax/phrase-relay-bot/internal/process/pipeline"
	db "github.com/lueurxax/phrase-relay-bot/internal/storage"
)

var errUpdatesClosed = errors.New("updates channel closed")

// ImageHandler processes one image job.
type ImageHandler interface {
	Handle(ctx context.Context, job pipeline.Job) (pipeline.Outcome, error)
}

// CardHistory reads the relay journal for /status and /recent.
type CardHistory interface {
	CountCardsSince(ctx context.Context, since time.Time) (int, error)
	RecentCards(ctx context.Context, limit int) ([]db.CardRecord, error)
}

type breakerState interface {
	State() string
}

type Bot struct {
	client    *Client
	handler   ImageHandler
	target    *Destination
	engine    ocr.Engine
	history   CardHistory
	commands  *commandRegistry
	logger    *zerolog.Logger
	startedAt time.Time
	now       func() time.Time
}

// New wires the bot. history may be nil when the journal is disabled.
func New(client *Client, handler ImageHandler, target *Destination, engine ocr.Engine, history CardHistory, logger *zerolog.Logger) *Bot {
	b := &Bot{
		client:    client,
		handler:   handler,
		target:    target,
		engine:    engine,
		history:   history,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}

	b.commands = b.newCommandRegistry()

	return b
}

// Run long-polls for updates until ctx is done. Updates are handled one at a
// time in arrival order.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.client.DeleteWebhook(); err != nil {
		return err
	}

	updates := b.client.Updates()
	defer b.client.StopUpdates()

	b.logger.Info().Int64("target", b.target.Target()).Str("engine", b.engine.Name()).Msg("Bot started")

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("bot run context canceled: %w", ctx.Err())
		case update, ok := <-updates:
			if !ok {
				return errUpdatesClosed
			}

			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Int(LogFieldUpdateID, update.UpdateID).Msg("recovered from panic while handling update")
		}
	}()

	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}

	if msg == nil || msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	b.handleImage(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	logger := b.logger.With().Str("command", msg.Command()).Int64(LogFieldChatID, msg.Chat.ID).Logger()
	if msg.From != nil {
		logger = logger.With().Int64(LogFieldUserID, msg.From.ID).Logger()
	}

	if !b.commands.route(ctx, msg) {
		logger.Debug().Msg("Ignoring unknown command")
		return
	}

	logger.Info().Msg("Handled command")
}

func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message) {
	fileID, kind, ok := imageAttachment(msg)
	if !ok {
		return
	}

	observability.ImagesReceived.WithLabelValues(kind).Inc()

	job := pipeline.Job{
		ID:        uuid.NewString(),
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		FileID:    fileID,
		Kind:      kind,
	}

	if _, err := b.handler.Handle(ctx, job); err != nil {
		b.logger.Error().Err(err).Str(LogFieldJobID, job.ID).Int64(LogFieldChatID, job.ChatID).Msg("failed to process image")
	}
}

// imageAttachment picks the largest photo size, or an image sent as a file.
func imageAttachment(msg *tgbotapi.Message) (fileID, kind string, ok bool) {
	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width*p.Height >= best.Width*best.Height {
				best = p
			}
		}

		return best.FileID, KindPhoto, true
	}

	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, imageMimePrefix) {
		return msg.Document.FileID, KindDocument, true
	}

	return "", "", false
}

func (b *Bot) engineState() string {
	if s, ok := b.engine.(breakerState); ok {
		return s.State()
	}

	return ""
}
