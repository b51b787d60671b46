package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const msgInvalidChatID = "❌ ID de chat inválido: <code>%s</code>"

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	b.client.Reply(ctx, msg, msgHelp)
}

// handleSetGroup binds the destination to the current chat, or to the chat
// id given as argument.
func (b *Bot) handleSetGroup(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		parsed, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || parsed == 0 {
			b.client.Reply(ctx, msg, fmt.Sprintf(msgInvalidChatID, html.EscapeString(arg)))
			return
		}

		chatID = parsed
	}

	previous := b.target.Set(chatID)

	b.logger.Info().Int64("previous", previous).Int64("target", chatID).Msg("Destination group changed")
	b.client.Reply(ctx, msg, fmt.Sprintf(msgTargetSet, chatID))
}

func (b *Bot) handleUnsetGroup(ctx context.Context, msg *tgbotapi.Message) {
	previous := b.target.Set(0)

	b.logger.Info().Int64("previous", previous).Msg("Destination group cleared")
	b.client.Reply(ctx, msg, msgTargetUnset)
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	b.client.Reply(ctx, msg, b.statusText(ctx))
}

func (b *Bot) statusText(ctx context.Context) string {
	var sb strings.Builder

	sb.WriteString(msgStatusHeader)

	target := msgNoTarget
	if id := b.target.Target(); id != 0 {
		target = fmt.Sprintf("<code>%d</code>", id)
	}

	fmt.Fprintf(&sb, msgStatusTarget, target)

	breaker := ""
	if state := b.engineState(); state != "" {
		breaker = fmt.Sprintf(msgStatusBreaker, state)
	}

	fmt.Fprintf(&sb, msgStatusEngine, html.EscapeString(b.engine.Name()), breaker)

	uptime := b.now().Sub(b.startedAt).Round(time.Second)
	fmt.Fprintf(&sb, msgStatusStarted, b.startedAt.UTC().Format(dateTimeFormat), uptime)

	if b.history == nil {
		return sb.String()
	}

	since := b.now().Add(-statusWindow * time.Hour)

	count, err := b.history.CountCardsSince(ctx, since)
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to count relayed cards")
		fmt.Fprintf(&sb, msgStatusCardsError, html.EscapeString(err.Error()))

		return sb.String()
	}

	fmt.Fprintf(&sb, msgStatusCards, statusWindow, count)

	return sb.String()
}

func (b *Bot) handleRecent(ctx context.Context, msg *tgbotapi.Message) {
	if b.history == nil {
		b.client.Reply(ctx, msg, msgHistoryDisabled)
		return
	}

	cards, err := b.history.RecentCards(ctx, recentCardsLimit)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to load recent cards")
		b.client.Reply(ctx, msg, fmt.Sprintf(msgHistoryError, html.EscapeString(err.Error())))

		return
	}

	if len(cards) == 0 {
		b.client.Reply(ctx, msg, msgHistoryEmpty)
		return
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>Últimas %d tarjetas</b>\n", len(cards))

	for i, c := range cards {
		fmt.Fprintf(&sb, "\n%d. %s\n   <i>%s</i>\n   <code>%s</code>",
			i+1,
			html.EscapeString(c.English),
			html.EscapeString(c.Spanish),
			c.CreatedAt.UTC().Format(dateTimeFormat),
		)
	}

	b.client.Reply(ctx, msg, sb.String())
}
