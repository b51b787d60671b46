package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lueurxax/phrase-relay-bot/internal/platform/observability"
)

// commandHandler is a function that handles a specific bot command.
type commandHandler func(ctx context.Context, msg *tgbotapi.Message)

// commandRegistry holds the mapping of command names to their handlers.
type commandRegistry struct {
	handlers map[string]commandHandler
}

func (b *Bot) newCommandRegistry() *commandRegistry {
	r := &commandRegistry{
		handlers: make(map[string]commandHandler),
	}

	b.registerCoreCommands(r)
	b.registerDestinationCommands(r)

	return r
}

func (b *Bot) registerCoreCommands(r *commandRegistry) {
	r.handlers[CmdStart] = b.handleHelp
	r.handlers[CmdHelp] = b.handleHelp
	r.handlers[CmdStatus] = b.handleStatus
	r.handlers[CmdRecent] = b.handleRecent
}

func (b *Bot) registerDestinationCommands(r *commandRegistry) {
	r.handlers[CmdSetGroup] = b.handleSetGroup
	r.handlers[CmdUnsetGroup] = b.handleUnsetGroup
}

// route runs the handler for the message's command. Unknown commands are
// left alone since groups carry commands meant for other bots.
func (r *commandRegistry) route(ctx context.Context, msg *tgbotapi.Message) bool {
	cmd := msg.Command()

	handler, ok := r.handlers[cmd]
	if !ok {
		return false
	}

	observability.CommandsHandled.WithLabelValues(cmd).Inc()
	handler(ctx, msg)

	return true
}
