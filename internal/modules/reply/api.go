// Package reply provides bot module reporting command outcome back to chat
package reply

import (
	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/bot"
	"github.com/eientei/guildpanel/internal/router"
)

const (
	emojiOk = "\xe2\x9c\x85"
	emojiX  = "\xe2\x9d\x8c"
)

// New provides module instance
func New() bot.Module {
	return &module{}
}

type module struct {
	config *bot.Configuration
}

func (mod *module) Initialize(config *bot.Configuration) error {
	mod.config = config

	config.Router.AppendMiddleware(mod.middlewareReply)

	return nil
}

func (mod *module) Configure(config *bot.Configuration, guild *discordgo.Guild) {

}

func (mod *module) Shutdown(config *bot.Configuration) {

}

// dashboard invocations report outcome through HTTP response instead
func (mod *module) middlewareReply(handler router.HandlerFunc) router.HandlerFunc {
	return func(ctx *router.Context) error {
		err := handler(ctx)
		if ctx.Source != router.SourceChat {
			return err
		}

		mod.report(ctx, err)

		return err
	}
}

func (mod *module) report(ctx *router.Context, cmderr error) {
	log := mod.config.Log.WithField("guild", ctx.GuildID).WithField("user", ctx.UserID)
	if ctx.Route != nil {
		log = log.WithField("route", ctx.Route.Name)
	}

	if cmderr == nil {
		if err := ctx.React(emojiOk); err != nil {
			log.WithError(err).Warn("Reacting with ok status")
		}

		return
	}

	log.WithError(cmderr).Info("Command failed")

	if err := ctx.React(emojiX); err != nil {
		log.WithError(err).Warn("Reacting with error status")
	}

	if err := ctx.ReplyEmbed(cmderr.Error()); err != nil {
		log.WithError(err).Warn("Replying with error")
	}
}
