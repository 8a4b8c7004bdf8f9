package bot

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/router"
)

func (bot *Bot) handlerReady(_ *discordgo.Session, ready *discordgo.Ready) {
	if ready.User != nil {
		bot.Log.Infof("Bot logged in as %s", ready.User.String())
	}
}

func (bot *Bot) handlerGuildCreate(_ *discordgo.Session, guildCreate *discordgo.GuildCreate) {
	bot.configure(guildCreate.Guild)

	for _, m := range bot.Modules {
		m.Configure(&bot.Configuration, guildCreate.Guild)
	}
}

func (bot *Bot) handlerMessageCreate(session *discordgo.Session, messageCreate *discordgo.MessageCreate) {
	if messageCreate.GuildID == "" || messageCreate.Author == nil {
		return
	}

	var selfID string
	if u := bot.BotUser(); u != nil {
		selfID = u.ID
	}

	err := bot.Router.Dispatch(session, bot.Prefix(messageCreate.GuildID), selfID, messageCreate.Message)
	if err != nil && !errors.Is(err, router.ErrNotMatched) {
		bot.Log.WithError(err).WithField("guild", messageCreate.GuildID).Debug("Dispatching command")
	}
}
