// Package livefeed provides bot module forwarding guild chat messages to dashboard subscribers
package livefeed

import (
	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/bot"
	"github.com/eientei/guildpanel/internal/hub"
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

	config.Discord.AddHandler(mod.handlerMessageCreate)

	return nil
}

func (mod *module) Configure(config *bot.Configuration, guild *discordgo.Guild) {

}

func (mod *module) Shutdown(config *bot.Configuration) {

}

func (mod *module) handlerMessageCreate(_ *discordgo.Session, messageCreate *discordgo.MessageCreate) {
	mod.forward(messageCreate.Message)
}

// bot's own messages are broadcast by the sending side
func (mod *module) forward(msg *discordgo.Message) {
	if mod.config.Broadcaster == nil || msg.GuildID == "" || msg.Author == nil {
		return
	}

	if u := mod.config.BotUser(); u != nil && u.ID == msg.Author.ID {
		return
	}

	author := msg.Author.Username
	if msg.Member != nil && msg.Member.Nick != "" {
		author = msg.Member.Nick
	}

	mod.config.Broadcaster.Broadcast(hub.MessageEvent(msg.GuildID, msg.ChannelID, author, msg.Content))
}
