// Package admin provides bot module with moderation commands available from chat and dashboard
package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/bot"
	"github.com/eientei/guildpanel/internal/modules/auth"
	"github.com/eientei/guildpanel/internal/router"
)

const (
	maxPurge = 100
	// messages older than that can not be bulk-deleted
	bulkDeleteAge = 14 * 24 * time.Hour
)

var (
	// ErrInvalidArgumentNumber is retuned when invalid number of arguments is supplied
	ErrInvalidArgumentNumber = router.InputError("invalid argument number")
	// ErrInvalidCount is returned when purge count is out of range
	ErrInvalidCount = router.InputError("count must be between 1 and 100")
	// ErrNoChannel is returned when command requires channel but none was given
	ErrNoChannel = router.InputError("channel required")
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

	config.Router.Group("info").On("ping", "shows gateway latency", mod.commandPing)

	group := config.Router.Group("admin").SetDescription("moderation")
	group.Set(auth.RouteConfigKey, &auth.RouteConfig{
		Permissions: discordgo.PermissionManageMessages,
	})

	group.On("purge", "deletes last N messages in channel", mod.commandPurge)
	group.On("say", "posts text to channel", mod.commandSay)
	group.On("prefix", "shows or changes command prefix", mod.commandPrefix).
		Set(auth.RouteConfigKey, &auth.RouteConfig{
			Permissions: discordgo.PermissionAdministrator,
		})

	return nil
}

func (mod *module) Configure(config *bot.Configuration, guild *discordgo.Guild) {

}

func (mod *module) Shutdown(config *bot.Configuration) {

}

func (mod *module) commandPing(ctx *router.Context) error {
	latency := ctx.Session.HeartbeatLatency()

	return ctx.Reply(fmt.Sprintf("pong (%dms)", latency.Milliseconds()))
}

func (mod *module) commandPurge(ctx *router.Context) error {
	if len(ctx.Args) < 2 {
		return ErrInvalidArgumentNumber
	}

	if ctx.ChannelID == "" {
		return ErrNoChannel
	}

	count, err := strconv.Atoi(ctx.Args.Get(1))
	if err != nil || count < 1 || count > maxPurge {
		return ErrInvalidCount
	}

	var before string
	if ctx.Message != nil {
		before = ctx.Message.ID
	}

	msgs, err := ctx.Session.ChannelMessages(ctx.ChannelID, count, before, "", "")
	if err != nil {
		return err
	}

	deadline := mod.config.Clock.Now().Add(-bulkDeleteAge)

	ids := make([]string, 0, len(msgs))

	for _, m := range msgs {
		if m.Timestamp.Before(deadline) {
			continue
		}

		ids = append(ids, m.ID)
	}

	switch len(ids) {
	case 0:
		return ctx.Reply("nothing to delete")
	case 1:
		err = ctx.Session.ChannelMessageDelete(ctx.ChannelID, ids[0])
	default:
		err = ctx.Session.ChannelMessagesBulkDelete(ctx.ChannelID, ids)
	}

	if err != nil {
		return err
	}

	_, _ = mod.config.Record(context.Background(), fmt.Sprintf("Purged %d messages in #%s", len(ids), channelName(ctx)))

	return ctx.Reply(fmt.Sprintf("deleted %d messages", len(ids)))
}

func (mod *module) commandSay(ctx *router.Context) error {
	text := strings.TrimSpace(ctx.Args.Join(1))
	if text == "" {
		return ErrInvalidArgumentNumber
	}

	if ctx.ChannelID == "" {
		return ErrNoChannel
	}

	_, err := ctx.Session.ChannelMessageSend(ctx.ChannelID, text)

	return err
}

func (mod *module) commandPrefix(ctx *router.Context) error {
	prefix := ctx.Args.Get(1)
	if prefix == "" {
		return ctx.ReplyEmbed("current prefix: `" + mod.config.Prefix(ctx.GuildID) + "`")
	}

	err := mod.config.SetPrefix(ctx.GuildID, prefix)
	if err != nil {
		return err
	}

	_, _ = mod.config.Record(context.Background(), "Changed command prefix to "+prefix)

	return ctx.ReplyEmbed("prefix set to `" + prefix + "`")
}

func channelName(ctx *router.Context) string {
	if ch, err := ctx.Session.State.Channel(ctx.ChannelID); err == nil {
		return ch.Name
	}

	return ctx.ChannelID
}
