// Package help provides bot module for command help message
package help

import (
	"strings"
	"text/tabwriter"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/bot"
	"github.com/eientei/guildpanel/internal/router"
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

	config.Router.Group("info").
		SetDescription("information").
		OnAlias("help", "lists commands", []string{"commands"}, mod.commandHelp)

	return nil
}

func (mod *module) Configure(config *bot.Configuration, guild *discordgo.Guild) {

}

func (mod *module) Shutdown(config *bot.Configuration) {

}

func (mod *module) commandHelp(ctx *router.Context) error {
	prefix := "/"
	if ctx.Source == router.SourceChat {
		prefix = mod.config.Prefix(ctx.GuildID)
	}

	buf := &strings.Builder{}
	buf.WriteString("```\n")

	w := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)

	for _, g := range ctx.Route.Router.Groups {
		header := strings.ToUpper(g.Name)
		if g.Description != "" {
			header += " (" + g.Description + ")"
		}

		_, _ = w.Write([]byte(header + "\n"))

		for _, r := range g.Routes {
			name := prefix + r.Name
			if len(r.Alias) > 0 {
				name += ", " + prefix + strings.Join(r.Alias, ", "+prefix)
			}

			_, _ = w.Write([]byte("  " + name + "\t" + r.Description + "\n"))
		}
	}

	_ = w.Flush()

	buf.WriteString("```")

	return ctx.ReplyEmbed(buf.String())
}
