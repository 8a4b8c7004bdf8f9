// Package router provides command router
package router

import (
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Source tells where command invocation came from
type Source int

// Known invocation sources
const (
	SourceChat Source = iota
	SourceDashboard
)

// Args provide abstraction for getting arguments
type Args []string

// Get returns bound-safe argument by index
func (args Args) Get(i int) string {
	if len(args) <= i {
		return ""
	}

	return args[i]
}

// Join joins arguments starting with given index
func (args Args) Join(i int) string {
	if i >= len(args) {
		return ""
	}

	return strings.Join(args[i:], " ")
}

// GroupSorterFunc provides sorting for groups
type GroupSorterFunc func(a, b *Group) bool

// RouteSorterFunc provides sorting for routes
type RouteSorterFunc func(a, b *Route) bool

// MatcherFunc implements matching command name
type MatcherFunc func(name string) bool

// MiddlewareFunc implements command wrapping
type MiddlewareFunc func(handler HandlerFunc) HandlerFunc

// HandlerFunc implements command execution
type HandlerFunc func(ctx *Context) error

// Context simplifies request handling
type Context struct {
	Session   *discordgo.Session
	Message   *discordgo.Message
	Member    *discordgo.Member
	Route     *Route
	GuildID   string
	ChannelID string
	UserID    string
	Args      Args
	Replies   []string
	Source    Source
}

// Reply records reply text and posts it to originating channel for chat invocations
func (ctx *Context) Reply(text string) error {
	ctx.Replies = append(ctx.Replies, text)

	if ctx.Source != SourceChat || ctx.Session == nil || ctx.ChannelID == "" {
		return nil
	}

	_, err := ctx.Session.ChannelMessageSend(ctx.ChannelID, text)

	return err
}

// React reacts to original chat message with emoji, noop for other sources
func (ctx *Context) React(emoji string) error {
	if ctx.Source != SourceChat || ctx.Session == nil || ctx.Message == nil {
		return nil
	}

	return ctx.Session.MessageReactionAdd(ctx.Message.ChannelID, ctx.Message.ID, emoji)
}

// ReplyEmbed records reply text and posts it as embed description for chat invocations
func (ctx *Context) ReplyEmbed(desc string) error {
	ctx.Replies = append(ctx.Replies, desc)

	if ctx.Source != SourceChat || ctx.Session == nil || ctx.ChannelID == "" {
		return nil
	}

	_, err := ctx.Session.ChannelMessageSendEmbed(ctx.ChannelID, &discordgo.MessageEmbed{
		Description: desc,
	})

	return err
}

// NewRouter returns new router instance
func NewRouter() *Router {
	return &Router{
		Routes: make(map[string]*Route),
		GroupSorter: func(a, b *Group) bool {
			return a.Name >= b.Name
		},
		DefaultRouteSorter: func(a, b *Route) bool {
			return a.Name >= b.Name
		},
		m: &sync.Mutex{},
	}
}

// Route describes command route
type Route struct {
	Router      *Router
	Matcher     MatcherFunc
	Handler     HandlerFunc
	Baked       HandlerFunc
	Data        map[string]interface{}
	Name        string
	Description string
	Middleware  []MiddlewareFunc
	Groups      []*Group
	Alias       []string
}

// Set sets route config value
func (route *Route) Set(k string, v interface{}) *Route {
	route.Data[k] = v

	return route
}

// Get returns route (or any of parent groups) config value
func (route *Route) Get(k string) interface{} {
	if v, ok := route.Data[k]; ok {
		return v
	}

	for _, g := range route.Groups {
		if v, ok := g.Data[k]; ok {
			return v
		}
	}

	return nil
}
