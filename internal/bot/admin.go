package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/hub"
	"github.com/eientei/guildpanel/internal/metrics"
	"github.com/eientei/guildpanel/internal/router"
)

const (
	membersPage   = 1000
	maxDeleteDays = 7
)

var (
	// ErrGuildNotFound is returned when bot is not a member of requested guild
	ErrGuildNotFound = errors.New("guild not found")
	// ErrChannelNotFound is returned when channel is unknown or not accessible
	ErrChannelNotFound = errors.New("channel not found")
	// ErrMemberNotFound is returned when user is not a member of guild
	ErrMemberNotFound = errors.New("member not found")
	// ErrRoleNotFound is returned when role does not exist in guild
	ErrRoleNotFound = errors.New("role not found")
	// ErrEmptyMessage is returned when sending message without content
	ErrEmptyMessage = errors.New("empty message")
	// ErrEmptyEmbed is returned when sending embed without title and description
	ErrEmptyEmbed = errors.New("embed requires title or description")
)

// Guild is a guild summary
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	MemberCount int    `json:"memberCount,omitempty"`
}

// Channel is a text-capable guild channel summary
type Channel struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	ParentID string                `json:"parentId,omitempty"`
	Type     discordgo.ChannelType `json:"type"`
	Position int                   `json:"position"`
}

// Member is a guild member summary
type Member struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Nick     string   `json:"nick,omitempty"`
	Roles    []string `json:"roles"`
	Bot      bool     `json:"bot"`
}

// Role is a guild role summary
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"color"`
	Position int    `json:"position"`
	Managed  bool   `json:"managed"`
}

// EmbedRequest describes embed to be posted
type EmbedRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Footer      string `json:"footer"`
	URL         string `json:"url"`
	Color       Color  `json:"color"`
}

// IsNotFound returns true for lookup failures, including platform 404 responses
func IsNotFound(err error) bool {
	switch {
	case errors.Is(err, ErrGuildNotFound),
		errors.Is(err, ErrChannelNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrRoleNotFound):
		return true
	}

	return restStatus(err) == http.StatusNotFound
}

func restStatus(err error) int {
	var rerr *discordgo.RESTError

	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode
	}

	return 0
}

func isTextBased(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildStageVoice,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return true
	}

	return false
}

func (bot *Bot) lookupGuild(guildID string) (*discordgo.Guild, error) {
	guild, err := bot.Discord.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGuildNotFound, guildID)
	}

	return guild, nil
}

func (bot *Bot) lookupChannel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if ch, err := bot.Discord.State.Channel(channelID); err == nil {
		return ch, nil
	}

	ch, err := bot.Discord.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		if restStatus(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
		}

		return nil, err
	}

	return ch, nil
}

func (bot *Bot) lookupMember(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if m, err := bot.Discord.State.Member(guildID, userID); err == nil && m.User != nil {
		return m, nil
	}

	m, err := bot.Discord.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if restStatus(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, userID)
		}

		return nil, err
	}

	return m, nil
}

func (bot *Bot) lookupRole(ctx context.Context, guildID, roleID string) (*discordgo.Role, error) {
	if r, err := bot.Discord.State.Role(guildID, roleID); err == nil {
		return r, nil
	}

	roles, err := bot.Discord.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	for _, r := range roles {
		if r.ID == roleID {
			return r, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
}

func (bot *Bot) record(ctx context.Context, kind, action string) {
	metrics.ObserveAction(kind, nil)

	_, _ = bot.Record(ctx, action)
}

func (bot *Bot) fail(kind string, err error) error {
	metrics.ObserveAction(kind, err)

	return err
}

func userTag(m *discordgo.Member) string {
	if m.User == nil {
		return ""
	}

	if m.User.Discriminator == "" || m.User.Discriminator == "0" {
		return m.User.Username
	}

	return m.User.Username + "#" + m.User.Discriminator
}

// Guilds lists guilds the bot is in
func (bot *Bot) Guilds() []Guild {
	state := bot.Discord.State

	state.RLock()
	defer state.RUnlock()

	guilds := make([]Guild, 0, len(state.Guilds))

	for _, g := range state.Guilds {
		guilds = append(guilds, Guild{
			ID:          g.ID,
			Name:        g.Name,
			Icon:        g.Icon,
			MemberCount: g.MemberCount,
		})
	}

	sort.Slice(guilds, func(i, j int) bool {
		return strings.ToLower(guilds[i].Name) < strings.ToLower(guilds[j].Name)
	})

	return guilds
}

// Channels lists text-capable channels of guild
func (bot *Bot) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	guild, err := bot.lookupGuild(guildID)
	if err != nil {
		return nil, err
	}

	bot.Discord.State.RLock()
	chans := append([]*discordgo.Channel(nil), guild.Channels...)
	bot.Discord.State.RUnlock()

	if len(chans) == 0 {
		chans, err = bot.Discord.GuildChannels(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
	}

	channels := make([]Channel, 0, len(chans))

	for _, c := range chans {
		if !isTextBased(c.Type) {
			continue
		}

		channels = append(channels, Channel{
			ID:       c.ID,
			Name:     c.Name,
			ParentID: c.ParentID,
			Type:     c.Type,
			Position: c.Position,
		})
	}

	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Position < channels[j].Position
	})

	return channels, nil
}

// Members fetches all members of guild
func (bot *Bot) Members(ctx context.Context, guildID string) ([]Member, error) {
	if _, err := bot.lookupGuild(guildID); err != nil {
		return nil, err
	}

	members := make([]Member, 0)

	var after string

	for {
		page, err := bot.Discord.GuildMembers(guildID, after, membersPage, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}

		for _, m := range page {
			if m.User == nil {
				continue
			}

			members = append(members, Member{
				ID:       m.User.ID,
				Username: m.User.Username,
				Nick:     m.Nick,
				Roles:    m.Roles,
				Bot:      m.User.Bot,
			})
		}

		if len(page) < membersPage || page[len(page)-1].User == nil {
			break
		}

		after = page[len(page)-1].User.ID
	}

	return members, nil
}

// Roles lists roles of guild, highest first
func (bot *Bot) Roles(ctx context.Context, guildID string) ([]Role, error) {
	guild, err := bot.lookupGuild(guildID)
	if err != nil {
		return nil, err
	}

	bot.Discord.State.RLock()
	raw := append([]*discordgo.Role(nil), guild.Roles...)
	bot.Discord.State.RUnlock()

	if len(raw) == 0 {
		raw, err = bot.Discord.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
	}

	roles := make([]Role, 0, len(raw))

	for _, r := range raw {
		roles = append(roles, Role{
			ID:       r.ID,
			Name:     r.Name,
			Color:    r.Color,
			Position: r.Position,
			Managed:  r.Managed,
		})
	}

	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Position > roles[j].Position
	})

	return roles, nil
}

// Send posts text message to channel
func (bot *Bot) Send(ctx context.Context, channelID, content string) error {
	if strings.TrimSpace(content) == "" {
		return bot.fail("send", ErrEmptyMessage)
	}

	ch, err := bot.lookupChannel(ctx, channelID)
	if err != nil {
		return bot.fail("send", err)
	}

	msg, err := bot.Discord.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx))
	if err != nil {
		return bot.fail("send", err)
	}

	author := "bot"
	if u := bot.BotUser(); u != nil {
		author = u.Username
	}

	if bot.Broadcaster != nil {
		bot.Broadcaster.Broadcast(hub.MessageEvent(ch.GuildID, ch.ID, author, msg.Content))
	}

	bot.record(ctx, "send", fmt.Sprintf("Sent message to #%s", ch.Name))

	return nil
}

// Embed posts embed to channel
func (bot *Bot) Embed(ctx context.Context, channelID string, req EmbedRequest) error {
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		return bot.fail("embed", ErrEmptyEmbed)
	}

	ch, err := bot.lookupChannel(ctx, channelID)
	if err != nil {
		return bot.fail("embed", err)
	}

	embed := &discordgo.MessageEmbed{
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		Color:       int(req.Color),
	}

	if req.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: req.Footer,
		}
	}

	_, err = bot.Discord.ChannelMessageSendEmbed(ch.ID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return bot.fail("embed", err)
	}

	bot.record(ctx, "embed", fmt.Sprintf("Sent embed to #%s", ch.Name))

	return nil
}

// Kick removes member from guild
func (bot *Bot) Kick(ctx context.Context, guildID, userID, reason string) error {
	if _, err := bot.lookupGuild(guildID); err != nil {
		return bot.fail("kick", err)
	}

	member, err := bot.lookupMember(ctx, guildID, userID)
	if err != nil {
		return bot.fail("kick", err)
	}

	err = bot.Discord.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
	if err != nil {
		return bot.fail("kick", err)
	}

	bot.record(ctx, "kick", "Kicked "+userTag(member))

	return nil
}

// Ban bans member from guild, deleting up to deleteDays of their messages
func (bot *Bot) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	if _, err := bot.lookupGuild(guildID); err != nil {
		return bot.fail("ban", err)
	}

	member, err := bot.lookupMember(ctx, guildID, userID)
	if err != nil {
		return bot.fail("ban", err)
	}

	if deleteDays < 0 {
		deleteDays = 0
	}

	if deleteDays > maxDeleteDays {
		deleteDays = maxDeleteDays
	}

	err = bot.Discord.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx))
	if err != nil {
		return bot.fail("ban", err)
	}

	bot.record(ctx, "ban", "Banned "+userTag(member))

	return nil
}

// RoleAdd grants role to member
func (bot *Bot) RoleAdd(ctx context.Context, guildID, userID, roleID string) error {
	if _, err := bot.lookupGuild(guildID); err != nil {
		return bot.fail("role_add", err)
	}

	role, err := bot.lookupRole(ctx, guildID, roleID)
	if err != nil {
		return bot.fail("role_add", err)
	}

	member, err := bot.lookupMember(ctx, guildID, userID)
	if err != nil {
		return bot.fail("role_add", err)
	}

	err = bot.Discord.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	if err != nil {
		return bot.fail("role_add", err)
	}

	bot.record(ctx, "role_add", fmt.Sprintf("Added role @%s to %s", role.Name, userTag(member)))

	return nil
}

// RoleRemove revokes role from member
func (bot *Bot) RoleRemove(ctx context.Context, guildID, userID, roleID string) error {
	if _, err := bot.lookupGuild(guildID); err != nil {
		return bot.fail("role_remove", err)
	}

	role, err := bot.lookupRole(ctx, guildID, roleID)
	if err != nil {
		return bot.fail("role_remove", err)
	}

	member, err := bot.lookupMember(ctx, guildID, userID)
	if err != nil {
		return bot.fail("role_remove", err)
	}

	err = bot.Discord.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	if err != nil {
		return bot.fail("role_remove", err)
	}

	bot.record(ctx, "role_remove", fmt.Sprintf("Removed role @%s from %s", role.Name, userTag(member)))

	return nil
}

// Execute runs registered command on behalf of dashboard and returns its replies
func (bot *Bot) Execute(ctx context.Context, guildID, channelID, command string, args []string) ([]string, error) {
	if _, err := bot.lookupGuild(guildID); err != nil {
		return nil, bot.fail("execute", err)
	}

	if channelID != "" {
		ch, err := bot.lookupChannel(ctx, channelID)
		if err != nil {
			return nil, bot.fail("execute", err)
		}

		if ch.GuildID != guildID {
			return nil, bot.fail("execute", fmt.Errorf("%w: %s", ErrChannelNotFound, channelID))
		}
	}

	command = strings.TrimPrefix(strings.TrimSpace(command), "/")

	rctx := &router.Context{
		Session:   bot.Discord,
		GuildID:   guildID,
		ChannelID: channelID,
		Args:      append(router.Args{command}, args...),
		Source:    router.SourceDashboard,
	}

	if err := bot.Router.Execute(rctx); err != nil {
		return rctx.Replies, bot.fail("execute", err)
	}

	bot.record(ctx, "execute", fmt.Sprintf("Executed command /%s", command))

	return rctx.Replies, nil
}
