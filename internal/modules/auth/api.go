// Package auth provides bot module middleware for authentication on bot commands
package auth

import (
	"errors"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/bot"
	"github.com/eientei/guildpanel/internal/router"
)

// RouteConfigKey is used in route/group data configuration
const RouteConfigKey = "auth"

var (
	// ErrNotAuthorized is returned when user is not authorized to execute this command
	ErrNotAuthorized = errors.New("not authorized")
)

// RouteConfig holds authentication requirements for given route or route group
type RouteConfig struct {
	RoleIDs     []string
	RoleNames   []string
	Permissions int64
}

// New provides module instance
func New() bot.Module {
	return &module{}
}

type module struct {
	config *bot.Configuration
}

func (mod *module) Initialize(config *bot.Configuration) error {
	mod.config = config
	config.Router.AppendMiddleware(mod.middlewareAuth)

	return nil
}

func (mod *module) Configure(config *bot.Configuration, guild *discordgo.Guild) {

}

func (mod *module) Shutdown(config *bot.Configuration) {

}

func (auth *RouteConfig) allows(roleID string, role *discordgo.Role) bool {
	if auth.Permissions != 0 && role.Permissions&(auth.Permissions|discordgo.PermissionAdministrator) != 0 {
		return true
	}

	return slices.Contains(auth.RoleIDs, roleID) || slices.Contains(auth.RoleNames, role.Name)
}

// bot admins and guild owner bypass route requirements
func (mod *module) checkPermissions(ctx *router.Context, auth *RouteConfig) bool {
	if mod.config.Config.IsAdmin(ctx.UserID) {
		return true
	}

	if ctx.Member == nil || ctx.Session == nil {
		return false
	}

	if guild, err := ctx.Session.State.Guild(ctx.GuildID); err == nil && guild.OwnerID == ctx.UserID {
		return true
	}

	for _, r := range ctx.Member.Roles {
		role, err := ctx.Session.State.Role(ctx.GuildID, r)
		if err != nil {
			mod.config.Log.WithError(err).WithField("role", r).Warn("Loading role")
			continue
		}

		if auth.allows(r, role) {
			return true
		}
	}

	return false
}

func (mod *module) middlewareAuth(handler router.HandlerFunc) router.HandlerFunc {
	return func(ctx *router.Context) error {
		if ctx.Source == router.SourceDashboard {
			return handler(ctx)
		}

		var auth *RouteConfig

		switch v := ctx.Route.Get(RouteConfigKey).(type) {
		case *RouteConfig:
			auth = v
		case RouteConfig:
			auth = &v
		default:
			return handler(ctx)
		}

		if mod.checkPermissions(ctx, auth) {
			return handler(ctx)
		}

		return ErrNotAuthorized
	}
}
