// Package bot provides chat platform client wrapper performing dashboard actions
package bot

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/config"
	"github.com/eientei/guildpanel/internal/hub"
	"github.com/eientei/guildpanel/internal/model"
	"github.com/eientei/guildpanel/internal/router"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Intents requested from gateway
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentMessageContent

// Options provide configuration options for bot
type Options struct {
	Discord     *discordgo.Session
	Config      *config.Root
	Log         *logrus.Logger
	Repository  *model.Repository
	Broadcaster hub.Broadcaster
	Clock       clockwork.Clock
	Modules     []Module
}

// Configuration store configuration for bot
type Configuration struct {
	Discord     *discordgo.Session
	Config      *config.Root
	Log         *logrus.Logger
	Router      *router.Router
	Repository  *model.Repository
	Broadcaster hub.Broadcaster
	Clock       clockwork.Clock
	bot         *Bot
	Modules     []Module
}

// Record appends action to the log and notifies realtime subscribers
func (conf *Configuration) Record(ctx context.Context, action string) (model.Entry, error) {
	entry, err := conf.Repository.LogAppend(ctx, action)
	if err != nil {
		conf.Log.WithError(err).WithField("action", action).Error("Saving action log")

		return entry, err
	}

	conf.Log.WithField("id", entry.ID).Info(action)

	if conf.Broadcaster != nil {
		conf.Broadcaster.Broadcast(hub.LogEvent(entry.ID, entry.Action, entry.Timestamp))
	}

	return entry, nil
}

// Prefix returns chat command prefix for guild
func (conf *Configuration) Prefix(guildID string) string {
	return conf.bot.guild(guildID).getPrefix()
}

// SetPrefix changes and persists chat command prefix for guild
func (conf *Configuration) SetPrefix(guildID, prefix string) error {
	err := conf.Repository.ConfigSet(guildID, "global", "prefix", prefix)
	if err != nil {
		return err
	}

	conf.bot.guild(guildID).setPrefix(prefix)

	return nil
}

// BotUser returns identity of connected bot user or nil before ready
func (conf *Configuration) BotUser() *discordgo.User {
	if conf.Discord == nil || conf.Discord.State == nil {
		return nil
	}

	return conf.Discord.State.User
}

// Module interface incapsulates methods for distinct functionality
type Module interface {
	Initialize(bot *Configuration) error
	Configure(bot *Configuration, server *discordgo.Guild)
	Shutdown(bot *Configuration)
}

type server struct {
	m      *sync.RWMutex
	prefix string
}

func (s *server) getPrefix() string {
	s.m.RLock()
	defer s.m.RUnlock()

	return s.prefix
}

func (s *server) setPrefix(prefix string) {
	s.m.Lock()
	defer s.m.Unlock()

	s.prefix = prefix
}

func (bot *Bot) guild(guildID string) *server {
	bot.m.Lock()
	defer bot.m.Unlock()

	s, ok := bot.servers[guildID]
	if !ok {
		s = &server{
			m:      &sync.RWMutex{},
			prefix: bot.Config.Private.Prefix,
		}
		bot.servers[guildID] = s
	}

	return s
}

func (bot *Bot) configure(guild *discordgo.Guild) {
	prefix, err := bot.Repository.ConfigGet(guild.ID, "global", "prefix")
	if err != nil {
		bot.Log.WithError(err).Error("Getting server prefix", guild.ID)
		return
	}

	if prefix == "" {
		if srv := bot.Config.ServerByID(guild.ID); srv != nil {
			prefix = srv.Prefix
		}
	}

	if prefix == "" {
		prefix = bot.Config.Private.Prefix
	}

	if prefix == "" {
		prefix = "!"
	}

	bot.guild(guild.ID).setPrefix(prefix)

	err = bot.Repository.ConfigSet(guild.ID, "global", "prefix", prefix)
	if err != nil {
		bot.Log.WithError(err).Error("Saving server prefix", guild.ID)
	}
}

// NewBot provides new instance of bot
func NewBot(options Options) (*Bot, error) {
	if options.Log == nil {
		options.Log = logrus.New()
	}

	if options.Config == nil {
		options.Config = &config.Root{}
	}

	if options.Clock == nil {
		options.Clock = clockwork.NewRealClock()
	}

	bot := &Bot{
		Configuration: Configuration{
			Discord:     options.Discord,
			Config:      options.Config,
			Log:         options.Log,
			Router:      router.NewRouter(),
			Repository:  options.Repository,
			Broadcaster: options.Broadcaster,
			Clock:       options.Clock,
			Modules:     options.Modules,
		},
		m:       &sync.Mutex{},
		servers: make(map[string]*server),
	}

	bot.Configuration.bot = bot

	for _, m := range bot.Modules {
		err := m.Initialize(&bot.Configuration)
		if err != nil {
			return nil, err
		}
	}

	bot.Discord.Identify.Intents = Intents

	bot.Discord.AddHandler(bot.handlerReady)
	bot.Discord.AddHandler(bot.handlerGuildCreate)
	bot.Discord.AddHandler(bot.handlerMessageCreate)

	return bot, nil
}
