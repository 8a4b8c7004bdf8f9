// Package logdb provides logging messages in database
package logdb

import (
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/bot"
	"github.com/eientei/guildpanel/internal/model"
	"github.com/jmoiron/sqlx"
)

// Kinds of archived message events
const (
	KindCreate = "create"
	KindEdit   = "edit"
	KindDelete = "delete"
)

const schema = `
create table if not exists message (
  mid text not null,
  guild_id text not null,
  channel_id text not null,
  author_id text,
  content text,
  kind text not null,
  time text not null
)
`

// New provides module instance
func New() bot.Module {
	return &module{
		dbmap: make(map[string]*dbcontext),
		lock:  &sync.RWMutex{},
	}
}

type dbcontext struct {
	connect *sqlx.DB
	save    *sqlx.Stmt
}

type module struct {
	config *bot.Configuration
	dbmap  map[string]*dbcontext
	lock   *sync.RWMutex
}

// driver guesses sql driver by DSN, defaulting to embedded sqlite file
func driver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return model.DriverPostgres
	}

	return model.DriverSQLite
}

func open(dsn string) (*dbcontext, error) {
	db, err := sqlx.Open(driver(dsn), dsn)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(schema)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	saveStmt, err := db.Preparex(db.Rebind(`
insert into message(
  mid,
  guild_id,
  channel_id,
  author_id,
  content,
  kind,
  time
) values (?, ?, ?, ?, ?, ?, ?)
`))
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &dbcontext{
		connect: db,
		save:    saveStmt,
	}, nil
}

func (mod *module) Initialize(config *bot.Configuration) error {
	mod.config = config

	config.Discord.AddHandler(mod.handlerLogCreate)
	config.Discord.AddHandler(mod.handlerLogEdit)
	config.Discord.AddHandler(mod.handlerLogDelete)

	return nil
}

func (mod *module) Configure(config *bot.Configuration, guild *discordgo.Guild) {
	srv := config.Config.ServerByID(guild.ID)
	if srv == nil || srv.LogDB == "" {
		return
	}

	mod.lock.Lock()
	defer mod.lock.Unlock()

	if _, ok := mod.dbmap[guild.ID]; ok {
		return
	}

	db, err := open(srv.LogDB)
	if err != nil {
		config.Log.WithError(err).Error("Opening message archive", guild.ID)
		return
	}

	mod.dbmap[guild.ID] = db
}

func (mod *module) Shutdown(config *bot.Configuration) {
	mod.lock.Lock()
	defer mod.lock.Unlock()

	for k, d := range mod.dbmap {
		_ = d.save.Close()
		_ = d.connect.Close()

		delete(mod.dbmap, k)
	}
}

func (mod *module) save(kind string, msg *discordgo.Message) {
	mod.lock.RLock()
	defer mod.lock.RUnlock()

	db, ok := mod.dbmap[msg.GuildID]
	if !ok {
		return
	}

	var author interface{}
	if msg.Author != nil {
		author = msg.Author.ID
	}

	var content interface{}
	if kind != KindDelete {
		content = msg.Content
	}

	_, err := db.save.Exec(
		msg.ID,
		msg.GuildID,
		msg.ChannelID,
		author,
		content,
		kind,
		mod.config.Clock.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		mod.config.Log.WithError(err).Error("Saving message", msg.ID)
	}
}

func (mod *module) handlerLogCreate(_ *discordgo.Session, messageCreate *discordgo.MessageCreate) {
	mod.save(KindCreate, messageCreate.Message)
}

func (mod *module) handlerLogEdit(_ *discordgo.Session, messageUpdate *discordgo.MessageUpdate) {
	if messageUpdate.Message == nil {
		return
	}

	mod.save(KindEdit, messageUpdate.Message)
}

func (mod *module) handlerLogDelete(_ *discordgo.Session, messageDelete *discordgo.MessageDelete) {
	if messageDelete.Message == nil {
		return
	}

	mod.save(KindDelete, messageDelete.Message)
}
