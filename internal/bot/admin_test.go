package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/config"
	"github.com/eientei/guildpanel/internal/hub"
	"github.com/eientei/guildpanel/internal/model"
	"github.com/eientei/guildpanel/internal/router"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	r.Host = rt.target.Host

	return http.DefaultTransport.RoundTrip(r)
}

type recorder struct {
	events []hub.Event
	mu     sync.Mutex
}

func (r *recorder) Broadcast(event hub.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) types() (types []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		types = append(types, e.Type)
	}

	return
}

type fixture struct {
	bot  *Bot
	repo *model.Repository
	rec  *recorder
	mux  *http.ServeMux
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newFixture(t *testing.T, conf *config.Root) *fixture {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	session, err := discordgo.New("Bot test")
	require.NoError(t, err)

	session.Client = &http.Client{Transport: rewriteTransport{target: target}}
	session.State.User = &discordgo.User{ID: "bot", Username: "panelbot"}

	require.NoError(t, session.State.GuildAdd(&discordgo.Guild{
		ID:   "g1",
		Name: "Zeta",
		Channels: []*discordgo.Channel{
			{ID: "c2", GuildID: "g1", Name: "random", Type: discordgo.ChannelTypeGuildText, Position: 2},
			{ID: "c1", GuildID: "g1", Name: "general", Type: discordgo.ChannelTypeGuildText, Position: 1},
			{ID: "cat", GuildID: "g1", Name: "Text", Type: discordgo.ChannelTypeGuildCategory},
		},
		Roles: []*discordgo.Role{
			{ID: "r1", Name: "Mod", Position: 2},
			{ID: "r0", Name: "@everyone", Position: 0},
		},
		Members: []*discordgo.Member{
			{GuildID: "g1", User: &discordgo.User{ID: "u1", Username: "alice", Discriminator: "0"}},
		},
	}))
	require.NoError(t, session.State.GuildAdd(&discordgo.Guild{
		ID:   "g2",
		Name: "alpha",
		Channels: []*discordgo.Channel{
			{ID: "c3", GuildID: "g2", Name: "lobby", Type: discordgo.ChannelTypeGuildText},
		},
	}))

	repo, err := model.Open(model.DriverSQLite, filepath.Join(t.TempDir(), "bot.sqlite"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Migrate(context.Background()))

	log := logrus.New()
	log.SetOutput(io.Discard)

	rec := &recorder{}

	b, err := NewBot(Options{
		Discord:     session,
		Config:      conf,
		Log:         log,
		Repository:  repo,
		Broadcaster: rec,
	})
	require.NoError(t, err)

	return &fixture{
		bot:  b,
		repo: repo,
		rec:  rec,
		mux:  mux,
	}
}

func (f *fixture) actions(t *testing.T) (actions []string) {
	entries, err := f.repo.LogList(context.Background(), 10)
	require.NoError(t, err)

	for _, e := range entries {
		actions = append(actions, e.Action)
	}

	return
}

func TestGuildsSortedByName(t *testing.T) {
	f := newFixture(t, nil)

	guilds := f.bot.Guilds()
	require.Len(t, guilds, 2)
	assert.Equal(t, "alpha", guilds[0].Name)
	assert.Equal(t, "Zeta", guilds[1].Name)
}

func TestChannelsTextOnly(t *testing.T) {
	f := newFixture(t, nil)

	channels, err := f.bot.Channels(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	assert.Equal(t, "random", channels[1].Name)
}

func TestChannelsUnknownGuild(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.bot.Channels(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrGuildNotFound)
	assert.True(t, IsNotFound(err))
}

func TestRolesHighestFirst(t *testing.T) {
	f := newFixture(t, nil)

	roles, err := f.bot.Roles(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "Mod", roles[0].Name)
}

func TestMembersFetched(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("GET /api/v9/guilds/{guild}/members", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "g1", r.PathValue("guild"))
		writeJSON(w, http.StatusOK, `[
			{"user":{"id":"u1","username":"alice"},"roles":["r1"]},
			{"user":{"id":"u2","username":"bob","bot":true},"nick":"Bobby","roles":[]}
		]`)
	})

	members, err := f.bot.Members(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, []string{"r1"}, members[0].Roles)
	assert.Equal(t, "Bobby", members[1].Nick)
	assert.True(t, members[1].Bot)
}

func TestMembersPaginated(t *testing.T) {
	f := newFixture(t, nil)

	var afters []string

	f.mux.HandleFunc("GET /api/v9/guilds/{guild}/members", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))

		after := r.URL.Query().Get("after")
		afters = append(afters, after)

		start, size := 0, membersPage
		if after != "" {
			start, size = membersPage, 5
		}

		page := make([]string, 0, size)
		for i := start; i < start+size; i++ {
			page = append(page, fmt.Sprintf(`{"user":{"id":"u%d","username":"user%d"}}`, i, i))
		}

		writeJSON(w, http.StatusOK, "["+strings.Join(page, ",")+"]")
	})

	members, err := f.bot.Members(context.Background(), "g1")
	require.NoError(t, err)
	assert.Len(t, members, membersPage+5)
	assert.Equal(t, []string{"", "u999"}, afters)
	assert.Equal(t, "u1004", members[len(members)-1].ID)
}

func TestSendRecordsAndBroadcasts(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("POST /api/v9/channels/c1/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"m1","channel_id":"c1","content":"hello"}`)
	})

	require.NoError(t, f.bot.Send(context.Background(), "c1", "hello"))
	assert.Equal(t, []string{"Sent message to #general"}, f.actions(t))
	assert.Equal(t, []string{hub.TypeNewMessage, hub.TypeLog}, f.rec.types())
}

func TestSendEmptyMessage(t *testing.T) {
	f := newFixture(t, nil)

	assert.ErrorIs(t, f.bot.Send(context.Background(), "c1", "  "), ErrEmptyMessage)
	assert.Empty(t, f.actions(t))
}

func TestSendUnknownChannel(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("GET /api/v9/channels/{channel}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message":"Unknown Channel","code":10003}`)
	})

	err := f.bot.Send(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, ErrChannelNotFound)
	assert.Empty(t, f.rec.types())
}

func TestEmbedRequiresContent(t *testing.T) {
	f := newFixture(t, nil)

	err := f.bot.Embed(context.Background(), "c1", EmbedRequest{Footer: "only footer"})
	assert.ErrorIs(t, err, ErrEmptyEmbed)
}

func TestEmbedRecords(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("POST /api/v9/channels/c2/messages", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"title":"News"`)
		assert.Contains(t, string(body), `"color":16711680`)
		writeJSON(w, http.StatusOK, `{"id":"m2","channel_id":"c2"}`)
	})

	err := f.bot.Embed(context.Background(), "c2", EmbedRequest{Title: "News", Color: 0xff0000})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sent embed to #random"}, f.actions(t))
}

func TestKickRecordsTag(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("DELETE /api/v9/guilds/g1/members/u1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, f.bot.Kick(context.Background(), "g1", "u1", ""))
	assert.Equal(t, []string{"Kicked alice"}, f.actions(t))
}

func TestKickForbidden(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("DELETE /api/v9/guilds/g1/members/u1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"message":"Missing Permissions","code":50013}`)
	})

	err := f.bot.Kick(context.Background(), "g1", "u1", "")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, restStatus(err))
	assert.False(t, IsNotFound(err))
	assert.Empty(t, f.actions(t))
}

func TestBanFetchesUnknownMember(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("GET /api/v9/guilds/g1/members/u2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"user":{"id":"u2","username":"bob","discriminator":"1234"},"roles":[]}`)
	})
	f.mux.HandleFunc("PUT /api/v9/guilds/g1/bans/u2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, f.bot.Ban(context.Background(), "g1", "u2", "spam", 30))
	assert.Equal(t, []string{"Banned bob#1234"}, f.actions(t))
}

func TestBanMissingMember(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("GET /api/v9/guilds/g1/members/u9", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message":"Unknown Member","code":10007}`)
	})

	err := f.bot.Ban(context.Background(), "g1", "u9", "", 0)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRoleAddAndRemove(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("PUT /api/v9/guilds/g1/members/u1/roles/r1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	f.mux.HandleFunc("DELETE /api/v9/guilds/g1/members/u1/roles/r1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, f.bot.RoleAdd(context.Background(), "g1", "u1", "r1"))
	require.NoError(t, f.bot.RoleRemove(context.Background(), "g1", "u1", "r1"))
	assert.Equal(t, []string{"Removed role @Mod from alice", "Added role @Mod to alice"}, f.actions(t))
}

func TestRoleAddUnknownRole(t *testing.T) {
	f := newFixture(t, nil)

	f.mux.HandleFunc("GET /api/v9/guilds/g1/roles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	})

	err := f.bot.RoleAdd(context.Background(), "g1", "u1", "r9")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestExecuteCommand(t *testing.T) {
	f := newFixture(t, nil)

	f.bot.Router.On("general", "ping", "replies pong", func(ctx *router.Context) error {
		assert.Equal(t, router.SourceDashboard, ctx.Source)
		assert.Equal(t, "x", ctx.Args.Get(1))

		return ctx.Reply("pong")
	})

	replies, err := f.bot.Execute(context.Background(), "g1", "c1", "/ping", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pong"}, replies)
	assert.Equal(t, []string{"Executed command /ping"}, f.actions(t))
}

func TestExecuteUnknownCommand(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.bot.Execute(context.Background(), "g1", "c1", "nope", nil)
	assert.ErrorIs(t, err, router.ErrNotMatched)
	assert.Empty(t, f.actions(t))
}

func TestExecuteForeignChannel(t *testing.T) {
	f := newFixture(t, nil)

	called := false
	f.bot.Router.On("general", "say", "posts text", func(ctx *router.Context) error {
		called = true
		return nil
	})

	_, err := f.bot.Execute(context.Background(), "g1", "c3", "say", []string{"hi"})
	assert.ErrorIs(t, err, ErrChannelNotFound)
	assert.False(t, called)
	assert.Empty(t, f.actions(t))

	_, err = f.bot.Execute(context.Background(), "g1", "c1", "say", []string{"hi"})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestPrefixResolution(t *testing.T) {
	f := newFixture(t, &config.Root{
		Servers: []config.Server{{GuildID: "g1", Prefix: "?"}},
		Private: config.Private{Prefix: "~"},
	})

	f.bot.handlerGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}})
	f.bot.handlerGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g2"}})

	assert.Equal(t, "?", f.bot.Prefix("g1"))
	assert.Equal(t, "~", f.bot.Prefix("g2"))

	require.NoError(t, f.bot.SetPrefix("g1", "$"))

	stored, err := f.repo.ConfigGet("g1", "global", "prefix")
	require.NoError(t, err)
	assert.Equal(t, "$", stored)

	f.bot.handlerGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "g1"}})
	assert.Equal(t, "$", f.bot.Prefix("g1"))
}
