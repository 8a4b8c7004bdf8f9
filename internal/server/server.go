// Package server provides dashboard HTTP API, pages and realtime websocket endpoint
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/eientei/guildpanel/internal/bot"
	"github.com/eientei/guildpanel/internal/config"
	"github.com/eientei/guildpanel/internal/metrics"
	"github.com/eientei/guildpanel/internal/model"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	sessionName          = "guildpanel-session"
	sessionKeyAuth       = "authenticated"
	sessionKeyUser       = "user"
	sessionKeyOAuthState = "oauth_state"
)

var (
	discordEndpoint = oauth2.Endpoint{
		AuthURL:   "https://discord.com/oauth2/authorize",
		TokenURL:  "https://discord.com/api/oauth2/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	discordUserURL = "https://discord.com/api/users/@me"
)

// Admin performs chat platform operations on behalf of dashboard
type Admin interface {
	Guilds() []bot.Guild
	Channels(ctx context.Context, guildID string) ([]bot.Channel, error)
	Members(ctx context.Context, guildID string) ([]bot.Member, error)
	Roles(ctx context.Context, guildID string) ([]bot.Role, error)
	Send(ctx context.Context, channelID, content string) error
	Embed(ctx context.Context, channelID string, req bot.EmbedRequest) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	RoleAdd(ctx context.Context, guildID, userID, roleID string) error
	RoleRemove(ctx context.Context, guildID, userID, roleID string) error
	Execute(ctx context.Context, guildID, channelID, command string, args []string) ([]string, error)
	Connected() bool
}

// LogStore provides read access to action log
type LogStore interface {
	LogList(ctx context.Context, limit int) ([]model.Entry, error)
	Ping(ctx context.Context) error
}

// Sockets accepts realtime websocket subscribers
type Sockets interface {
	Serve(w http.ResponseWriter, r *http.Request) error
}

// Options provide dependencies for server
type Options struct {
	Config     *config.Root
	Admin      Admin
	Logs       LogStore
	Sockets    Sockets
	Log        *logrus.Logger
	HTTPClient *http.Client
}

// Server is a dashboard http server
type Server struct {
	echo         *echo.Echo
	config       *config.Root
	admin        Admin
	logs         LogStore
	sockets      Sockets
	log          *logrus.Logger
	httpClient   *http.Client
	sessionStore *sessions.CookieStore
	oauth        *oauth2.Config
	userURL      string
}

// New returns configured server instance
func New(options Options) (*Server, error) {
	if options.Log == nil {
		options.Log = logrus.New()
	}

	if options.HTTPClient == nil {
		options.HTTPClient = http.DefaultClient
	}

	secret := []byte(options.Config.Private.SessionSecret)
	if len(secret) == 0 {
		options.Log.Warn("No session secret configured, sessions will not survive restart")

		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}

	sessionStore := sessions.NewCookieStore(secret)
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(options.Config.HTTP.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   options.Config.HTTP.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       options.Config,
		admin:        options.Admin,
		logs:         options.Logs,
		sockets:      options.Sockets,
		log:          options.Log,
		httpClient:   options.HTTPClient,
		sessionStore: sessionStore,
		userURL:      discordUserURL,
	}

	if oc := options.Config.Private.OAuth; oc.Enabled() {
		srv.oauth = &oauth2.Config{
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			Endpoint:     discordEndpoint,
			RedirectURL:  oc.RedirectURL,
			Scopes:       []string{"identify"},
		}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			metrics.HTTPRequestsTotal.WithLabelValues(v.Method, strconv.Itoa(v.Status)).Inc()

			entry := srv.log.WithField("method", v.Method).
				WithField("uri", v.URI).
				WithField("status", v.Status).
				WithField("latency", v.Latency).
				WithField("remote", v.RemoteIP)

			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}

			entry.Debug("Request")

			return nil
		},
	}))

	if len(options.Config.HTTP.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     options.Config.HTTP.AllowedOrigins,
			AllowCredentials: true,
		}))
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler returns http handler of the server
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on configured address until shutdown
func (s *Server) Start() error {
	s.log.WithField("listen", s.config.HTTP.Listen).Info("Starting dashboard server")

	err := s.echo.Start(s.config.HTTP.Listen)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// OriginChecker returns websocket origin check allowing same host and listed origins
func OriginChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil {
			return false
		}

		if strings.EqualFold(u.Host, r.Host) {
			return true
		}

		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
				return true
			}
		}

		return false
	}
}
