package server

import (
	"net/http"
	"time"

	"github.com/eientei/guildpanel/web"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const loginLimiterExpiry = 10 * time.Minute

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.FileFS("/app.js", "app.js", web.FS)
	s.echo.FileFS("/login.js", "login.js", web.FS)
	s.echo.FileFS("/style.css", "style.css", web.FS)

	// root doubles as websocket endpoint for clients connecting to bare host
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/ws", s.handleWebSocket, s.requireAPI)
	s.echo.GET("/dashboard", s.handleDashboard, s.requirePage)

	s.echo.POST("/login", s.handleLogin, s.loginLimiter())
	s.echo.POST("/logout", s.handleLogout)
	s.echo.GET("/oauth/status", s.handleOAuthStatus)
	s.echo.GET("/oauth/login", s.handleOAuthLogin)
	s.echo.GET("/oauth/callback", s.handleOAuthCallback)

	s.echo.GET("/guilds", s.handleGuilds, s.requireAPI)
	s.echo.GET("/channels/:guildId", s.handleChannels, s.requireAPI)
	s.echo.GET("/members/:guildId", s.handleMembers, s.requireAPI)
	s.echo.GET("/roles/:guildId", s.handleRoles, s.requireAPI)

	s.echo.POST("/send", s.handleSend, s.requireAPI)
	s.echo.POST("/send/:channelId", s.handleSend, s.requireAPI)
	s.echo.POST("/embed", s.handleEmbed, s.requireAPI)
	s.echo.POST("/embed/:channelId", s.handleEmbed, s.requireAPI)
	s.echo.POST("/kick", s.handleKick, s.requireAPI)
	s.echo.POST("/kick/:guildId/:userId", s.handleKick, s.requireAPI)
	s.echo.POST("/ban", s.handleBan, s.requireAPI)
	s.echo.POST("/ban/:guildId/:userId", s.handleBan, s.requireAPI)
	s.echo.POST("/roles/:guildId/:userId/:roleId", s.handleRoleAdd, s.requireAPI)
	s.echo.DELETE("/roles/:guildId/:userId/:roleId", s.handleRoleRemove, s.requireAPI)
	s.echo.POST("/execute/:guildId/:command", s.handleExecute, s.requireAPI)

	s.echo.GET("/logs", s.handleLogs, s.requireAPI)
}

func (s *Server) loginLimiter() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.config.HTTP.LoginRate),
		Burst:     s.config.HTTP.LoginBurst,
		ExpiresIn: loginLimiterExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			s.log.WithField("remote", identifier).Warn("Login rate limit exceeded")

			return c.JSON(http.StatusTooManyRequests, loginResponse{Error: "too many attempts"})
		},
	})
}
