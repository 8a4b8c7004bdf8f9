package server

import (
	"context"
	"net/http"
	"time"

	"github.com/eientei/guildpanel/web"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Gateway  bool   `json:"gateway"`
}

func (s *Server) handleRoot(c echo.Context) error {
	if websocket.IsWebSocketUpgrade(c.Request()) {
		return s.requireAPI(s.handleWebSocket)(c)
	}

	if s.authenticated(c) {
		return c.Redirect(http.StatusFound, "/dashboard")
	}

	return echo.StaticFileHandler("login.html", web.FS)(c)
}

func (s *Server) handleDashboard(c echo.Context) error {
	return echo.StaticFileHandler("dashboard.html", web.FS)(c)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	err := s.sockets.Serve(c.Response(), c.Request())
	if err != nil {
		s.log.WithError(err).Debug("Serving websocket")
	}

	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Gateway:  s.admin.Connected(),
	}

	if err := s.logs.Ping(ctx); err != nil {
		resp.Database = err.Error()
		resp.Status = "unhealthy"
	}

	if !resp.Gateway {
		resp.Status = "unhealthy"
	}

	if resp.Status != "ok" {
		return c.JSON(http.StatusServiceUnavailable, resp)
	}

	return c.JSON(http.StatusOK, resp)
}
