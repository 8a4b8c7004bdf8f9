package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/bot"
	"github.com/eientei/guildpanel/internal/model"
	"github.com/eientei/guildpanel/internal/router"
	"github.com/labstack/echo/v4"
)

var (
	// ErrMissingChannel is returned when channel id is not supplied
	ErrMissingChannel = errors.New("channelId is required")
	// ErrMissingMember is returned when guild or user id is not supplied
	ErrMissingMember = errors.New("guildId and userId are required")
	// ErrInvalidLimit is returned for malformed log limit
	ErrInvalidLimit = errors.New("invalid limit")
)

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Replies []string `json:"replies,omitempty"`
	Success bool     `json:"success"`
}

type sendRequest struct {
	ChannelID string `json:"channelId"`
	Message   string `json:"message"`
}

type embedRequest struct {
	ChannelID string `json:"channelId"`
	bot.EmbedRequest
}

type memberRequest struct {
	GuildID    string `json:"guildId"`
	UserID     string `json:"userId"`
	Reason     string `json:"reason"`
	DeleteDays int    `json:"deleteDays"`
}

type executeRequest struct {
	ChannelID string   `json:"channelId"`
	Args      []string `json:"args"`
}

func isBadRequest(err error) bool {
	for _, e := range []error{
		ErrMissingChannel,
		ErrMissingMember,
		ErrInvalidLimit,
		bot.ErrEmptyMessage,
		bot.ErrEmptyEmbed,
		bot.ErrInvalidColor,
		router.ErrInvalidInput,
	} {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

func errorStatus(err error) (int, string) {
	var rerr *discordgo.RESTError

	if errors.As(err, &rerr) && rerr.Response != nil {
		msg := err.Error()
		if rerr.Message != nil && rerr.Message.Message != "" {
			msg = rerr.Message.Message
		}

		switch rerr.Response.StatusCode {
		case http.StatusNotFound, http.StatusForbidden:
			return rerr.Response.StatusCode, msg
		}

		return http.StatusInternalServerError, msg
	}

	var herr *echo.HTTPError

	if errors.As(err, &herr) {
		return herr.Code, fmt.Sprint(herr.Message)
	}

	switch {
	case bot.IsNotFound(err), errors.Is(err, router.ErrNotMatched):
		return http.StatusNotFound, err.Error()
	case isBadRequest(err):
		return http.StatusBadRequest, err.Error()
	}

	return http.StatusInternalServerError, err.Error()
}

func (s *Server) fail(c echo.Context, err error) error {
	status, msg := errorStatus(err)

	entry := s.log.WithError(err).WithField("path", c.Path()).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("Handling dashboard request")
	} else {
		entry.Debug("Handling dashboard request")
	}

	return c.JSON(status, errorResponse{Error: msg})
}

func (s *Server) success(c echo.Context) error {
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *Server) list(c echo.Context, v interface{}, err error) error {
	if err != nil && bot.IsNotFound(err) {
		return c.JSON(http.StatusNotFound, []struct{}{})
	}

	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, v)
}

func (s *Server) handleGuilds(c echo.Context) error {
	return c.JSON(http.StatusOK, s.admin.Guilds())
}

func (s *Server) handleChannels(c echo.Context) error {
	channels, err := s.admin.Channels(c.Request().Context(), c.Param("guildId"))

	return s.list(c, channels, err)
}

func (s *Server) handleMembers(c echo.Context) error {
	members, err := s.admin.Members(c.Request().Context(), c.Param("guildId"))

	return s.list(c, members, err)
}

func (s *Server) handleRoles(c echo.Context) error {
	roles, err := s.admin.Roles(c.Request().Context(), c.Param("guildId"))

	return s.list(c, roles, err)
}

func (s *Server) handleSend(c echo.Context) error {
	var req sendRequest

	if err := c.Bind(&req); err != nil {
		return s.fail(c, err)
	}

	if p := c.Param("channelId"); p != "" {
		req.ChannelID = p
	}

	if req.ChannelID == "" {
		return s.fail(c, ErrMissingChannel)
	}

	if err := s.admin.Send(c.Request().Context(), req.ChannelID, req.Message); err != nil {
		return s.fail(c, err)
	}

	return s.success(c)
}

func (s *Server) handleEmbed(c echo.Context) error {
	var req embedRequest

	if err := c.Bind(&req); err != nil {
		return s.fail(c, err)
	}

	if p := c.Param("channelId"); p != "" {
		req.ChannelID = p
	}

	if req.ChannelID == "" {
		return s.fail(c, ErrMissingChannel)
	}

	if err := s.admin.Embed(c.Request().Context(), req.ChannelID, req.EmbedRequest); err != nil {
		return s.fail(c, err)
	}

	return s.success(c)
}

func (s *Server) bindMember(c echo.Context) (*memberRequest, error) {
	req := &memberRequest{}

	if err := c.Bind(req); err != nil {
		return nil, err
	}

	if p := c.Param("guildId"); p != "" {
		req.GuildID = p
	}

	if p := c.Param("userId"); p != "" {
		req.UserID = p
	}

	if req.GuildID == "" || req.UserID == "" {
		return nil, ErrMissingMember
	}

	return req, nil
}

func (s *Server) handleKick(c echo.Context) error {
	req, err := s.bindMember(c)
	if err != nil {
		return s.fail(c, err)
	}

	if err = s.admin.Kick(c.Request().Context(), req.GuildID, req.UserID, req.Reason); err != nil {
		return s.fail(c, err)
	}

	return s.success(c)
}

func (s *Server) handleBan(c echo.Context) error {
	req, err := s.bindMember(c)
	if err != nil {
		return s.fail(c, err)
	}

	err = s.admin.Ban(c.Request().Context(), req.GuildID, req.UserID, req.Reason, req.DeleteDays)
	if err != nil {
		return s.fail(c, err)
	}

	return s.success(c)
}

func (s *Server) handleRoleAdd(c echo.Context) error {
	err := s.admin.RoleAdd(c.Request().Context(), c.Param("guildId"), c.Param("userId"), c.Param("roleId"))
	if err != nil {
		return s.fail(c, err)
	}

	return s.success(c)
}

func (s *Server) handleRoleRemove(c echo.Context) error {
	err := s.admin.RoleRemove(c.Request().Context(), c.Param("guildId"), c.Param("userId"), c.Param("roleId"))
	if err != nil {
		return s.fail(c, err)
	}

	return s.success(c)
}

func (s *Server) handleExecute(c echo.Context) error {
	var req executeRequest

	if err := c.Bind(&req); err != nil {
		return s.fail(c, err)
	}

	replies, err := s.admin.Execute(c.Request().Context(), c.Param("guildId"), req.ChannelID, c.Param("command"), req.Args)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, successResponse{Success: true, Replies: replies})
}

func (s *Server) handleLogs(c echo.Context) error {
	limit := s.config.HTTP.LogLimit
	if limit <= 0 {
		limit = model.DefaultLogLimit
	}

	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return s.fail(c, ErrInvalidLimit)
		}

		limit = v
	}

	entries, err := s.logs.LogList(c.Request().Context(), limit)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, entries)
}
