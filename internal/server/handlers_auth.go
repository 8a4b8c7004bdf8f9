package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
)

const oauthTimeout = 10 * time.Second

type loginRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (s *Server) authenticated(c echo.Context) bool {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return false
	}

	ok, _ := session.Values[sessionKeyAuth].(bool)

	return ok
}

func (s *Server) requireAPI(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.authenticated(c) {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		}

		return next(c)
	}
}

func (s *Server) requirePage(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.authenticated(c) {
			return c.Redirect(http.StatusFound, "/")
		}

		return next(c)
	}
}

func (s *Server) startSession(c echo.Context, user string) error {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		s.log.WithError(err).Debug("Replacing invalid session")

		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			return err
		}
	}

	session.Values[sessionKeyAuth] = true
	session.Values[sessionKeyUser] = user
	delete(session.Values, sessionKeyOAuthState)

	return session.Save(c.Request(), c.Response())
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, loginResponse{Error: "invalid request"})
	}

	expected := s.config.Private.AccessCode

	if expected == "" || subtle.ConstantTimeCompare([]byte(req.Code), []byte(expected)) != 1 {
		s.log.WithField("remote", c.RealIP()).Warn("Rejected dashboard login")

		return c.JSON(http.StatusUnauthorized, loginResponse{Error: "invalid access code"})
	}

	if err := s.startSession(c, "access-code"); err != nil {
		s.log.WithError(err).Error("Saving session")

		return c.JSON(http.StatusInternalServerError, loginResponse{Error: "session error"})
	}

	s.log.WithField("remote", c.RealIP()).Info("Dashboard login")

	return c.JSON(http.StatusOK, loginResponse{Success: true})
}

func (s *Server) handleLogout(c echo.Context) error {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			s.log.WithError(err).Error("Creating session during logout")
		}
	}

	session.Options.MaxAge = -1

	if err := session.Save(c.Request(), c.Response()); err != nil {
		s.log.WithError(err).Error("Saving logout session")

		return c.JSON(http.StatusInternalServerError, loginResponse{Error: "session error"})
	}

	return c.JSON(http.StatusOK, loginResponse{Success: true})
}

func (s *Server) handleOAuthStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"enabled": s.oauth != nil})
}

func (s *Server) handleOAuthLogin(c echo.Context) error {
	if s.oauth == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "oauth login is not configured"})
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		s.log.WithError(err).Debug("Replacing invalid session")

		session, _ = s.sessionStore.New(c.Request(), sessionName)
	}

	state := uuid.NewString()
	session.Values[sessionKeyOAuthState] = state

	if err = session.Save(c.Request(), c.Response()); err != nil {
		s.log.WithError(err).Error("Saving oauth state")

		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "session error"})
	}

	return c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state))
}

func (s *Server) handleOAuthCallback(c echo.Context) error {
	if s.oauth == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "oauth login is not configured"})
	}

	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "missing code"})
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid session"})
	}

	expected, _ := session.Values[sessionKeyOAuthState].(string)
	if expected == "" || c.QueryParam("state") != expected {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid oauth state"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), oauthTimeout)
	defer cancel()

	user, err := s.fetchUser(ctx, code)
	if err != nil {
		s.log.WithError(err).Error("Authenticating with discord")

		return c.JSON(http.StatusBadGateway, errorResponse{Error: "failed to authenticate with discord"})
	}

	if !s.config.IsAdmin(user.ID) {
		s.log.WithField("user", user.ID).Warn("Rejected oauth login of non-admin")

		return c.JSON(http.StatusForbidden, errorResponse{Error: "not an administrator"})
	}

	if err = s.startSession(c, user.ID); err != nil {
		s.log.WithError(err).Error("Saving session")

		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "session error"})
	}

	s.log.WithField("user", user.ID).WithField("username", user.Username).Info("Dashboard oauth login")

	return c.Redirect(http.StatusFound, "/dashboard")
}

func (s *Server) fetchUser(ctx context.Context, code string) (*discordUser, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching user: unexpected status %d", resp.StatusCode)
	}

	user := &discordUser{}

	if err = json.NewDecoder(resp.Body).Decode(user); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}

	return user, nil
}
