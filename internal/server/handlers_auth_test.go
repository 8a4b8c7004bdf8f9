package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/eientei/guildpanel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newOAuthServer(t *testing.T, userID string) *testServer {
	t.Helper()

	provider := http.NewServeMux()
	provider.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token","token_type":"Bearer"}`))
	})
	provider.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"` + userID + `","username":"someone"}`))
	})

	remote := httptest.NewServer(provider)
	t.Cleanup(remote.Close)

	ts := newTestServer(t, func(conf *config.Root) {
		conf.Private.OAuth = config.OAuth{
			ClientID:     "client",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:3000/oauth/callback",
		}
	})

	ts.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:   remote.URL + "/authorize",
		TokenURL:  remote.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	ts.userURL = remote.URL + "/users/@me"

	return ts
}

func (ts *testServer) startOAuth(t *testing.T) (string, []*http.Cookie) {
	t.Helper()

	rec := ts.do(http.MethodGet, "/oauth/login", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "client", location.Query().Get("client_id"))

	return state, rec.Result().Cookies()
}

func TestOAuthDisabled(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/oauth/status", "", nil)
	assert.JSONEq(t, `{"enabled":false}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/oauth/login", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthAdminLogin(t *testing.T) {
	ts := newOAuthServer(t, "admin-id")

	rec := ts.do(http.MethodGet, "/oauth/status", "", nil)
	assert.JSONEq(t, `{"enabled":true}`, rec.Body.String())

	state, cookies := ts.startOAuth(t)

	rec = ts.do(http.MethodGet, "/oauth/callback?code=the-code&state="+url.QueryEscape(state), "", cookies)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = ts.do(http.MethodGet, "/guilds", "", rec.Result().Cookies())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOAuthRejectsNonAdmin(t *testing.T) {
	ts := newOAuthServer(t, "stranger")

	state, cookies := ts.startOAuth(t)

	rec := ts.do(http.MethodGet, "/oauth/callback?code=the-code&state="+url.QueryEscape(state), "", cookies)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOAuthRejectsStateMismatch(t *testing.T) {
	ts := newOAuthServer(t, "admin-id")

	_, cookies := ts.startOAuth(t)

	rec := ts.do(http.MethodGet, "/oauth/callback?code=the-code&state=forged", "", cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
