package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-gateway/atrium/config"
	"github.com/atrium-gateway/atrium/secrets"
)

func testTokens(t *testing.T) *Tokens {
	t.Helper()
	enc, err := secrets.New(secrets.StaticSource([]byte(secrets.RandomString(64))))
	require.NoError(t, err)
	return NewTokens(enc)
}

func TestNewUserToken(t *testing.T) {
	user := &config.User{
		Login: "alice",
		Roles: []string{"USERS"},
		Info:  &config.UserInfo{Email: "alice@atrium.io"},
	}
	before := time.Now().Add(24 * time.Hour).Unix()
	token := NewUserToken(user, 24*time.Hour)
	after := time.Now().Add(24 * time.Hour).Unix()

	assert.Equal(t, "alice", token.Login)
	assert.Equal(t, []string{"USERS"}, token.Roles)
	assert.Len(t, token.XSRFToken, 16)
	assert.GreaterOrEqual(t, token.Expires, before)
	assert.LessOrEqual(t, token.Expires, after)
	assert.Equal(t, "alice@atrium.io", token.Info.Email)
	assert.Nil(t, token.Share)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tokens := testTokens(t)
	token := NewUserToken(&config.User{Login: "alice", Roles: []string{"USERS"}}, time.Hour)
	token.Share = &Share{Hostname: "files.atrium.io", Path: "/public/x.txt"}

	value, err := tokens.Encode(AuthCookieName, token)
	require.NoError(t, err)

	decoded, err := tokens.Decode(AuthCookieName, value)
	require.NoError(t, err)
	assert.Equal(t, token, decoded)
}

func TestDecodeRejectsWrongName(t *testing.T) {
	tokens := testTokens(t)
	value, err := tokens.Encode(AuthCookieName, NewUserToken(&config.User{Login: "a"}, time.Hour))
	require.NoError(t, err)

	_, err = tokens.Decode(ShareTokenName, value)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecodeRejectsExpired(t *testing.T) {
	tokens := testTokens(t)
	token := NewUserToken(&config.User{Login: "a"}, -time.Second)
	value, err := tokens.Encode(AuthCookieName, token)
	require.NoError(t, err)

	_, err = tokens.Decode(AuthCookieName, value)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tokens := testTokens(t)
	_, err := tokens.Decode(AuthCookieName, "deadbeef")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestExpired(t *testing.T) {
	now := time.Now()
	token := &UserToken{Expires: now.Unix() + 1}
	assert.False(t, token.Expired(now))
	token.Expires = now.Unix() - 1
	assert.True(t, token.Expired(now))
}

func TestHasRole(t *testing.T) {
	token := &UserToken{Roles: []string{"role1", "role2"}}
	assert.True(t, token.HasRole([]string{"role2", "role3"}))
	assert.False(t, token.HasRole([]string{"role3"}))
	assert.False(t, token.HasRole(nil), "empty allowed roles never match")
	assert.False(t, (&UserToken{}).HasRole([]string{"role1"}))
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, (&UserToken{Roles: []string{AdminsRole}}).IsAdmin())
	assert.False(t, (&UserToken{Roles: []string{"USERS"}}).IsAdmin())
}

func TestCookieAttributes(t *testing.T) {
	c := &config.Config{
		Hostname:            "atrium.io",
		Domain:              "atrium.io",
		TLSMode:             config.TLSModeNo,
		SessionDurationDays: 2,
	}
	cookie := Cookie("value", c)
	assert.Equal(t, AuthCookieName, cookie.Name)
	assert.Equal(t, "atrium.io", cookie.Domain)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.False(t, cookie.Secure)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 2*86400, cookie.MaxAge)

	c.TLSMode = config.TLSModeAuto
	assert.True(t, Cookie("value", c).Secure)
}

func TestRedirectCookieAttributes(t *testing.T) {
	c := &config.Config{Hostname: "atrium.io", Domain: "atrium.io"}
	cookie := RedirectCookie("http://files.atrium.io:8080", c)
	assert.Equal(t, RedirectCookieName, cookie.Name)
	assert.Equal(t, "http://files.atrium.io:8080", cookie.Value)
	assert.Equal(t, 60, cookie.MaxAge)
	assert.False(t, cookie.HttpOnly)
}
