// Package auth implements the session token subsystem of the gateway:
// encrypted authenticated cookies carrying a user token, the ordered chain
// of credential extractors, and the per-request authorization evaluator.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/atrium-gateway/atrium/config"
	"github.com/atrium-gateway/atrium/secrets"
)

const (
	// AuthCookieName is the session cookie issued at login.
	AuthCookieName = "ATRIUM_AUTH"

	// ShareTokenName names share-scoped tokens, valid for a single
	// hostname and path.
	ShareTokenName = "SHARE_TOKEN"

	// RedirectCookieName is the short-lived cookie carrying the URL to
	// return to after login.
	RedirectCookieName = "ATRIUM_REDIRECT"

	// XSRFHeaderName is the request header that must echo the session's
	// XSRF token on the management API.
	XSRFHeaderName = "XSRF-TOKEN"

	// AdminsRole is the role granting access to the admin API.
	AdminsRole = "ADMINS"

	// Redacted replaces password material on user responses.
	Redacted = "REDACTED"

	xsrfTokenLength = 16
)

var (
	ErrNoToken      = errors.New("no user found or xsrf token not provided")
	ErrTokenExpired = errors.New("user token is expired")
	ErrXSRFMismatch = errors.New("xsrf token doesn't match")
	ErrDecrypt      = errors.New("could not decrypt user token")
	ErrNotAdmin     = errors.New("user is not in admin group")
	ErrUserUnknown  = errors.New("user does not exist")
	ErrBadPassword  = errors.New("password does not match")
)

// Share scopes a token to a single hostname and path pair.
type Share struct {
	Hostname     string `json:"hostname"`
	Path         string `json:"path"`
	ShareWith    string `json:"share_with,omitempty"`
	ShareForDays int    `json:"share_for_days,omitempty"`
}

// UserToken is the session payload stored encrypted in the auth cookie.
type UserToken struct {
	Login     string           `json:"login"`
	Roles     []string         `json:"roles"`
	XSRFToken string           `json:"xsrf_token"`
	Share     *Share           `json:"share,omitempty"`
	Expires   int64            `json:"expires"`
	Info      *config.UserInfo `json:"info,omitempty"`
}

// Expired reports whether the token is past its expiry.
func (t *UserToken) Expired(now time.Time) bool {
	return now.Unix() > t.Expires
}

// HasRole reports whether the token carries any of the given roles.
func (t *UserToken) HasRole(roles []string) bool {
	for _, have := range t.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the token belongs to the admin group.
func (t *UserToken) IsAdmin() bool {
	return t.HasRole([]string{AdminsRole})
}

// NewUserToken creates a session token for the user with a fresh XSRF
// secret, expiring after the given duration.
func NewUserToken(u *config.User, d time.Duration) *UserToken {
	return &UserToken{
		Login:     u.Login,
		Roles:     u.Roles,
		XSRFToken: secrets.RandomString(xsrfTokenLength),
		Expires:   time.Now().Add(d).Unix(),
		Info:      u.Info,
	}
}

// Tokens encodes and decodes user tokens with the process-wide cookie key.
// The token name (the cookie name it is issued under) is authenticated
// together with the payload.
type Tokens struct {
	encrypter *secrets.Encrypter
}

// NewTokens returns a token codec over the given encrypter.
func NewTokens(encrypter *secrets.Encrypter) *Tokens {
	return &Tokens{encrypter: encrypter}
}

// Encode serializes and seals a token under the given name. The result is
// opaque ciphertext, safe to use as a cookie or query parameter value.
func (t *Tokens) Encode(name string, token *UserToken) (string, error) {
	plain, err := json.Marshal(token)
	if err != nil {
		return "", err
	}
	return t.encrypter.EncryptToString(plain, []byte(name))
}

// Decode opens a value issued under the given name and rejects expired
// tokens.
func (t *Tokens) Decode(name, value string) (*UserToken, error) {
	plain, err := t.encrypter.DecryptString(value, []byte(name))
	if err != nil {
		return nil, ErrDecrypt
	}
	token := &UserToken{}
	if err := json.Unmarshal(plain, token); err != nil {
		return nil, ErrDecrypt
	}
	if token.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}
	return token, nil
}

// Cookie builds the session cookie for an encoded token value.
func Cookie(value string, c *config.Config) *http.Cookie {
	return &http.Cookie{
		Name:     AuthCookieName,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   c.TLSMode.IsSecure(),
		MaxAge:   int(c.SessionDuration().Seconds()),
		HttpOnly: true,
	}
}

// RedirectCookie builds the short-lived cookie holding the URL to return to
// after the login flow. It is readable by the login page script, so not
// HttpOnly.
func RedirectCookie(target string, c *config.Config) *http.Cookie {
	return &http.Cookie{
		Name:     RedirectCookieName,
		Value:    target,
		Domain:   c.Domain,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	}
}
