package auth

import (
	"errors"
	"net/http"

	"github.com/atrium-gateway/atrium/config"
)

// extractor inspects one credential presentation mode. present is false
// when the mode is not attempted at all, letting the chain move on; an
// error means the credential was presented and rejected.
type extractor func(r *http.Request) (token *UserToken, present bool, err error)

// ConfigGetter returns the current configuration snapshot. Admin mutations
// swap the snapshot, so it must be fetched per request.
type ConfigGetter func() *config.Config

// Authenticator runs the ordered chain of credential extractors against
// incoming requests. The configuration getter is needed by the basic-auth
// fallback to local users.
type Authenticator struct {
	tokens *Tokens
	conf   ConfigGetter
}

// NewAuthenticator returns an Authenticator over the token codec and a
// configuration snapshot getter.
func NewAuthenticator(tokens *Tokens, conf ConfigGetter) *Authenticator {
	return &Authenticator{tokens: tokens, conf: conf}
}

// Extract runs the strict chain used by the management API: encrypted
// cookie with XSRF header, then query token, then basic auth.
func (a *Authenticator) Extract(r *http.Request) (*UserToken, error) {
	return runChain(r, a.cookieWithXSRF, a.queryToken, a.basicAuth)
}

// ExtractSkipXSRF runs the relaxed chain used by the proxy and static
// pipelines, which must not require the XSRF header on backend-bound
// browser requests.
func (a *Authenticator) ExtractSkipXSRF(r *http.Request) (*UserToken, error) {
	return runChain(r, a.cookieOnly, a.queryToken, a.basicAuth)
}

// ExtractAdmin runs the strict chain and additionally requires the ADMINS
// role.
func (a *Authenticator) ExtractAdmin(r *http.Request) (*UserToken, error) {
	token, err := a.Extract(r)
	if err != nil {
		return nil, err
	}
	if !token.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return token, nil
}

func runChain(r *http.Request, extractors ...extractor) (*UserToken, error) {
	for _, ex := range extractors {
		token, present, err := ex(r)
		if !present {
			continue
		}
		if err != nil {
			return nil, err
		}
		return token, nil
	}
	return nil, ErrNoToken
}

// cookieWithXSRF reads the session cookie and requires the XSRF header to
// match the token. A request carrying the cookie but no XSRF header falls
// through to the next extractor.
func (a *Authenticator) cookieWithXSRF(r *http.Request) (*UserToken, bool, error) {
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil {
		return nil, false, nil
	}
	xsrf := r.Header.Get(XSRFHeaderName)
	if xsrf == "" {
		return nil, false, nil
	}
	token, err := a.tokens.Decode(AuthCookieName, cookie.Value)
	if err != nil {
		return nil, true, err
	}
	if token.XSRFToken != xsrf {
		return nil, true, ErrXSRFMismatch
	}
	return token, true, nil
}

// cookieOnly reads the session cookie without XSRF enforcement.
func (a *Authenticator) cookieOnly(r *http.Request) (*UserToken, bool, error) {
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil {
		return nil, false, nil
	}
	token, err := a.tokens.Decode(AuthCookieName, cookie.Value)
	if err != nil {
		return nil, true, err
	}
	return token, true, nil
}

// queryToken reads an encrypted token from the token query parameter,
// first as a session token, then as a share token.
func (a *Authenticator) queryToken(r *http.Request) (*UserToken, bool, error) {
	value := r.URL.Query().Get("token")
	if value == "" {
		return nil, false, nil
	}
	if token, err := a.tokens.Decode(AuthCookieName, value); err == nil {
		return token, true, nil
	}
	token, err := a.tokens.Decode(ShareTokenName, value)
	if err != nil {
		return nil, true, err
	}
	return token, true, nil
}

// basicAuth treats the basic-auth password as an encrypted token value and,
// failing that, verifies the credentials against the local user table and
// issues a fresh session.
func (a *Authenticator) basicAuth(r *http.Request) (*UserToken, bool, error) {
	login, password, ok := r.BasicAuth()
	if !ok {
		return nil, false, nil
	}
	if token, err := a.tokens.Decode(AuthCookieName, password); err == nil {
		return token, true, nil
	}
	c := a.conf()
	user := c.FindUser(login)
	if user == nil {
		return nil, true, ErrUserUnknown
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return nil, true, err
	}
	return NewUserToken(user, c.SessionDuration()), true, nil
}

// IsRejection reports whether the error is a credential rejection rather
// than a plain absence of credentials.
func IsRejection(err error) bool {
	return err != nil && !errors.Is(err, ErrNoToken)
}

// StatusFor maps an extraction error to the HTTP status surfaced to the
// client.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrXSRFMismatch):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}
