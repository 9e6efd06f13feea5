package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/atrium-gateway/atrium/config"
)

// HashPassword hashes a plain text password for storage in the
// configuration file.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a plain text password against a stored bcrypt
// hash. A stored value that is not a bcrypt hash never matches.
func CheckPassword(hash, plain string) error {
	if !strings.HasPrefix(hash, "$2") {
		return ErrBadPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrBadPassword
	}
	return nil
}

// Authenticate verifies a login and password against the user table.
func (a *Authenticator) Authenticate(login, password string) (*UserToken, error) {
	c := a.conf()
	user := c.FindUser(login)
	if user == nil {
		return nil, ErrUserUnknown
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return nil, err
	}
	return NewUserToken(user, c.SessionDuration()), nil
}

// EncodeSession encodes a token under the session cookie name.
func (a *Authenticator) EncodeSession(token *UserToken) (string, error) {
	return a.tokens.Encode(AuthCookieName, token)
}

// EncodeShare encodes a share-scoped token under the share token name.
func (a *Authenticator) EncodeShare(token *UserToken) (string, error) {
	return a.tokens.Encode(ShareTokenName, token)
}

// Config returns the current configuration snapshot.
func (a *Authenticator) Config() *config.Config {
	return a.conf()
}
