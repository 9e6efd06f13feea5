package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-gateway/atrium/config"
)

func TestCheckAuthorization(t *testing.T) {
	securedApp := &config.App{Secured: true, Roles: []string{"role1", "role2"}}

	for _, tt := range []struct {
		name       string
		app        *config.App
		user       *UserToken
		host, path string
		wantStatus int
	}{
		{
			name: "unsecured app passes without user",
			app:  &config.App{},
		},
		{
			name:       "secured app without user challenges",
			app:        securedApp,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "user with one matching role passes",
			app:  securedApp,
			user: &UserToken{Roles: []string{"role1"}},
		},
		{
			name: "user with all roles passes",
			app:  securedApp,
			user: &UserToken{Roles: []string{"role1", "role2"}},
		},
		{
			name:       "user without matching role is forbidden",
			app:        securedApp,
			user:       &UserToken{Roles: []string{"role3"}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "user without roles is forbidden",
			app:        securedApp,
			user:       &UserToken{},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "secured app without roles is closed",
			app:        &config.App{Secured: true},
			user:       &UserToken{Roles: []string{"role1"}},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "share token for the exact host and path passes",
			app:  securedApp,
			user: &UserToken{
				Roles: []string{"role1"},
				Share: &Share{Hostname: "files.atrium.io", Path: "/public/x.txt"},
			},
			host: "files.atrium.io",
			path: "/public/x.txt",
		},
		{
			name: "share token for another path is forbidden",
			app:  securedApp,
			user: &UserToken{
				Roles: []string{"role1"},
				Share: &Share{Hostname: "files.atrium.io", Path: "/public/x.txt"},
			},
			host:       "files.atrium.io",
			path:       "/public/y.txt",
			wantStatus: http.StatusForbidden,
		},
		{
			name: "share token for another host is forbidden",
			app:  securedApp,
			user: &UserToken{
				Roles: []string{"role1"},
				Share: &Share{Hostname: "files.atrium.io", Path: "/public/x.txt"},
			},
			host:       "other.atrium.io",
			path:       "/public/x.txt",
			wantStatus: http.StatusForbidden,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			deny := CheckAuthorization(tt.app, tt.user, tt.host, tt.path)
			if tt.wantStatus == 0 {
				assert.Nil(t, deny)
				return
			}
			require.NotNil(t, deny)
			assert.Equal(t, tt.wantStatus, deny.Status)
		})
	}
}

func TestDenyWrite(t *testing.T) {
	w := httptest.NewRecorder()
	unauthorized().Write(w)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="server"`, w.Header().Get("WWW-Authenticate"))

	w = httptest.NewRecorder()
	forbidden().Write(w)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("WWW-Authenticate"))
}
