package auth

import (
	"net/http"

	"github.com/atrium-gateway/atrium/config"
)

// WWWAuthenticate is the challenge sent with 401 responses.
const WWWAuthenticate = `Basic realm="server"`

// Deny is a short-circuit response from the authorization evaluator.
type Deny struct {
	Status int
	Header http.Header
	Body   string
}

// Write renders the denial to the response writer.
func (d *Deny) Write(w http.ResponseWriter) {
	for k, vs := range d.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(d.Status)
	if d.Body != "" {
		w.Write([]byte(d.Body))
	}
}

func unauthorized() *Deny {
	return &Deny{
		Status: http.StatusUnauthorized,
		Header: http.Header{"Www-Authenticate": []string{WWWAuthenticate}},
	}
}

func forbidden() *Deny {
	return &Deny{Status: http.StatusForbidden}
}

// CheckAuthorization decides whether the user may access the app at the
// given host and path. It returns nil to pass, or a denial to short-circuit
// with. An app without roles is closed to everyone when secured, and a
// share-scoped token is only valid for the exact hostname and path it
// names.
func CheckAuthorization(app *config.App, user *UserToken, host, path string) *Deny {
	if !app.Secured {
		return nil
	}
	if user == nil {
		return unauthorized()
	}
	if !user.HasRole(app.Roles) {
		return forbidden()
	}
	if user.Share != nil && (user.Share.Hostname != host || user.Share.Path != path) {
		return forbidden()
	}
	return nil
}
