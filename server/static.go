package server

import (
	"fmt"
	"net/http"

	"github.com/atrium-gateway/atrium/auth"
	"github.com/atrium-gateway/atrium/routing"
)

// static serves StaticApp bindings from the app's target directory, behind
// the same authorization gate as the proxy pipeline.
type static struct {
	state         *State
	authenticator *auth.Authenticator
}

func (s *static) serveApp(w http.ResponseWriter, r *http.Request, app *routing.StaticApp) {
	user, err := s.authenticator.ExtractSkipXSRF(r)
	if auth.IsRejection(err) {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}

	host := routing.NormalizeHost(r.Host)
	if deny := auth.CheckAuthorization(app.App(), user, host, r.URL.Path); deny != nil {
		if deny.Status == http.StatusUnauthorized {
			s.redirectToLogin(w, r)
			return
		}
		deny.Write(w)
		return
	}

	http.FileServer(http.Dir(app.App().Target)).ServeHTTP(w, r)
}

// redirectToLogin sends unauthenticated browsers to the login page and
// remembers where to come back to in a short-lived cookie the page reads.
func (s *static) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	c := s.state.Config()
	target := fmt.Sprintf("%s://%s", c.Scheme(), r.Host)
	http.SetCookie(w, auth.RedirectCookie(target, c))
	w.Header().Set("Location", c.FullDomain())
	w.WriteHeader(http.StatusFound)
}
