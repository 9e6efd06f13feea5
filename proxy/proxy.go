// Package proxy forwards requests for reverse proxied apps to their
// upstream origin, rewriting the request per the app binding.
package proxy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/atrium-gateway/atrium/auth"
	"github.com/atrium-gateway/atrium/routing"
)

// RemoteUserHeader carries the authenticated user's email to upstreams that
// opt in with forward_user_mail.
const RemoteUserHeader = "Remote-User"

var hopHeaders = map[string]bool{
	"Te":                  true,
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Proxy is the forwarding pipeline for ReverseApp bindings. A single
// instance with its shared round tripper serves all requests.
type Proxy struct {
	conf          auth.ConfigGetter
	authenticator *auth.Authenticator
	roundTripper  http.RoundTripper
}

// New returns a Proxy over the shared round tripper.
func New(conf auth.ConfigGetter, authenticator *auth.Authenticator, rt http.RoundTripper) *Proxy {
	return &Proxy{
		conf:          conf,
		authenticator: authenticator,
		roundTripper:  rt,
	}
}

// ServeApp authorizes the request against the app and forwards it upstream.
func (p *Proxy) ServeApp(w http.ResponseWriter, r *http.Request, app *routing.ReverseApp) {
	user, err := p.authenticator.ExtractSkipXSRF(r)
	if auth.IsRejection(err) {
		http.Error(w, err.Error(), auth.StatusFor(err))
		return
	}

	host := routing.NormalizeHost(r.Host)
	if deny := auth.CheckAuthorization(app.App(), user, host, r.URL.Path); deny != nil {
		if deny.Status == http.StatusUnauthorized {
			p.redirectToLogin(w, r)
			return
		}
		deny.Write(w)
		return
	}

	rr, err := p.mapRequest(r, app, user)
	if err != nil {
		log.Errorf("failed to map request for app %q: %v", app.App().Name, err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	rsp, err := p.roundTripper.RoundTrip(rr)
	if err != nil {
		status, text := upstreamError(err)
		log.Debugf("upstream %s failed: %v", app.ForwardAuthority, err)
		http.Error(w, text, status)
		return
	}
	defer rsp.Body.Close()

	copyHeaderExcluding(w.Header(), rsp.Header, hopHeaders)
	w.WriteHeader(rsp.StatusCode)
	if _, err := io.Copy(w, rsp.Body); err != nil {
		log.Debugf("failed to copy response from %s: %v", app.ForwardAuthority, err)
	}
}

// redirectToLogin sends unauthenticated browsers to the login page and
// remembers where to come back to in a short-lived cookie the page reads.
func (p *Proxy) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	c := p.conf()
	target := fmt.Sprintf("%s://%s", c.Scheme(), r.Host)
	http.SetCookie(w, auth.RedirectCookie(target, c))
	w.Header().Set("Location", c.FullDomain())
	w.WriteHeader(http.StatusFound)
}

// mapRequest creates the outgoing request from the inbound one: the scheme
// and authority are replaced with the upstream endpoint, path and query are
// preserved, and the app's forwarding headers are applied.
func (p *Proxy) mapRequest(r *http.Request, app *routing.ReverseApp, user *auth.UserToken) (*http.Request, error) {
	u := *r.URL
	u.Scheme = app.ForwardScheme
	u.Host = app.ForwardAuthority

	body := r.Body
	if r.ContentLength == 0 {
		body = nil
	}

	rr, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	rr.ContentLength = r.ContentLength
	rr.Header = cloneHeaderExcluding(r.Header, hopHeaders)

	// An upstream with an explicit port is an internal service: tell it
	// how it is reached publicly.
	if app.ForwardPort() != "" {
		rr.Header.Set("X-Forwarded-Host", app.AppAuthority)
		rr.Header.Set("X-Forwarded-Proto", app.AppScheme)
	}

	// Configured app credentials override whatever the client sent.
	if a := app.App(); a.Login != "" && a.Password != "" {
		basic := base64.StdEncoding.EncodeToString([]byte(a.Login + ":" + a.Password))
		rr.Header.Set("Authorization", "Basic "+basic)
	}

	if app.App().ForwardUserMail {
		rr.Header.Del(RemoteUserHeader)
		if user != nil && user.Info != nil && user.Info.Email != "" {
			rr.Header.Set(RemoteUserHeader, user.Info.Email)
		}
	}

	return rr, nil
}

func upstreamError(err error) (int, string) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return http.StatusGatewayTimeout, "Gateway Timeout"
	}
	return http.StatusBadGateway, "Bad Gateway"
}

func cloneHeaderExcluding(h http.Header, exclude map[string]bool) http.Header {
	hh := make(http.Header, len(h))
	copyHeaderExcluding(hh, h, exclude)
	return hh
}

func copyHeaderExcluding(to, from http.Header, exclude map[string]bool) {
	for k, v := range from {
		if !exclude[http.CanonicalHeaderKey(k)] {
			to[http.CanonicalHeaderKey(k)] = v
		}
	}
}
