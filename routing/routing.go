// Package routing expands the declarative gateway configuration into an
// immutable table keyed by fully qualified hostname, and resolves incoming
// Host headers against it.
package routing

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/atrium-gateway/atrium/config"
)

// ServiceBinding is a resolved service for a hostname: either a static
// directory app or a reverse proxied app. The dispatcher type-switches on
// the two implementations.
type ServiceBinding interface {
	// App is the configured app behind the binding.
	App() *config.App
}

// StaticApp binds a hostname to an app served from a local directory.
type StaticApp struct {
	app config.App
}

func (s *StaticApp) App() *config.App { return &s.app }

// ReverseApp binds a hostname to an app forwarded to an upstream origin,
// with the public and upstream endpoints pre-parsed.
type ReverseApp struct {
	app config.App

	// AppScheme and AppAuthority form the public endpoint of the app.
	AppScheme    string
	AppAuthority string

	// ForwardScheme and ForwardAuthority form the upstream endpoint
	// requests are rewritten to.
	ForwardScheme    string
	ForwardAuthority string
}

func (r *ReverseApp) App() *config.App { return &r.app }

// ForwardPort is the explicit port of the upstream authority, or the empty
// string. An explicit port marks an internal upstream that receives
// forwarded-host headers.
func (r *ReverseApp) ForwardPort() string {
	_, port, err := net.SplitHostPort(r.ForwardAuthority)
	if err != nil {
		return ""
	}
	return port
}

func newReverseApp(app config.App, hostname string, port int) (*ReverseApp, error) {
	appScheme := "https"
	appAuthority := app.Host
	if !strings.Contains(app.Host, hostname) {
		appAuthority = app.Host + "." + hostname
	}
	if port != 0 {
		appScheme = "http"
		appAuthority = fmt.Sprintf("%s:%d", appAuthority, port)
	}
	if _, err := url.Parse("//" + appAuthority); err != nil {
		return nil, fmt.Errorf("could not work out authority for app %q: %w", app.Name, err)
	}

	target, err := url.Parse(app.Target)
	if err != nil {
		return nil, fmt.Errorf("could not parse target of app %q: %w", app.Name, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("target of app %q must be an http(s) origin, got %q", app.Name, app.Target)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("could not parse target host of app %q", app.Name)
	}

	return &ReverseApp{
		app:              app,
		AppScheme:        appScheme,
		AppAuthority:     appAuthority,
		ForwardScheme:    target.Scheme,
		ForwardAuthority: target.Host,
	}, nil
}

// Table maps fully qualified hostnames to service bindings. The management
// hostname is intentionally absent: a failed lookup means the request is for
// the management router.
type Table struct {
	hostname string
	entries  map[string]ServiceBinding
}

// Build materializes the routing table from the configuration. Apps are
// first partitioned by instance: when hostname and cookie domain are equal
// this instance serves the apps whose host does not name another hostname,
// otherwise only the apps whose host names this hostname.
func Build(c *config.Config) (*Table, error) {
	port := 0
	if !c.TLSMode.IsSecure() {
		port = config.HTTPPort
	}

	t := &Table{
		hostname: c.Hostname,
		entries:  make(map[string]ServiceBinding),
	}
	for _, app := range selectApps(c) {
		binding, err := newBinding(app, c.Hostname, port)
		if err != nil {
			return nil, err
		}
		slug := trimHost(app.Host)
		t.entries[slug+"."+c.Hostname] = binding
		for _, sub := range app.Subdomains {
			t.entries[sub+"."+slug+"."+c.Hostname] = binding
		}
	}
	return t, nil
}

func newBinding(app config.App, hostname string, port int) (ServiceBinding, error) {
	if app.IsProxy {
		return newReverseApp(app, hostname, port)
	}
	return &StaticApp{app: app}, nil
}

// Resolve looks up the service bound to the given Host header value. The
// host is lowercased and a port suffix is stripped before the lookup.
// Resolve returns nil when no app is bound, meaning the management router
// serves the request.
func (t *Table) Resolve(hostHeader string) ServiceBinding {
	return t.entries[NormalizeHost(hostHeader)]
}

// Len returns the number of table entries.
func (t *Table) Len() int { return len(t.entries) }

// Domains lists every hostname this instance answers for, the management
// hostname first. The TLS layer requests certificates for these.
func (t *Table) Domains() []string {
	domains := make([]string, 0, len(t.entries)+1)
	domains = append(domains, t.hostname)
	for host := range t.entries {
		domains = append(domains, host)
	}
	return domains
}

// NormalizeHost lowercases a host[:port] value and removes the port.
func NormalizeHost(host string) string {
	if strings.IndexByte(host, ':') != -1 {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	return strings.ToLower(host)
}

func selectApps(c *config.Config) []config.App {
	var selected []config.App
	for _, app := range c.Apps {
		if c.Hostname == c.Domain {
			if !strings.Contains(app.Host, c.Hostname) {
				selected = append(selected, app)
			}
		} else if strings.Contains(app.Host, c.Hostname) {
			selected = append(selected, app)
		}
	}
	return selected
}

// trimHost reduces an app host to its slug, the part before the first dot.
func trimHost(host string) string {
	if i := strings.IndexByte(host, '.'); i != -1 {
		return host[:i]
	}
	return host
}
