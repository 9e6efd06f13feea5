// Package atrium implements a self-hosted reverse proxy and access gateway.
// It routes traffic arriving at a single wildcard domain to configured
// backend apps, enforcing authentication, role based authorization and host
// based dispatch, with a management API on the bare hostname.
package atrium

import (
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/atrium-gateway/atrium/auth"
	"github.com/atrium-gateway/atrium/logging"
	"github.com/atrium-gateway/atrium/metrics"
	"github.com/atrium-gateway/atrium/proxy"
	"github.com/atrium-gateway/atrium/secrets"
	"github.com/atrium-gateway/atrium/server"
)

const (
	// DefaultConfigPath is the configuration file read from the working
	// directory.
	DefaultConfigPath = "atrium.yaml"

	// DefaultAddress is the listener address.
	DefaultAddress = "[::]:8080"

	applicationLogFile = "atrium.log"
)

// Options to start the gateway with.
type Options struct {

	// Path of the YAML configuration file. Defaults to atrium.yaml in the
	// working directory.
	ConfigPath string

	// Address to listen on. Defaults to [::]:8080.
	Address string

	// Prefix for application log entries.
	ApplicationLogPrefix string

	// When set, no access log is written.
	AccessLogDisabled bool

	// Directory the management host serves the web UI from.
	WebDir string

	// Timeout for upstream responses.
	UpstreamTimeout time.Duration
}

// Run starts the gateway and blocks serving requests. Configuration or
// routing errors are returned before the listener starts; the process must
// not serve with partial routing.
func Run(o Options) error {
	if o.ConfigPath == "" {
		o.ConfigPath = DefaultConfigPath
	}
	if o.Address == "" {
		o.Address = DefaultAddress
	}

	state, err := server.NewState(o.ConfigPath)
	if err != nil {
		return err
	}

	logOptions := logging.Options{
		ApplicationLogPrefix: o.ApplicationLogPrefix,
		AccessLogDisabled:    o.AccessLogDisabled,
	}
	if state.Config().LogToFile {
		logOptions.ApplicationLogFile = applicationLogFile
	}
	logging.Init(logOptions)

	enc, err := secrets.New(secrets.StaticSource([]byte(state.Config().CookieKey)))
	if err != nil {
		return fmt.Errorf("failed to initialize cookie encrypter: %w", err)
	}
	tokens := auth.NewTokens(enc)
	authenticator := auth.NewAuthenticator(tokens, state.Config)

	p := proxy.New(state.Config, authenticator,
		proxy.NewTransport(proxy.TransportOptions{Timeout: o.UpstreamTimeout}))

	srv := server.New(state, authenticator, p, metrics.New(), server.Options{
		WebDir:            o.WebDir,
		AccessLogDisabled: o.AccessLogDisabled,
	})

	log.Infof("gateway listening on %s, serving %d app hosts for %s",
		o.Address, state.Table().Len(), state.Config().Hostname)
	return http.ListenAndServe(o.Address, srv)
}
