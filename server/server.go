package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/atrium-gateway/atrium/auth"
	"github.com/atrium-gateway/atrium/logging"
	"github.com/atrium-gateway/atrium/metrics"
	"github.com/atrium-gateway/atrium/proxy"
	"github.com/atrium-gateway/atrium/routing"
)

// RequestIDHeader carries the per-request id, stamped by the dispatcher
// when the client did not send one.
const RequestIDHeader = "X-Request-Id"

// Options for the request dispatcher.
type Options struct {

	// Directory the management host serves for unknown paths, holding the
	// web UI. Defaults to "web".
	WebDir string

	// When set, no access log entries are written.
	AccessLogDisabled bool
}

// Server dispatches each request by its Host header to the proxy, static or
// management pipeline, wrapped in the security-headers, access-log and
// metrics middleware.
type Server struct {
	state             *State
	proxy             *proxy.Proxy
	static            *static
	management        *management
	metrics           *metrics.Metrics
	accessLogDisabled bool
}

// New returns the dispatcher over the live state.
func New(state *State, authenticator *auth.Authenticator, p *proxy.Proxy, m *metrics.Metrics, o Options) *Server {
	if o.WebDir == "" {
		o.WebDir = "web"
	}
	return &Server{
		state:             state,
		proxy:             p,
		static:            &static{state: state, authenticator: authenticator},
		management:        newManagement(state, authenticator, m, o.WebDir),
		metrics:           m,
		accessLogDisabled: o.AccessLogDisabled,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Host == "" {
		http.NotFound(w, r)
		return
	}

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		r.Header.Set(RequestIDHeader, requestID)
	}

	binding := s.state.Table().Resolve(r.Host)

	lw := &loggingWriter{
		writer: w,
		inject: binding != nil && binding.App().InjectSecurityHeaders,
		secure: s.state.Config().TLSMode.IsSecure(),
	}

	pipeline := "management"
	switch b := binding.(type) {
	case *routing.ReverseApp:
		pipeline = "proxy"
		s.proxy.ServeApp(lw, r, b)
	case *routing.StaticApp:
		pipeline = "static"
		s.static.serveApp(lw, r, b)
	default:
		s.management.ServeHTTP(lw, r)
	}

	host := routing.NormalizeHost(r.Host)
	if s.metrics != nil {
		s.metrics.MeasureServe(host, pipeline, lw.code(), start)
	}
	if !s.accessLogDisabled {
		logging.LogAccess(&logging.AccessEntry{
			Request:      r,
			StatusCode:   lw.code(),
			ResponseSize: lw.bytes,
			Duration:     time.Since(start),
			RequestTime:  start,
			RequestID:    requestID,
		})
	}
}

// injectSecurityHeaders sets the hardening headers on responses of apps that
// opt in. The values are uniform across all protected apps and overlay
// whatever the upstream responded with.
func injectSecurityHeaders(h http.Header, secure bool) {
	h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'none'")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	if secure {
		h.Set("Strict-Transport-Security", "max-age=63072000")
	}
}

// loggingWriter captures the response status and size for the access log
// and the metrics, and applies the security headers right before the
// response headers are flushed, so the pipeline's headers cannot override
// them.
type loggingWriter struct {
	writer     http.ResponseWriter
	inject     bool
	secure     bool
	statusCode int
	bytes      int64
}

func (lw *loggingWriter) Header() http.Header {
	return lw.writer.Header()
}

func (lw *loggingWriter) Write(data []byte) (int, error) {
	if lw.statusCode == 0 {
		lw.WriteHeader(http.StatusOK)
	}
	n, err := lw.writer.Write(data)
	lw.bytes += int64(n)
	return n, err
}

func (lw *loggingWriter) WriteHeader(code int) {
	if lw.statusCode == 0 {
		lw.statusCode = code
		if lw.inject {
			injectSecurityHeaders(lw.Header(), lw.secure)
		}
	}
	lw.writer.WriteHeader(code)
}

func (lw *loggingWriter) code() int {
	if lw.statusCode == 0 {
		return http.StatusOK
	}
	return lw.statusCode
}

func (lw *loggingWriter) Flush() {
	if f, ok := lw.writer.(http.Flusher); ok {
		f.Flush()
	}
}
