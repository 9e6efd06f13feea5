package logging

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	dateFormat      = "02/Jan/2006:15:04:05 -0700"
	commonLogFormat = `%s - - [%s] "%s %s %s" %d %d`
	// remote_host - - [date] "method uri proto" status size "referer"
	// "user_agent" duration_ms requested_host request_id
	accessLogFormat = commonLogFormat + " %q %q %d %s %s\n"
)

// AccessEntry is one access log event.
type AccessEntry struct {

	// The client request.
	Request *http.Request

	// The status code of the response.
	StatusCode int

	// The size of the response in bytes.
	ResponseSize int64

	// The time spent processing the request.
	Duration time.Duration

	// The time that the request was received.
	RequestTime time.Time

	// The id assigned to the request by the dispatcher.
	RequestID string
}

var accessLog *logrus.Logger

type accessLogFormatter struct{}

func (accessLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	keys := []string{
		"host", "timestamp", "method", "uri", "proto", "status",
		"response-size", "referer", "user-agent", "duration",
		"requested-host", "request-id"}

	values := make([]interface{}, len(keys))
	for i, key := range keys {
		values[i] = e.Data[key]
	}
	return []byte(fmt.Sprintf(accessLogFormat, values...)), nil
}

func initAccessLog(output io.Writer) {
	if output == nil {
		output = os.Stderr
	}
	l := logrus.New()
	l.Formatter = accessLogFormatter{}
	l.Out = output
	l.Level = logrus.InfoLevel
	accessLog = l
}

// strip port from addresses with hostname, ipv4 or ipv6
func stripPort(address string) string {
	if h, _, err := net.SplitHostPort(address); err == nil {
		return h
	}
	return address
}

// remoteHost is the client address, preferring X-Forwarded-For when the
// gateway runs behind another proxy.
func remoteHost(r *http.Request) string {
	a := r.RemoteAddr
	if ff := r.Header.Get("X-Forwarded-For"); ff != "" {
		a = ff
	}
	if h := stripPort(a); h != "" {
		return h
	}
	return "-"
}

// LogAccess logs an access event in Apache combined log format, extended
// with the duration, the requested host and the request id.
func LogAccess(entry *AccessEntry) {
	if accessLog == nil || entry == nil {
		return
	}

	host := "-"
	method := ""
	uri := ""
	proto := ""
	referer := ""
	userAgent := ""
	requestedHost := ""
	requestID := "-"

	if entry.Request != nil {
		host = remoteHost(entry.Request)
		method = entry.Request.Method
		uri = entry.Request.RequestURI
		proto = entry.Request.Proto
		referer = entry.Request.Referer()
		userAgent = entry.Request.UserAgent()
		requestedHost = entry.Request.Host
	}
	if entry.RequestID != "" {
		requestID = entry.RequestID
	}

	accessLog.WithFields(logrus.Fields{
		"host":           host,
		"timestamp":      entry.RequestTime.Format(dateFormat),
		"method":         method,
		"uri":            uri,
		"proto":          proto,
		"status":         entry.StatusCode,
		"response-size":  entry.ResponseSize,
		"referer":        referer,
		"user-agent":     userAgent,
		"duration":       int64(entry.Duration / time.Millisecond),
		"requested-host": requestedHost,
		"request-id":     requestID,
	}).Info()
}
