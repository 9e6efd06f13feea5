// Package logging initializes the application and access logs of the
// gateway.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type prefixFormatter struct {
	prefix    string
	formatter logrus.Formatter
}

func (f *prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b, err := f.formatter.Format(e)
	if err != nil {
		return nil, err
	}
	return append([]byte(f.prefix), b...), nil
}

// Init options for logging.
type Options struct {

	// Prefix for application log entries. Primarily used to be able to
	// select between access log and application log entries.
	ApplicationLogPrefix string

	// Output for the application log entries, when nil, os.Stderr is
	// used.
	ApplicationLogOutput io.Writer

	// When set, application log entries are appended to this file,
	// rotated at 50MB. Takes precedence over ApplicationLogOutput.
	ApplicationLogFile string

	// Output for the access log entries, when nil, os.Stderr is used.
	AccessLogOutput io.Writer

	// When set, no access log is printed.
	AccessLogDisabled bool
}

func initApplicationLog(o Options) {
	if o.ApplicationLogPrefix != "" {
		logrus.SetFormatter(&prefixFormatter{
			o.ApplicationLogPrefix, logrus.StandardLogger().Formatter})
	}
	if o.ApplicationLogFile != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   o.ApplicationLogFile,
			MaxSize:    50, // MB
			MaxBackups: 3,
		})
	} else if o.ApplicationLogOutput != nil {
		logrus.SetOutput(o.ApplicationLogOutput)
	}
}

// Init initializes logging.
func Init(o Options) {
	initApplicationLog(o)

	if !o.AccessLogDisabled {
		initAccessLog(o.AccessLogOutput)
	}
}
