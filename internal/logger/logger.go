package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus logger
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a JSON logger writing to stdout at the given level
func New(serviceName, level string) *Logger {
	return NewWithOutput(serviceName, level, os.Stdout)
}

// NewWithOutput is New with a custom destination
func NewWithOutput(serviceName, level string, out io.Writer) *Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)
	log.SetLevel(ParseLevel(level))

	return &Logger{Logger: log, service: serviceName}
}

// ParseLevel maps LOG_LEVEL values to logrus levels, defaulting to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Component returns an entry tagged with the service and component name
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"service":   l.service,
		"component": name,
	})
}

// WithRoom adds the room id to an entry
func WithRoom(log logrus.FieldLogger, roomID string) logrus.FieldLogger {
	return log.WithField("room_id", roomID)
}

// WithConnection adds the connection id to an entry
func WithConnection(log logrus.FieldLogger, connID string) logrus.FieldLogger {
	return log.WithField("conn_id", connID)
}
