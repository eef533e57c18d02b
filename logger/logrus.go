package logger

import (
	"github.com/sirupsen/logrus"

	"ktree"
)

// badKey names a value that had no key, as slog does.
const badKey = "!BADKEY"

// Logrus wraps a logrus.Logger to implement ktree.Logger.
type Logrus struct {
	logger *logrus.Logger
}

// NewLogrus creates a ktree.Logger from a logrus.Logger.
func NewLogrus(logger *logrus.Logger) ktree.Logger {
	return &Logrus{logger: logger}
}

// Error logs an error message with key-value pairs.
func (l *Logrus) Error(msg string, args ...any) {
	l.logger.WithFields(argsToFields(args)).Error(msg)
}

// Warn logs a warning message with key-value pairs.
func (l *Logrus) Warn(msg string, args ...any) {
	l.logger.WithFields(argsToFields(args)).Warn(msg)
}

// Info logs an info message with key-value pairs.
func (l *Logrus) Info(msg string, args ...any) {
	l.logger.WithFields(argsToFields(args)).Info(msg)
}

func argsToFields(args []any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 == len(args) {
			fields[badKey] = args[i]
			i--
			continue
		}
		fields[key] = args[i+1]
	}
	return fields
}
