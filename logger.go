package ktree

// Logger receives the few messages a tree emits: construction and Reclaim at
// Info, participant slot exhaustion at Warn, and invariant faults at Error
// just before the panic. Arguments are alternating key/value pairs.
//
// *slog.Logger satisfies Logger as is. Package logger adapts zap and logrus.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// DiscardLogger drops every message. It is the default.
type DiscardLogger struct{}

func (DiscardLogger) Error(string, ...any) {}

func (DiscardLogger) Warn(string, ...any) {}

func (DiscardLogger) Info(string, ...any) {}
