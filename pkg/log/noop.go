package log

// NoopLogger discards every message. It is the default logger of a pool
// created without WithLogger.
type NoopLogger struct{}

// NewNoopLogger creates a no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// Debug discards the message and fields.
func (NoopLogger) Debug(msg string, fields ...Field) {}

// Info discards the message and fields.
func (NoopLogger) Info(msg string, fields ...Field) {}

// Warn discards the message and fields.
func (NoopLogger) Warn(msg string, fields ...Field) {}

// Error discards the message and fields.
func (NoopLogger) Error(msg string, fields ...Field) {}
