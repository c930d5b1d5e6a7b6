package so5

// Logger defines the interface the runtime uses for structured logging.
// Every framework-internal failure path (fatal capacity violations,
// noexcept-section failures such as push_evt_finish, rollback diagnostics)
// funnels through this interface, so host applications can route it to
// whatever logging backend they use. Fatal conditions are additionally
// written to stderr just before the process exits.
//
// The variadic key-value convention is compatible with slog, zap, logrus
// and friends.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// nullLogger discards everything. Used when an Environment is constructed
// without an explicit logger.
type nullLogger struct{}

func (nullLogger) Info(string, ...any)  {}
func (nullLogger) Error(string, ...any) {}
func (nullLogger) Warn(string, ...any)  {}
func (nullLogger) Debug(string, ...any) {}

// NewNullLogger returns a Logger that discards all output.
func NewNullLogger() Logger { return nullLogger{} }

// ErrorLogger is the narrow surface for reporting a single error from an
// external collaborator: log_error(source, message). It is satisfied by any
// Logger via LoggerAsErrorLogger, but kept separate so environment wiring
// can accept a bare function.
type ErrorLogger interface {
	LogError(source, message string)
}

// ErrorLoggerFunc adapts a function to ErrorLogger.
type ErrorLoggerFunc func(source, message string)

func (f ErrorLoggerFunc) LogError(source, message string) { f(source, message) }

// loggerAsErrorLogger adapts a Logger to the ErrorLogger surface.
type loggerAsErrorLogger struct{ l Logger }

func (a loggerAsErrorLogger) LogError(source, message string) {
	a.l.Error(message, "source", source)
}

// LoggerAsErrorLogger wraps a Logger so it can be used wherever an
// ErrorLogger is required.
func LoggerAsErrorLogger(l Logger) ErrorLogger { return loggerAsErrorLogger{l: l} }
