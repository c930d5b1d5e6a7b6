package so5

import "go.uber.org/zap"

// zapLogger adapts a *zap.SugaredLogger to Logger, the concrete instance of
// the "compatible with slog, zap, logrus" claim in logger.go's doc comment.
type zapLogger struct {
	l *zap.SugaredLogger
}

// NewZapLogger wraps l for use as an Environment's Logger.
func NewZapLogger(l *zap.Logger) Logger {
	return zapLogger{l: l.Sugar()}
}

func (z zapLogger) Info(msg string, args ...any)  { z.l.Infow(msg, args...) }
func (z zapLogger) Error(msg string, args ...any) { z.l.Errorw(msg, args...) }
func (z zapLogger) Warn(msg string, args ...any)  { z.l.Warnw(msg, args...) }
func (z zapLogger) Debug(msg string, args ...any) { z.l.Debugw(msg, args...) }
