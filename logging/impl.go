package logging

import "go.uber.org/zap"

// Logger is the logging interface used by depthcloud packages. Structured
// key/value pairs follow the zap sugared conventions.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a child logger whose name is suffixed with subname.
	Sublogger(subname string) Logger
	Sync() error
}

type impl struct {
	*zap.SugaredLogger
}

func (imp *impl) Sublogger(subname string) Logger {
	return &impl{imp.SugaredLogger.Named(subname)}
}
