package logger

import "go.temporal.io/sdk/log"

// temporalLogger routes temporal SDK logs through zap, tagged so worker noise
// can be filtered apart from billing logs.
type temporalLogger struct {
	logger *Logger
}

var _ log.Logger = (*temporalLogger)(nil)

// GetTemporalLogger returns a temporal-compatible logger
func (l *Logger) GetTemporalLogger() log.Logger {
	return &temporalLogger{logger: l.With("component", "temporal")}
}

func (t *temporalLogger) Debug(msg string, keyvals ...interface{}) { t.logger.Debugw(msg, keyvals...) }
func (t *temporalLogger) Info(msg string, keyvals ...interface{})  { t.logger.Infow(msg, keyvals...) }
func (t *temporalLogger) Warn(msg string, keyvals ...interface{})  { t.logger.Warnw(msg, keyvals...) }
func (t *temporalLogger) Error(msg string, keyvals ...interface{}) { t.logger.Errorw(msg, keyvals...) }
