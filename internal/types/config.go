package types

type RunMode string

const (
	// ModeLocal runs the scheduler in-process with local defaults
	ModeLocal RunMode = "local"
	// ModeScheduler runs the cron scheduler only
	ModeScheduler RunMode = "scheduler"
	// ModeTemporalWorker runs the temporal worker that executes billing cycles
	ModeTemporalWorker RunMode = "temporal_worker"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
