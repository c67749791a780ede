package ifit

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("ifit")

var stderrFormat = logging.MustStringFormatter(
	`%{color}%{time:15:04:05.000} %{level:.6s} ifit ▶ %{message}%{color:reset}`,
)

// SetupLogging installs a stderr-backed logger at defaultLevel, overridable
// by the IFIT_LOG_LEVEL environment variable. trySyslog requests a
// syslog-backed logger instead where the platform supports it (see
// logging_unix.go); it is silently ignored elsewhere.
func SetupLogging(prefix string, defaultLevel logging.Level, trySyslog bool) *logging.Logger {
	var backend logging.Backend
	if trySyslog {
		backend = trySyslogBackend(prefix)
	}
	if backend == nil {
		backend = logging.NewLogBackend(os.Stderr, prefix, 0)
		logging.SetFormatter(stderrFormat)
	}

	leveled := logging.AddModuleLevel(backend)
	level := defaultLevel
	if envLevel, err := logging.LogLevel(os.Getenv("IFIT_LOG_LEVEL")); err == nil {
		level = envLevel
	}
	leveled.SetLevel(level, "")

	logging.SetBackend(leveled)
	return log
}
