// +build !windows

package ifit

import (
	stdlog "log"
	"log/syslog"

	"github.com/op/go-logging"
)

var syslogFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.6s} ▶ %{message}`,
)

func trySyslogBackend(prefix string) logging.Backend {
	backend, err := logging.NewSyslogBackendPriority(prefix, syslog.LOG_NOTICE)
	if err != nil {
		return nil
	}
	logging.SetFormatter(syslogFormat)
	if syslogBackend, ok := backend.(*logging.SyslogBackend); ok {
		stdlog.SetOutput(syslogBackend.Writer)
	}
	return backend
}
