package ifit

import "github.com/op/go-logging"

func trySyslogBackend(prefix string) logging.Backend {
	return nil
}
