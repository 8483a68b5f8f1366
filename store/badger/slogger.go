package badger

import (
	"fmt"
	"log/slog"
	"strings"
)

// slogger adapts an *slog.Logger to badger's Logger interface.
type slogger struct {
	logger *slog.Logger
}

func (l slogger) format(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	return strings.TrimRight(s, "\n")
}

func (l slogger) Errorf(format string, args ...any) {
	l.logger.Error(l.format(format, args...), "module", "badger")
}

func (l slogger) Warningf(format string, args ...any) {
	l.logger.Warn(l.format(format, args...), "module", "badger")
}

func (l slogger) Infof(format string, args ...any) {
	l.logger.Info(l.format(format, args...), "module", "badger")
}

func (l slogger) Debugf(format string, args ...any) {
	l.logger.Debug(l.format(format, args...), "module", "badger")
}
