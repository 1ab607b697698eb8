package wa

import (
	"context"
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/dmitrijs2005/pollwatch/internal/logging"
)

// logBridge routes whatsmeow's printf-style logs into the structured logger.
type logBridge struct {
	l      logging.Logger
	module string
}

// NewLogger adapts l to waLog.Logger, tagging records with module.
func NewLogger(l logging.Logger, module string) waLog.Logger {
	return &logBridge{l: l.With("module", module), module: module}
}

func (b *logBridge) Debugf(msg string, args ...any) {
	b.l.Debug(context.Background(), fmt.Sprintf(msg, args...))
}

func (b *logBridge) Infof(msg string, args ...any) {
	b.l.Info(context.Background(), fmt.Sprintf(msg, args...))
}

func (b *logBridge) Warnf(msg string, args ...any) {
	b.l.Warn(context.Background(), fmt.Sprintf(msg, args...))
}

func (b *logBridge) Errorf(msg string, args ...any) {
	b.l.Error(context.Background(), fmt.Sprintf(msg, args...))
}

func (b *logBridge) Sub(module string) waLog.Logger {
	return &logBridge{l: b.l.With("submodule", module), module: b.module + "/" + module}
}
