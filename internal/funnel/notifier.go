package funnel

import (
	"github.com/sirupsen/logrus"
)

// Notifier shows short user-facing messages (toasts, banners)
type Notifier interface {
	Info(message string)
	Success(message string)
	Error(message string)
}

// LogNotifier writes notifications to a logger. Used by headless callers and tests.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Info(message string) {
	n.logger.WithField("notification", "info").Info(message)
}

func (n *LogNotifier) Success(message string) {
	n.logger.WithField("notification", "success").Info(message)
}

func (n *LogNotifier) Error(message string) {
	n.logger.WithField("notification", "error").Warn(message)
}
