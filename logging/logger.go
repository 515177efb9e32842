package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the field-style logger every component accepts. Level control
// stays on the concrete *logrus.Logger returned by New.
type Logger interface {
	logrus.FieldLogger
}

func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}
