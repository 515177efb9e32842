package logging

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey int

const loggerCtxKey ctxKey = iota

func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

func LoggerFromContext(ctx context.Context) logrus.FieldLogger {
	if logger, ok := ctx.Value(loggerCtxKey).(logrus.FieldLogger); ok {
		return logger
	}
	return logrus.StandardLogger()
}
