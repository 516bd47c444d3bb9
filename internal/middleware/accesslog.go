package middleware

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"
)

// RequestObserver records served requests.
type RequestObserver interface {
	ObserveRequest(method, operation string, status int, elapsed time.Duration)
}

// AccessLog logs every served operation and reports it to observer.
func AccessLog(observer RequestObserver, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()

		next(ctx)

		elapsed := time.Since(start)
		status := ctx.Status()
		operation := ""

		if op := ctx.Operation(); op != nil {
			operation = op.OperationID
		}

		if observer != nil {
			observer.ObserveRequest(ctx.Method(), operation, status, elapsed)
		}

		logger.Info("request",
			zap.String("method", ctx.Method()),
			zap.String("path", ctx.URL().Path),
			zap.String("operation", operation),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)
	}
}
