// Package mwlogger provides UUID-logging to every request
package mwlogger

import (
	"context"
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/helpers"
	"github.com/wb-go/wbf/zlog"
)

type loggerWithRequestID struct{}

// NewMWLogger - обёртка для логирования запросов с присвоением UUID каждому запросу и пробросу логгера в контекст запроса
func NewMWLogger(next *ginext.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fetching/generating UUID for request
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = helpers.CreateUUID()
		}
		w.Header().Set("X-Request-Id", reqID)

		// Creating logger
		lctx := zlog.Logger.With().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path)
		// клиент браузера для истории настроек
		if clientID := r.Header.Get("X-Client-Id"); clientID != "" {
			lctx = lctx.Str("client_id", clientID)
		}
		logger := lctx.Logger()

		// Putting logger to context
		r = r.WithContext(WithLogger(r.Context(), logger))

		// Running handler
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug().Dur("took", time.Since(start)).Msg("Request served")
	})
}

// WithLogger puts logger to context - used by workers outside of HTTP flow
func WithLogger(ctx context.Context, logger zlog.Zerolog) context.Context {
	return context.WithValue(ctx, loggerWithRequestID{}, logger)
}

// LoggerFromContext extracts logger from context - used in service-layer
func LoggerFromContext(ctx context.Context) zlog.Zerolog {
	if l, ok := ctx.Value(loggerWithRequestID{}).(zlog.Zerolog); ok {
		return l
	}
	return zlog.Logger
}
