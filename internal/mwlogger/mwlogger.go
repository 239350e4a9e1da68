// Package mwlogger attaches a request-scoped logger with a request UUID to every request
package mwlogger

import (
	"context"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/helpers"
	"github.com/wb-go/wbf/zlog"
)

type loggerWithRequestID struct{}

// NewMWLogger wraps the engine: every request gets a UUID and a logger
// carrying it, stored in the request context for the lower layers.
func NewMWLogger(next *ginext.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = helpers.CreateUUID()
		}

		logger := zlog.Logger.With().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		ctx := context.WithValue(r.Context(), loggerWithRequestID{}, logger)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}

// LoggerFromContext extracts logger from context - used in service-layer
func LoggerFromContext(ctx context.Context) zlog.Zerolog {
	if l, ok := ctx.Value(loggerWithRequestID{}).(zlog.Zerolog); ok {
		return l
	}
	return zlog.Logger
}
