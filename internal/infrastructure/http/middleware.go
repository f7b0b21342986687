package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"bazaar.com/internal/application/usecase"
	"bazaar.com/internal/infrastructure/logger"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// RequestIDMiddleware adds a request ID to each request. The ID is also the
// correlation ID recorded on ledger events.
func RequestIDMiddleware(next http.HandlerFunc, logger logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = context.WithValue(ctx, loggerKey, logger.WithRequestID(requestID))
		ctx = usecase.WithCorrelationID(ctx, requestID)

		next(w, r.WithContext(ctx))
	}
}

// LoggingMiddleware logs request details
func LoggingMiddleware(next http.HandlerFunc, logger logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestLogger := requestLoggerFrom(r.Context(), logger)

		requestLogger.LogInfo(r.Context(), "Incoming request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(wrapped, r)

		duration := time.Since(start)
		requestLogger.LogInfo(r.Context(), "Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", duration.Milliseconds())
	}
}

// requestLoggerFrom returns the request-scoped logger, or fallback outside the middleware chain
func requestLoggerFrom(ctx context.Context, fallback logger.Logger) logger.Logger {
	if l, ok := ctx.Value(loggerKey).(logger.Logger); ok {
		return l
	}
	return fallback
}

// RequestID returns the request ID assigned by RequestIDMiddleware
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
