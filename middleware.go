package main

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type loggerKeyType string

const loggerKey loggerKeyType = "logger"

const requestIDHeader = "X-Request-ID"

const (
	authRateLimit  = 20
	authRateWindow = time.Minute
)

// appLogger is replaced in main once the configuration is loaded.
var appLogger = zap.NewNop()

// requestLogger returns the logger carrying the request id, or appLogger
// outside of requestMiddleware.
func requestLogger(r *http.Request) *zap.Logger {
	if l, ok := r.Context().Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return appLogger
}

// statusRecorder remembers the status code written by the handler. It keeps
// Hijack working so websocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// requestMiddleware tags every request with an id, logs it and records
// metrics by route template.
func requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		log := appLogger.With(zap.String("request_id", id))
		r = r.WithContext(context.WithValue(r.Context(), loggerKey, log))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		log.Debug("request served",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("latency", elapsed),
		)
	})
}

// authRateLimiter throttles the credential endpoints per client IP. Each call
// returns a limiter with its own counters.
func authRateLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(authRateLimit, authRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			requestLogger(r).Warn("auth rate limit hit", zap.String("remote_addr", r.RemoteAddr))
			writeError(w, http.StatusTooManyRequests, "rate_limited")
		}),
	)
}
