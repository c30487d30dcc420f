package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kubeadapt/sample-gpu-app/internal/observability"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID assigned by the middleware,
// or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID propagates the caller's X-Request-ID or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	return rec.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// instrument records one request outcome on every exit path, including a
// panicking handler, which is answered with 500.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := routeTemplate(r)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			p := recover()
			if p != nil && p != http.ErrAbortHandler {
				slog.Error("handler panicked",
					"endpoint", endpoint,
					"request_id", RequestIDFromContext(r.Context()),
					"panic", fmt.Sprint(p),
				)
				if !rec.wroteHeader {
					http.Error(rec, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
				rec.status = http.StatusInternalServerError
			}

			s.recordOutcome(r.Method, endpoint, rec.status, time.Since(start))

			if p == http.ErrAbortHandler {
				panic(p)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}

func (s *Server) recordOutcome(method, endpoint string, status int, latency time.Duration) {
	err := s.metrics.Increment(observability.RequestsTotal, prometheus.Labels{
		"method":   method,
		"endpoint": endpoint,
		"status":   strconv.Itoa(status),
	})
	if err != nil {
		slog.Error("failed to record request", "error", err)
	}
	err = s.metrics.Observe(observability.RequestLatencySeconds, prometheus.Labels{
		"endpoint": endpoint,
	}, latency.Seconds())
	if err != nil {
		slog.Error("failed to record request latency", "error", err)
	}
}

// routeTemplate returns the matched route's path template so that the
// endpoint label stays bounded regardless of the request path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
