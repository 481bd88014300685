package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// logMiddleware logs one line per request. Probes are logged at debug level;
// anything slower than slowAfter is logged as a warning.
func logMiddleware(next http.Handler, logger *slog.Logger, slowAfter time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		took := time.Since(start)
		level := slog.LevelInfo
		msg := "http_request"
		switch {
		case took > slowAfter:
			level, msg = slog.LevelWarn, "slow http_request"
		case r.URL.Path == "/healthz" || r.URL.Path == "/readyz":
			level = slog.LevelDebug
		}
		logger.Log(r.Context(), level, msg,
			"method", r.Method,
			"path", r.URL.Path,
			"route", routeTemplate(r),
			"query", r.URL.RawQuery,
			"status", ww.status,
			"duration_ms", took.Milliseconds(),
		)
	})
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tpl
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
