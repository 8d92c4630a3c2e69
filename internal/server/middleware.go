package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/metrics"
)

const responseSnippetLength = 200

// loggingWriter records the status code, size and a snippet of the response.
type loggingWriter struct {
	http.ResponseWriter
	status  int
	size    int
	snippet string
}

func (w *loggingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.snippet == "" {
		w.snippet = string(p[:min(len(p), responseSnippetLength)])
	}
	w.size += len(p)
	return w.ResponseWriter.Write(p)
}

func (w *loggingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Logging logs every request and counts it by route pattern and status code.
// Server errors are logged at error level with a snippet of the response body.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, r *http.Request) {
			start := time.Now()
			w := &loggingWriter{ResponseWriter: writer}
			next.ServeHTTP(w, r)

			if w.status == 0 {
				w.status = http.StatusOK
			}
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(w.status)).Inc()

			kv := []any{"method", r.Method, "path", r.URL.Path, "status", w.status, "size", w.size, "duration", time.Since(start)}
			if w.status >= http.StatusInternalServerError {
				logger.Error("request failed", append(kv, "response", w.snippet)...)
				return
			}
			logger.Debug("request", kv...)
		})
	}
}

// Recover turns a handler panic into a 500 response.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				var err error
				switch t := rec.(type) {
				case string:
					err = errors.New(t)
				case error:
					err = t
				default:
					err = fmt.Errorf("unknown error: %v", rec)
				}
				logger.Error("handler panicked", "path", r.URL.Path, "err", err)
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
