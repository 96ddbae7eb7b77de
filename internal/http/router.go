package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/visitor-desk/internal/metrics"
)

// RouterConfig wires the kiosk routes.
type RouterConfig struct {
	Kiosk      *KioskHandler
	Metrics    *metrics.Registry
	Limiter    *ClientRateLimiter
	Middleware []func(http.Handler) http.Handler
}

// NewRouter builds the kiosk handler tree.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	limited := RateLimit(cfg.Limiter, defaultLoggerFor(cfg.Kiosk))
	route := func(pattern string, h http.Handler) {
		mux.Handle(pattern, Instrument(cfg.Metrics, pattern)(h))
	}

	if cfg.Kiosk != nil {
		route("/scan", limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Kiosk.Scan(w, r)
		})))
		route("/scans", limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Kiosk.ResetScans(w, r)
		})))
		route("/visitors/", limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, action, ok := splitVisitorPath(r.URL.Path)
			if !ok {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithVisitorID(r.Context(), id))
			switch action {
			case "check-in":
				if r.Method != http.MethodGet && r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodGet, http.MethodPut)
					return
				}
				cfg.Kiosk.CheckIn(w, r)
			case "check-out":
				if r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodPut)
					return
				}
				cfg.Kiosk.CheckOut(w, r)
			default:
				http.NotFound(w, r)
			}
		})))
		route("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Kiosk.Health(w, r)
		}))
	}

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics.Handler())
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

// splitVisitorPath parses /visitors/{id}/{action}.
func splitVisitorPath(path string) (id, action string, ok bool) {
	rest := strings.TrimPrefix(path, "/visitors/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func defaultLoggerFor(kiosk *KioskHandler) *slog.Logger {
	if kiosk == nil {
		return nil
	}
	return kiosk.logger
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
