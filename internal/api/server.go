// Package api serves the persisted output tables as read-only JSON.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

// Options configures the router.
type Options struct {
	OutDir       string
	RateLimitRPS float64 // <= 0 disables limiting
	CORSOrigins  []string
}

// NewRouter builds the read API. Every table request re-reads its file, so
// the server holds no state besides the rate limiter.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(instrument)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			burst := max(int(opts.RateLimitRPS), 1)
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)))
		}
		for _, rt := range Routes {
			r.Get(rt.Path, tableHandler(opts.OutDir, rt))
		}
	})
	return r
}

// rateLimit rejects requests beyond the shared token bucket with 429.
func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// tableHandler loads the route's table, applies the province and year
// filters when the table has those columns, and returns the projected rows
// in file order. An unparsable year is ignored.
func tableHandler(outDir string, rt Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := tables.Load(r.Context(), outDir, rt.Schema)
		if errors.Is(err, tables.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
			return
		}
		if err != nil {
			zap.L().Error("api: load table", zap.String("table", rt.Schema.Name), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read table"})
			return
		}

		q := r.URL.Query()
		province := q.Get("province")
		year, yearErr := strconv.Atoi(q.Get("year"))
		filterProvince := province != "" && f.Has("province")
		filterYear := yearErr == nil && f.Has("year")

		records := make([]map[string]any, 0, len(f.Rows))
		for _, row := range f.Rows {
			if filterProvince && f.Cell(row, "province") != province {
				continue
			}
			if filterYear {
				if y, ok := f.Int(row, "year"); !ok || y != year {
					continue
				}
			}
			records = append(records, f.Record(row, rt.Columns))
		}
		rowsServed.WithLabelValues(rt.Schema.Name).Add(float64(len(records)))
		writeJSON(w, http.StatusOK, records)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
