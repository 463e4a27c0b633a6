// metrics.go — Prometheus HTTP метрики lifelog.
// Регистрирует ll_http_requests_total и ll_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ll_http_requests_total",
			Help: "Общее количество HTTP-запросов",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ll_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath заменяет идентификаторы в пути на шаблоны,
// чтобы ограничить кардинальность лейблов.
//
//	/api/v1/food/42              → /api/v1/food/{id}
//	/api/v1/files/7/download     → /api/v1/files/{id}/download
//	/api/v1/calendar/2024-03-15  → /api/v1/calendar/{date}
//	/api/v1/calendar/month/2024/3 → /api/v1/calendar/month/{year}/{month}
func normalizePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "api" || segments[1] != "v1" {
		return path
	}

	resource := segments[2]
	rest := segments[3:]
	switch {
	case len(rest) == 0:
		return path
	case resource == "calendar" && rest[0] == "month" && len(rest) == 3:
		return "/api/v1/calendar/month/{year}/{month}"
	case resource == "calendar" && len(rest) == 1 && rest[0] != "stats":
		return "/api/v1/calendar/{date}"
	case isNumeric(rest[0]):
		rest[0] = "{id}"
		return "/api/v1/" + resource + "/" + strings.Join(rest, "/")
	}
	return path
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
