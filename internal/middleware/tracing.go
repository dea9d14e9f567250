package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing opens a server span per request. otelhttp names the span from
// the raw path at start and renames it with the same formatter once the
// router has set r.Pattern, so matched requests end up as
// "METHOD /route/{pattern}".
func Tracing(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			if pattern := routePattern(r); pattern != "" {
				trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("http.route", pattern))
			}
		})
		return otelhttp.NewHandler(routed, service,
			otelhttp.WithSpanNameFormatter(spanName),
		)
	}
}

func spanName(_ string, r *http.Request) string {
	if pattern := routePattern(r); pattern != "" {
		return r.Method + " " + pattern
	}
	return r.Method + " " + r.URL.Path
}

// routePattern prefers chi's joined pattern: r.Pattern only holds the
// innermost sub-router's part.
func routePattern(r *http.Request) string {
	if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
		return pattern
	}
	return r.Pattern
}
