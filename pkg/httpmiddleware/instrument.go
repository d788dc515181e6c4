package httpmiddleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const meterName = "github.com/xenking/storefront/pkg/httpmiddleware"

// Instrument traces every request with otelhttp and records a request
// counter and a duration histogram labelled by route, method and status.
// Labeler must run inside the mux chain for route labels to be set.
func Instrument(service string, tp trace.TracerProvider, mp metric.MeterProvider) (Middleware, error) {
	meter := mp.Meter(meterName)
	requests, err := meter.Int64Counter("storefront.http.requests",
		metric.WithDescription("Number of served HTTP requests"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("storefront.http.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ri, r := withRoute(r)
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			attrs := metric.WithAttributes(
				attribute.String("http.route", ri.String()),
				attribute.String("http.request.method", r.Method),
				attribute.Int("http.response.status_code", sw.status),
			)
			requests.Add(r.Context(), 1, attrs)
			duration.Record(r.Context(), time.Since(start).Seconds(), attrs)
		})
		return otelhttp.NewHandler(h, service,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		)
	}, nil
}

// Labeler records the pattern matched by the mux. It must be the innermost
// middleware so it wraps the mux directly.
func Labeler() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ri, r := withRoute(r)
			next.ServeHTTP(w, r)
			if r.Pattern == "" {
				return
			}
			ri.pattern = r.Pattern
			trace.SpanFromContext(r.Context()).SetName(r.Pattern)
			if l, ok := otelhttp.LabelerFromContext(r.Context()); ok {
				l.Add(attribute.String("http.route", r.Pattern))
			}
		})
	}
}
