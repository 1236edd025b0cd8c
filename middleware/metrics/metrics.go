// Package metrics expõe as métricas HTTP do gateway no formato Prometheus,
// com os mesmos nomes usados pelo backend da loja.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "flowershop-gateway/middleware/metrics"

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 1.0, 2.5, 5, 10}

type HTTPMetrics struct {
	requests       *prometheus.CounterVec
	responses      *prometheus.CounterVec
	exceptions     *prometheus.CounterVec
	inProgress     *prometheus.GaugeVec
	duration       *prometheus.HistogramVec
	durationLegacy *prometheus.HistogramVec
}

// New registra as métricas em reg. Todas levam o label constante app_name.
func New(reg prometheus.Registerer, appName string) (*HTTPMetrics, error) {
	app := prometheus.Labels{"app_name": appName}
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total", Help: "Total number of requests", ConstLabels: app,
		}, []string{"method", "path", "handler", "status", "status_code"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_responses_total", Help: "Total number of responses", ConstLabels: app,
		}, []string{"status_code", "status", "path", "handler"}),
		exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_exceptions_total", Help: "Total number of exceptions", ConstLabels: app,
		}, []string{"path", "handler"}),
		inProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_requests_in_progress", Help: "HTTP requests in progress", ConstLabels: app,
		}, []string{"method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_requests_duration_seconds", Help: "Request duration in seconds (plural name)",
			ConstLabels: app, Buckets: durationBuckets,
		}, []string{"path", "handler", "method"}),
		durationLegacy: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_request_duration_seconds", Help: "Request duration in seconds (singular / legacy name)",
			ConstLabels: app, Buckets: durationBuckets,
		}, []string{"path", "handler", "method"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.responses, m.exceptions, m.inProgress, m.duration, m.durationLegacy} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Middleware mede cada request e abre o span "http.request".
//
// path/handler usam o padrão de rota do chi ("/users/{id}", "/*"), nunca o
// path bruto: o gateway faz proxy de qualquer URL.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, "http.request", trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		))
		defer span.End()
		r = r.WithContext(ctx)

		inProgress := m.inProgress.WithLabelValues(r.Method)
		inProgress.Inc()
		defer inProgress.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			if rec := recover(); rec != nil {
				route := routePattern(r)
				m.exceptions.WithLabelValues(route, route).Inc()
				m.observe(r, http.StatusInternalServerError, time.Since(start))
				span.SetStatus(codes.Error, "panic")
				panic(rec)
			}
		}()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.observe(r, status, time.Since(start))

		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}

func (m *HTTPMetrics) observe(r *http.Request, status int, d time.Duration) {
	route := routePattern(r)
	code := strconv.Itoa(status)
	class := strconv.Itoa(status/100) + "xx"

	m.requests.WithLabelValues(r.Method, route, route, class, code).Inc()
	m.responses.WithLabelValues(code, class, route, route).Inc()
	m.duration.WithLabelValues(route, route, r.Method).Observe(d.Seconds())
	m.durationLegacy.WithLabelValues(route, route, r.Method).Observe(d.Seconds())
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
