package trace

import (
	"context"
	"log/slog"
	"net/http"

	"ventwave/internal/secret"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "ventwave"

// Config describes the OTLP/HTTP collector spans are exported to.
type Config struct {
	Endpoint    string       // host:port
	URLPath     string       // defaults to /v1/traces
	Insecure    bool         // plain HTTP
	APIKey      secret.Value // bearer token, optional
	SampleRatio float64      // fraction of root spans kept; 0 keeps all
}

func (c Config) exporterOptions() []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	if c.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(c.Endpoint))
	}
	if c.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(c.URLPath))
	}
	if c.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if !c.APIKey.IsZero() {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Bearer " + c.APIKey.Reveal(),
		}))
	}
	return append(opts, otlptracehttp.WithHTTPClient(&http.Client{
		Transport: exportTransport{inner: http.DefaultTransport},
	}))
}

func (c Config) sampler() sdktrace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

type errorHandler struct{}

func (errorHandler) Handle(err error) {
	slog.Error("otel error", "error", err)
}

// Init installs a global tracer provider exporting to cfg. Spans are
// exported synchronously so collector failures show up in the log at once.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	otel.SetErrorHandler(errorHandler{})

	slog.Debug("otlp exporter config",
		"endpoint", cfg.Endpoint,
		"url_path", cfg.URLPath,
		"insecure", cfg.Insecure,
		"api_key", cfg.APIKey,
		"sample_ratio", cfg.SampleRatio,
	)

	exporter, err := otlptracehttp.New(ctx, cfg.exporterOptions()...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// exportTransport logs collector round trips at debug level.
type exportTransport struct {
	inner http.RoundTripper
}

func (t exportTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		slog.Error("otlp export failed", "url", req.URL.String(), "error", err)
		return resp, err
	}
	if resp.StatusCode >= 300 {
		slog.Warn("otlp export rejected", "url", req.URL.String(), "status", resp.StatusCode)
	} else {
		slog.Debug("otlp export ok", "url", req.URL.String(), "bytes", req.ContentLength)
	}
	return resp, nil
}

// Tracer returns the ventwave tracer. Until Init runs it is backed by the
// global no-op provider.
func Tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}
