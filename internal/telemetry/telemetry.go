// Package telemetry wires OpenTelemetry traces and metrics for jirasync runs.
//
// Everything is off unless JIRASYNC_OTEL_ENABLED=true; the global providers
// are then no-ops and instruments cost nothing.
//
//	JIRASYNC_OTEL_ENABLED=true               turn telemetry on
//	JIRASYNC_OTEL_STDOUT=true                spans and metrics to stderr
//	OTEL_EXPORTER_OTLP_METRICS_ENDPOINT=...  OTLP/HTTP metrics (host:port)
//	OTEL_EXPORTER_OTLP_ENDPOINT=...          fallback for the above
//
// Spans only go to stderr. A CI run usually ships metrics over OTLP so
// transition counts and Jira latency land next to the pipeline's own.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/steveyegge/jirasync"

// Settings selects the exporters for one run.
type Settings struct {
	Enabled      bool
	Stdout       bool
	OTLPEndpoint string

	// Writer receives stdout exports; nil means os.Stderr.
	Writer io.Writer

	// MetricInterval is the export period; zero means 30s. The final
	// flush in Shutdown exports whatever a short run recorded.
	MetricInterval time.Duration
}

// SettingsFromEnv reads the variables listed in the package comment.
func SettingsFromEnv(getenv func(string) string) Settings {
	endpoint := firstNonEmpty(
		getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
		getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	)
	return Settings{
		Enabled:      getenv("JIRASYNC_OTEL_ENABLED") == "true",
		Stdout:       getenv("JIRASYNC_OTEL_STDOUT") == "true",
		OTLPEndpoint: endpoint,
	}
}

// Run identifies the process in exported resources.
type Run struct {
	Service    string
	Version    string
	ID         string
	Repository string
}

var shutdownFns []func(context.Context) error

// Init installs the global providers for s. With telemetry disabled, or
// enabled with no exporter configured, the providers are no-ops.
func Init(ctx context.Context, s Settings, run Run) error {
	if !s.Enabled || (!s.Stdout && s.OTLPEndpoint == "") {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(run.Service),
		semconv.ServiceVersionKey.String(run.Version),
	}
	if run.ID != "" {
		attrs = append(attrs, attribute.String("jirasync.run", run.ID))
	}
	if run.Repository != "" {
		attrs = append(attrs, attribute.String("vcs.repository", run.Repository))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...), resource.WithHost())
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	w := s.Writer
	if w == nil {
		w = os.Stderr
	}

	if s.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(w))
		if err != nil {
			return fmt.Errorf("telemetry: trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exp),
		)
		otel.SetTracerProvider(tp)
		shutdownFns = append(shutdownFns, tp.Shutdown)
	} else {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
	}

	interval := s.MetricInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if s.Stdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return fmt.Errorf("telemetry: stdout metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))))
	}
	if s.OTLPEndpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, s.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("telemetry: otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)
	return nil
}

// Tracer returns a tracer for name, or for the jirasync scope when empty.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter for name, or for the jirasync scope when empty.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes and stops the providers installed by Init.
func Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range shutdownFns {
		errs = append(errs, fn(ctx))
	}
	shutdownFns = nil
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
