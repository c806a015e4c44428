package httpserver

import (
	"context"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexp "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const meterName = "lingo-services-listing"

// Telemetry 聚合共享的指标仪表、TracerProvider 与 Prometheus Registry。
type Telemetry struct {
	MeterProvider      *sdkmetric.MeterProvider
	TracerProvider     *sdktrace.TracerProvider
	RequestCounter     metric.Int64Counter
	SecondsHistogram   metric.Float64Histogram
	PrometheusRegistry *prometheus.Registry
}

// NewTelemetry 构造 OpenTelemetry MeterProvider（Prometheus exporter）与 TracerProvider，并设为全局 Provider。
// 服务层仪表经 otel.GetMeterProvider() 共享同一 Registry；tracing 中间件、服务层 span 与日志的
// trace_id / span_id 取自同一个 TracerProvider。
func NewTelemetry(meta configloader.ServiceMetadata, logger log.Logger) (*Telemetry, func(), error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	exporter, err := promexp.New(
		promexp.WithRegisterer(registry),
		promexp.WithoutUnits(),
	)
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", meta.Name),
		attribute.String("service.version", meta.Version),
		attribute.String("deployment.environment", meta.Environment),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(kmetrics.DefaultSecondsHistogramView(kmetrics.DefaultServerSecondsHistogramName)),
	)
	otel.SetMeterProvider(mp)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	meter := mp.Meter(meterName)
	requestCounter, err := kmetrics.DefaultRequestsCounter(meter, kmetrics.DefaultServerRequestsCounterName)
	if err != nil {
		return nil, nil, err
	}
	secondsHistogram, err := kmetrics.DefaultSecondsHistogram(meter, kmetrics.DefaultServerSecondsHistogramName)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		helper := log.NewHelper(logger)
		if err := tp.Shutdown(ctx); err != nil {
			helper.Warnf("shutdown tracer provider: %v", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			helper.Warnf("shutdown meter provider: %v", err)
		}
	}

	return &Telemetry{
		MeterProvider:      mp,
		TracerProvider:     tp,
		RequestCounter:     requestCounter,
		SecondsHistogram:   secondsHistogram,
		PrometheusRegistry: registry,
	}, cleanup, nil
}
