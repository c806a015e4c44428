package services

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "lingo-services-listing.services"

const (
	metricNameToggle         = "listing_toggle_total"
	metricNameCounterFailure = "listing_counter_write_failure_total"
	metricNameRatioRecompute = "listing_ratio_recompute_total"
	metricNameVisitGate      = "listing_visit_gate_total"
	metricNameSearchMerged   = "listing_search_merged_candidates"
)

// serviceMetrics 汇总服务层 OpenTelemetry 指标；注册失败时降级为空操作。
type serviceMetrics struct {
	toggle         metric.Int64Counter
	counterFailure metric.Int64Counter
	ratioRecompute metric.Int64Counter
	visitGate      metric.Int64Counter
	searchMerged   metric.Int64Histogram
	enabled        bool
}

func newServiceMetrics(helper *log.Helper) *serviceMetrics {
	m := &serviceMetrics{}
	meter := otel.GetMeterProvider().Meter(meterName)
	if meter == nil {
		return m
	}

	var err error
	if m.toggle, err = meter.Int64Counter(metricNameToggle,
		metric.WithDescription("Interaction toggles by action and outcome")); err != nil {
		helper.Warnf("service metrics: register toggle counter: %v", err)
		return m
	}
	if m.counterFailure, err = meter.Int64Counter(metricNameCounterFailure,
		metric.WithDescription("Counter writes that failed after retries")); err != nil {
		helper.Warnf("service metrics: register counter failure counter: %v", err)
	}
	if m.ratioRecompute, err = meter.Int64Counter(metricNameRatioRecompute,
		metric.WithDescription("Stored ratio recomputations by outcome")); err != nil {
		helper.Warnf("service metrics: register ratio counter: %v", err)
	}
	if m.visitGate, err = meter.Int64Counter(metricNameVisitGate,
		metric.WithDescription("Visit gating decisions by reason")); err != nil {
		helper.Warnf("service metrics: register visit counter: %v", err)
	}
	if m.searchMerged, err = meter.Int64Histogram(metricNameSearchMerged,
		metric.WithDescription("Merged candidate count per search")); err != nil {
		helper.Warnf("service metrics: register search histogram: %v", err)
	}
	m.enabled = true
	return m
}

func (m *serviceMetrics) recordToggle(ctx context.Context, action, outcome string) {
	if m == nil || !m.enabled || m.toggle == nil {
		return
	}
	m.toggle.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func (m *serviceMetrics) recordCounterFailure(ctx context.Context, op string) {
	if m == nil || !m.enabled || m.counterFailure == nil {
		return
	}
	m.counterFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *serviceMetrics) recordRatio(ctx context.Context, outcome string) {
	if m == nil || !m.enabled || m.ratioRecompute == nil {
		return
	}
	m.ratioRecompute.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *serviceMetrics) recordVisit(ctx context.Context, reason, device string) {
	if m == nil || !m.enabled || m.visitGate == nil {
		return
	}
	m.visitGate.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.String("device", device),
	))
}

func (m *serviceMetrics) recordSearch(ctx context.Context, merged int) {
	if m == nil || !m.enabled || m.searchMerged == nil {
		return
	}
	m.searchMerged.Record(ctx, int64(merged))
}
