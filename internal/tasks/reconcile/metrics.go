package reconcile

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type reconcileMetrics struct {
	videos   metric.Int64Counter
	duration metric.Float64Histogram
	enabled  bool
}

const (
	metricNameReconcileVideos   = "listing_reconcile_videos_total"
	metricNameReconcileDuration = "listing_reconcile_round_seconds"
)

func newReconcileMetrics(helper *log.Helper) *reconcileMetrics {
	meter := otel.GetMeterProvider().Meter("lingo-services-listing.reconcile")
	m := &reconcileMetrics{}

	var err error
	if m.videos, err = meter.Int64Counter(metricNameReconcileVideos,
		metric.WithDescription("Videos visited by the reaction counter reconciler, by outcome")); err != nil {
		helper.Warnf("reconcile metrics: register videos counter: %v", err)
		return m
	}
	if m.duration, err = meter.Float64Histogram(metricNameReconcileDuration,
		metric.WithDescription("Duration of a full reconcile round"), metric.WithUnit("s")); err != nil {
		helper.Warnf("reconcile metrics: register duration histogram: %v", err)
	}
	m.enabled = true
	return m
}

func (m *reconcileMetrics) recordRound(ctx context.Context, res Result, elapsed time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.videos.Add(ctx, int64(res.Scanned-res.Corrected-res.Failed), metric.WithAttributes(attribute.String("outcome", "consistent")))
	m.videos.Add(ctx, int64(res.Corrected), metric.WithAttributes(attribute.String("outcome", "corrected")))
	m.videos.Add(ctx, int64(res.Failed), metric.WithAttributes(attribute.String("outcome", "failed")))
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds())
	}
}
