package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/models/vo"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
)

// AdStatsStore 定义广告统计三个集合的读写。
type AdStatsStore interface {
	IncrementAggregate(ctx context.Context, kind repositories.AdEventKind, position string) error
	IncrementPageViews(ctx context.Context) error
	GetAggregate(ctx context.Context) (*po.AdAggregateStats, error)
	SetRatios(ctx context.Context, ctr, impressionsPerPage float64) error
	EnsureDaily(ctx context.Context, date string, positions []string) error
	IncrementDaily(ctx context.Context, date string, kind repositories.AdEventKind, position string) error
	ListDaily(ctx context.Context, from, toExclusive string) ([]*po.AdDailyStats, error)
	IncrementAd(ctx context.Context, adID string, kind repositories.AdEventKind) error
}

const (
	dateLayout       = "2006-01-02"
	defaultStatsDays = 7
	maxStatsDays     = 366
)

// 广告位名称会成为字段路径的一段，只允许安全字符。
var positionPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// AdEventInput 是一次广告曝光 / 点击。
type AdEventInput struct {
	AdID     string
	Position string
	// PageView 为 true 时同时记录一次页面浏览（曝光随页面渲染上报的场景）。
	PageView bool
}

// MetricsAggregator 维护广告曝光 / 点击的汇总、日桶与派生比率。
//
// 计数全部为原子增量；存储的 ctr / impressionsPerPage 在事务内基于最新计数重算，
// 读取接口另行由计数现算比率，调用方不会看到陈旧值。
type MetricsAggregator struct {
	tx        TxRunner
	stats     AdStatsStore
	location  *time.Location
	positions []string
	clock     func() time.Time
	retry     RetryPolicy
	log       *log.Helper
	metrics   *serviceMetrics
}

// NewMetricsAggregator 构造广告统计服务。时区非法时回退到 UTC。
func NewMetricsAggregator(tx TxRunner, stats AdStatsStore, cfg configloader.MetricsConfig, logger log.Logger) *MetricsAggregator {
	helper := log.NewHelper(logger)
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil || cfg.TimeZone == "" {
		if cfg.TimeZone != "" {
			helper.Warnf("invalid metrics time zone %q, falling back to UTC: %v", cfg.TimeZone, err)
		}
		loc = time.UTC
	}
	return &MetricsAggregator{
		tx:        tx,
		stats:     stats,
		location:  loc,
		positions: append([]string(nil), cfg.AdPositions...),
		clock:     time.Now,
		retry:     DefaultRetryPolicy,
		log:       helper,
		metrics:   newServiceMetrics(helper),
	}
}

// WithClock 替换时钟。
func (a *MetricsAggregator) WithClock(fn func() time.Time) *MetricsAggregator {
	if fn != nil {
		a.clock = fn
	}
	return a
}

// WithRetryPolicy 替换增量写入的重试策略。
func (a *MetricsAggregator) WithRetryPolicy(policy RetryPolicy) *MetricsAggregator {
	a.retry = policy
	return a
}

// DayKey 返回 t 在配置时区下的日桶键（YYYY-MM-DD）。
func (a *MetricsAggregator) DayKey(t time.Time) string {
	return t.In(a.location).Format(dateLayout)
}

// RecordImpression 记录一次广告曝光。
func (a *MetricsAggregator) RecordImpression(ctx context.Context, in AdEventInput) (*vo.AdEventRecorded, error) {
	return a.record(ctx, repositories.AdImpression, in)
}

// RecordClick 记录一次广告点击。
func (a *MetricsAggregator) RecordClick(ctx context.Context, in AdEventInput) (*vo.AdEventRecorded, error) {
	return a.record(ctx, repositories.AdClick, in)
}

// RecordPageView 页面浏览数 +1；impressionsPerPage 在下一次曝光时重算。
func (a *MetricsAggregator) RecordPageView(ctx context.Context) error {
	ctx, span := startSpan(ctx, "MetricsAggregator.RecordPageView")
	err := a.recordPageView(ctx)
	endSpan(span, err)
	return err
}

func (a *MetricsAggregator) recordPageView(ctx context.Context) error {
	err := retryWrite(ctx, a.retry, func() error { return a.stats.IncrementPageViews(ctx) })
	if err != nil {
		a.metrics.recordCounterFailure(ctx, "page_view")
		return mapStoreError(err, ReasonMetricsFailed, "failed to record page view")
	}
	return nil
}

func (a *MetricsAggregator) record(ctx context.Context, kind repositories.AdEventKind, in AdEventInput) (*vo.AdEventRecorded, error) {
	ctx, span := startSpan(ctx, "MetricsAggregator.RecordAdEvent", attribute.String("kind", string(kind)), attribute.String("position", in.Position))
	recorded, err := a.recordEvent(ctx, kind, in)
	endSpan(span, err)
	return recorded, err
}

func (a *MetricsAggregator) recordEvent(ctx context.Context, kind repositories.AdEventKind, in AdEventInput) (*vo.AdEventRecorded, error) {
	adID := strings.TrimSpace(in.AdID)
	position := strings.TrimSpace(in.Position)
	if adID == "" {
		return nil, invalidArgument("ad_id is required")
	}
	if !positionPattern.MatchString(position) {
		return nil, invalidArgument("invalid ad position %q", in.Position)
	}
	date := a.DayKey(a.clock())

	if in.PageView {
		if err := a.RecordPageView(ctx); err != nil {
			return nil, err
		}
	}

	// 1. 汇总：总计与广告位计数
	if err := a.increment(ctx, "ad_aggregate", func() error {
		return a.stats.IncrementAggregate(ctx, kind, position)
	}); err != nil {
		return nil, err
	}

	// 2. 日桶：首个事件以零值广告位创建，再增量
	if err := a.increment(ctx, "ad_daily", func() error {
		if err := a.stats.EnsureDaily(ctx, date, a.positions); err != nil {
			return err
		}
		return a.stats.IncrementDaily(ctx, date, kind, position)
	}); err != nil {
		return nil, err
	}

	// 3. 单个素材计数
	if err := a.increment(ctx, "ad_creative", func() error {
		return a.stats.IncrementAd(ctx, adID, kind)
	}); err != nil {
		return nil, err
	}

	// 4. 重算存储的比率；失败只影响存储值的新鲜度
	if err := a.RecomputeRatios(ctx); err != nil {
		a.log.WithContext(ctx).Warnf("recompute ad ratios failed: %v", err)
	}

	return &vo.AdEventRecorded{AdID: adID, Position: position, Date: date}, nil
}

func (a *MetricsAggregator) increment(ctx context.Context, op string, fn func() error) error {
	if err := retryWrite(ctx, a.retry, fn); err != nil {
		a.metrics.recordCounterFailure(ctx, op)
		a.log.WithContext(ctx).Errorf("%s increment failed: %v", op, err)
		return mapStoreError(err, ReasonMetricsFailed, "failed to record ad event")
	}
	return nil
}

// RecomputeRatios 在事务内重新读取总计并写回 ctr 与 impressionsPerPage。
// 每次尝试都读取最新计数，不会回写陈旧的计算结果。
func (a *MetricsAggregator) RecomputeRatios(ctx context.Context) error {
	err := retryWrite(ctx, a.retry, func() error {
		return a.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
			agg, err := a.stats.GetAggregate(txCtx)
			if err != nil {
				return err
			}
			ctr := ClickThroughRate(agg.TotalClicks, agg.TotalImpressions)
			ipp := ImpressionsPerPage(agg.TotalImpressions, agg.TotalPageViews)
			if ctr == agg.CTR && ipp == agg.ImpressionsPerPage {
				return nil
			}
			return a.stats.SetRatios(txCtx, ctr, ipp)
		})
	})
	if err != nil {
		a.metrics.recordRatio(ctx, "failed")
		return err
	}
	a.metrics.recordRatio(ctx, "ok")
	return nil
}

// AdStatsQuery 指定日桶区间（含两端，YYYY-MM-DD）；为空时取最近 7 天。
type AdStatsQuery struct {
	From string
	To   string
}

// GetAdStats 返回汇总、广告位与日桶统计，比率由计数现算。
func (a *MetricsAggregator) GetAdStats(ctx context.Context, q AdStatsQuery) (*vo.AdStatsReport, error) {
	from, toExclusive, err := a.resolveRange(q)
	if err != nil {
		return nil, err
	}

	agg, err := a.stats.GetAggregate(ctx)
	if err != nil {
		return nil, mapStoreError(err, ReasonMetricsFailed, "failed to load ad stats")
	}
	daily, err := a.stats.ListDaily(ctx, from, toExclusive)
	if err != nil {
		return nil, mapStoreError(err, ReasonMetricsFailed, "failed to load daily ad stats")
	}

	report := &vo.AdStatsReport{
		TotalClicks:        agg.TotalClicks,
		TotalImpressions:   agg.TotalImpressions,
		TotalPageViews:     agg.TotalPageViews,
		CTR:                ClickThroughRate(agg.TotalClicks, agg.TotalImpressions),
		ImpressionsPerPage: ImpressionsPerPage(agg.TotalImpressions, agg.TotalPageViews),
		StoredCTR:          agg.CTR,
		Positions:          vo.PositionList(agg.PositionStats, ClickThroughRate),
		Daily:              make([]vo.DailyAdStats, 0, len(daily)),
		LastUpdated:        agg.LastUpdated,
	}
	for _, d := range daily {
		report.Daily = append(report.Daily, vo.DailyAdStats{
			Date:        d.Date,
			Clicks:      d.Clicks,
			Impressions: d.Impressions,
			CTR:         ClickThroughRate(d.Clicks, d.Impressions),
			Positions:   vo.PositionList(d.PositionStats, ClickThroughRate),
		})
	}
	return report, nil
}

func (a *MetricsAggregator) resolveRange(q AdStatsQuery) (string, string, error) {
	today := a.clock().In(a.location)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, a.location)

	to := today
	if q.To != "" {
		parsed, err := time.ParseInLocation(dateLayout, q.To, a.location)
		if err != nil {
			return "", "", invalidArgument("invalid to date %q", q.To)
		}
		to = parsed
	}
	from := to.AddDate(0, 0, -(defaultStatsDays - 1))
	if q.From != "" {
		parsed, err := time.ParseInLocation(dateLayout, q.From, a.location)
		if err != nil {
			return "", "", invalidArgument("invalid from date %q", q.From)
		}
		from = parsed
	}
	if from.After(to) {
		return "", "", invalidArgument("from must not be after to")
	}
	if to.Sub(from) > maxStatsDays*24*time.Hour {
		return "", "", invalidArgument("date range exceeds %d days", maxStatsDays)
	}
	return from.Format(dateLayout), to.AddDate(0, 0, 1).Format(dateLayout), nil
}
