package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/mappers"

	"github.com/go-kratos/kratos/v2/log"
)

// AdEventKind 区分曝光与点击。
type AdEventKind string

const (
	// AdImpression 曝光。
	AdImpression AdEventKind = "impression"
	// AdClick 点击。
	AdClick AdEventKind = "click"
)

// totalField 返回汇总文档上的总计字段。
func (k AdEventKind) totalField() string {
	if k == AdClick {
		return mappers.FieldTotalClicks
	}
	return mappers.FieldTotalImpressions
}

// counterField 返回日桶 / 广告位 / 素材上的计数字段。
func (k AdEventKind) counterField() string {
	if k == AdClick {
		return mappers.FieldClicks
	}
	return mappers.FieldImpressions
}

// AdStatsRepository 维护 adStats、adDailyStats 与 ads 三个集合。
type AdStatsRepository struct {
	store docstore.Store
	log   *log.Helper
}

// NewAdStatsRepository 构造仓储。
func NewAdStatsRepository(store docstore.Store, logger log.Logger) *AdStatsRepository {
	return &AdStatsRepository{store: store, log: log.NewHelper(logger)}
}

// IncrementAggregate 对汇总文档的总计与广告位计数加一，文档不存在时创建。
func (r *AdStatsRepository) IncrementAggregate(ctx context.Context, kind AdEventKind, position string) error {
	err := r.store.Upsert(ctx, CollectionAdStats, aggregateDocID,
		docstore.Increment(kind.totalField(), 1),
		docstore.Increment(positionPath(position, kind), 1),
		docstore.ServerTimestamp(mappers.FieldLastUpdated),
	)
	if err != nil {
		return fmt.Errorf("increment ad aggregate %s: %w", kind, err)
	}
	return nil
}

// IncrementPageViews 对总页面浏览数加一。
func (r *AdStatsRepository) IncrementPageViews(ctx context.Context) error {
	err := r.store.Upsert(ctx, CollectionAdStats, aggregateDocID,
		docstore.Increment(mappers.FieldTotalPageViews, 1),
		docstore.ServerTimestamp(mappers.FieldLastUpdated),
	)
	if err != nil {
		return fmt.Errorf("increment page views: %w", err)
	}
	return nil
}

// GetAggregate 返回汇总文档；不存在时返回零值。
func (r *AdStatsRepository) GetAggregate(ctx context.Context) (*po.AdAggregateStats, error) {
	doc, err := r.store.Get(ctx, CollectionAdStats, aggregateDocID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return mappers.AdAggregateFromDocument(nil), nil
		}
		return nil, fmt.Errorf("get ad aggregate: %w", err)
	}
	return mappers.AdAggregateFromDocument(doc), nil
}

// SetRatios 覆盖汇总文档上存储的比率字段。
func (r *AdStatsRepository) SetRatios(ctx context.Context, ctr, impressionsPerPage float64) error {
	err := r.store.Upsert(ctx, CollectionAdStats, aggregateDocID,
		docstore.Set(mappers.FieldCTR, ctr),
		docstore.Set(mappers.FieldImpressionsPerPage, impressionsPerPage),
	)
	if err != nil {
		return fmt.Errorf("set ad ratios: %w", err)
	}
	return nil
}

// EnsureDaily 以零值广告位创建日桶；已存在时不做任何修改。
func (r *AdStatsRepository) EnsureDaily(ctx context.Context, date string, positions []string) error {
	_, err := r.store.Create(ctx, CollectionAdDailyStats, date, map[string]any{
		mappers.FieldDate:          date,
		mappers.FieldClicks:        int64(0),
		mappers.FieldImpressions:   int64(0),
		mappers.FieldPositionStats: mappers.ZeroPositionStats(positions),
	})
	if err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
		return fmt.Errorf("ensure daily bucket %s: %w", date, err)
	}
	return nil
}

// IncrementDaily 对日桶的计数与广告位计数加一。
func (r *AdStatsRepository) IncrementDaily(ctx context.Context, date string, kind AdEventKind, position string) error {
	err := r.store.Upsert(ctx, CollectionAdDailyStats, date,
		docstore.Set(mappers.FieldDate, date),
		docstore.Increment(kind.counterField(), 1),
		docstore.Increment(positionPath(position, kind), 1),
	)
	if err != nil {
		return fmt.Errorf("increment daily bucket %s: %w", date, err)
	}
	return nil
}

// ListDaily 返回 [from, toExclusive) 区间内的日桶，按日期升序。
func (r *AdStatsRepository) ListDaily(ctx context.Context, from, toExclusive string) ([]*po.AdDailyStats, error) {
	order := docstore.Order{Field: mappers.FieldDate, Direction: docstore.Asc}
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: CollectionAdDailyStats,
		Where:      []docstore.Predicate{docstore.Range(mappers.FieldDate, from, toExclusive)},
		OrderBy:    &order,
	})
	if err != nil {
		return nil, fmt.Errorf("list daily buckets: %w", err)
	}
	out := make([]*po.AdDailyStats, 0, len(docs))
	for _, doc := range docs {
		out = append(out, mappers.AdDailyFromDocument(doc))
	}
	return out, nil
}

// IncrementAd 对单个广告素材计数加一。
func (r *AdStatsRepository) IncrementAd(ctx context.Context, adID string, kind AdEventKind) error {
	err := r.store.Upsert(ctx, CollectionAds, adID,
		docstore.Increment(kind.counterField(), 1),
		docstore.ServerTimestamp(mappers.FieldLastUpdated),
	)
	if err != nil {
		return fmt.Errorf("increment ad %s %s: %w", adID, kind, err)
	}
	return nil
}

// GetAd 返回单个广告素材计数；不存在时返回零值。
func (r *AdStatsRepository) GetAd(ctx context.Context, adID string) (*po.AdCounters, error) {
	doc, err := r.store.Get(ctx, CollectionAds, adID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return mappers.AdCountersFromDocument(adID, nil), nil
		}
		return nil, fmt.Errorf("get ad %s: %w", adID, err)
	}
	return mappers.AdCountersFromDocument(adID, doc), nil
}

func positionPath(position string, kind AdEventKind) string {
	return mappers.FieldPositionStats + "." + position + "." + kind.counterField()
}
