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

// VisitorStatsRepository 维护 visitorStats 汇总与 visitorDaily 访问记录。
type VisitorStatsRepository struct {
	store docstore.Store
	log   *log.Helper
}

// NewVisitorStatsRepository 构造仓储。
func NewVisitorStatsRepository(store docstore.Store, logger log.Logger) *VisitorStatsRepository {
	return &VisitorStatsRepository{store: store, log: log.NewHelper(logger)}
}

// IncrementDevice 对设备类型计数与 total 各加一，文档不存在时创建。
func (r *VisitorStatsRepository) IncrementDevice(ctx context.Context, device po.DeviceType) error {
	field := mappers.FieldPC
	if device == po.DeviceMobile {
		field = mappers.FieldMobile
	}
	err := r.store.Upsert(ctx, CollectionVisitorStats, aggregateDocID,
		docstore.Increment(field, 1),
		docstore.Increment(mappers.FieldTotal, 1),
		docstore.ServerTimestamp(mappers.FieldLastUpdated),
	)
	if err != nil {
		return fmt.Errorf("increment visitor %s: %w", device, err)
	}
	return nil
}

// AppendDaily 追加一条访问记录，返回生成的文档 ID。
func (r *VisitorStatsRepository) AppendDaily(ctx context.Context, record *po.VisitorDailyRecord) (string, error) {
	id, err := r.store.Create(ctx, CollectionVisitorDaily, record.ID, mappers.VisitorDailyRecordToFields(record))
	if err != nil {
		return "", fmt.Errorf("append visitor record: %w", err)
	}
	return id, nil
}

// GetAggregate 返回访客汇总；不存在时返回零值。
func (r *VisitorStatsRepository) GetAggregate(ctx context.Context) (*po.VisitorAggregateStats, error) {
	doc, err := r.store.Get(ctx, CollectionVisitorStats, aggregateDocID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return mappers.VisitorAggregateFromDocument(nil), nil
		}
		return nil, fmt.Errorf("get visitor aggregate: %w", err)
	}
	return mappers.VisitorAggregateFromDocument(doc), nil
}

// CountDaily 统计某一天的访问记录条数。
func (r *VisitorStatsRepository) CountDaily(ctx context.Context, date string) (int64, error) {
	n, err := r.store.Count(ctx, CollectionVisitorDaily, docstore.Equals(mappers.FieldDate, date))
	if err != nil {
		return 0, fmt.Errorf("count visitor records %s: %w", date, err)
	}
	return n, nil
}

// ListDaily 返回某一天的访问记录，按时间升序。
func (r *VisitorStatsRepository) ListDaily(ctx context.Context, date string, limit int) ([]*po.VisitorDailyRecord, error) {
	order := docstore.Order{Field: mappers.FieldTimestamp, Direction: docstore.Asc}
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: CollectionVisitorDaily,
		Where:      []docstore.Predicate{docstore.Equals(mappers.FieldDate, date)},
		OrderBy:    &order,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list visitor records %s: %w", date, err)
	}
	out := make([]*po.VisitorDailyRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, mappers.VisitorDailyRecordFromDocument(doc))
	}
	return out, nil
}
