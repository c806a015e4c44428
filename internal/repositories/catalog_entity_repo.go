package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/mappers"

	"github.com/go-kratos/kratos/v2/log"
)

// CatalogEntityRepository 维护 categories / actors 集合的计数与惰性创建。
//
// 文档 ID 由名称小写化得到，并发的首次引用会收敛到同一文档：
// Create 冲突的一方回退为增量更新。
type CatalogEntityRepository struct {
	store docstore.Store
	log   *log.Helper
}

// NewCatalogEntityRepository 构造仓储。
func NewCatalogEntityRepository(store docstore.Store, logger log.Logger) *CatalogEntityRepository {
	return &CatalogEntityRepository{store: store, log: log.NewHelper(logger)}
}

// EntityID 返回名称对应的确定性文档 ID。
func EntityID(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func collectionFor(kind po.EntityKind) (string, error) {
	switch kind {
	case po.EntityCategory:
		return CollectionCategories, nil
	case po.EntityActor:
		return CollectionActors, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}
}

// Get 查询实体；不存在时返回 (nil, nil)。
func (r *CatalogEntityRepository) Get(ctx context.Context, kind po.EntityKind, name string) (*po.CatalogEntity, error) {
	collection, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.Get(ctx, collection, EntityID(name))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s %q: %w", kind, name, err)
	}
	return mappers.CatalogEntityFromDocument(kind, doc), nil
}

// IncrementOrCreate 对实体的计数字段加 delta（delta>0）；实体不存在时以 field=delta 创建。
func (r *CatalogEntityRepository) IncrementOrCreate(ctx context.Context, kind po.EntityKind, name, field string, delta int64) error {
	collection, err := collectionFor(kind)
	if err != nil {
		return err
	}
	id := EntityID(name)
	if id == "" {
		return nil
	}

	// 1. 常见路径：文档已存在，直接原子增量
	err = r.store.Update(ctx, collection, id, docstore.Increment(field, delta))
	if err == nil {
		return nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("increment %s %q %s: %w", kind, name, field, err)
	}

	// 2. 惰性创建
	fields := map[string]any{
		mappers.FieldName:       strings.TrimSpace(name),
		mappers.FieldVideoCount: int64(0),
		mappers.FieldViewCount:  int64(0),
		mappers.FieldSuggested:  false,
	}
	fields[field] = delta
	if _, err := r.store.Create(ctx, collection, id, fields); err != nil {
		if !errors.Is(err, docstore.ErrAlreadyExists) {
			return fmt.Errorf("create %s %q: %w", kind, name, err)
		}
		// 3. 并发创建失败的一方回退为增量
		r.log.WithContext(ctx).Debugf("lazy create raced: kind=%s id=%s", kind, id)
		if err := r.store.Update(ctx, collection, id, docstore.Increment(field, delta)); err != nil {
			return fmt.Errorf("increment %s %q %s after race: %w", kind, name, field, err)
		}
	}
	return nil
}

// Decrement 对实体计数字段减一，不会降到 0 以下；实体不存在时忽略。
func (r *CatalogEntityRepository) Decrement(ctx context.Context, kind po.EntityKind, name, field string) error {
	collection, err := collectionFor(kind)
	if err != nil {
		return err
	}
	id := EntityID(name)
	if id == "" {
		return nil
	}
	return r.store.RunInTransaction(ctx, func(txCtx context.Context) error {
		doc, err := r.store.Get(txCtx, collection, id)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				r.log.WithContext(ctx).Warnf("decrement skipped, entity missing: kind=%s id=%s", kind, id)
				return nil
			}
			return fmt.Errorf("get %s %q: %w", kind, name, err)
		}
		if doc.Int64(field) <= 0 {
			return nil
		}
		if err := r.store.Update(txCtx, collection, id, docstore.Increment(field, -1)); err != nil {
			return fmt.Errorf("decrement %s %q %s: %w", kind, name, field, err)
		}
		return nil
	})
}

// List 按名称升序列出实体。
func (r *CatalogEntityRepository) List(ctx context.Context, kind po.EntityKind, limit int) ([]*po.CatalogEntity, error) {
	collection, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}
	order := docstore.Order{Field: mappers.FieldName, Direction: docstore.Asc}
	docs, err := r.store.Query(ctx, docstore.Query{Collection: collection, OrderBy: &order, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	out := make([]*po.CatalogEntity, 0, len(docs))
	for _, doc := range docs {
		out = append(out, mappers.CatalogEntityFromDocument(kind, doc))
	}
	return out, nil
}
