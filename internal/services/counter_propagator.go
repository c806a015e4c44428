package services

import (
	"context"
	"strings"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/models/vo"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/mappers"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
)

// CatalogEntityStore 定义分类 / 演员计数的维护。
type CatalogEntityStore interface {
	IncrementOrCreate(ctx context.Context, kind po.EntityKind, name, field string, delta int64) error
	Decrement(ctx context.Context, kind po.EntityKind, name, field string) error
}

// CounterPropagator 把播放与关联事件同步到视频、分类、演员上的冗余计数。
// 每个逻辑事件对每个计数恰好 ±1，全部经原子增量完成。
type CounterPropagator struct {
	videos   VideoCounterStore
	entities CatalogEntityStore
	retry    RetryPolicy
	log      *log.Helper
	metrics  *serviceMetrics
}

// NewCounterPropagator 构造计数同步器。
func NewCounterPropagator(videos VideoCounterStore, entities CatalogEntityStore, logger log.Logger) *CounterPropagator {
	helper := log.NewHelper(logger)
	return &CounterPropagator{
		videos:   videos,
		entities: entities,
		retry:    DefaultRetryPolicy,
		log:      helper,
		metrics:  newServiceMetrics(helper),
	}
}

// WithRetryPolicy 替换增量写入的重试策略。
func (p *CounterPropagator) WithRetryPolicy(policy RetryPolicy) *CounterPropagator {
	p.retry = policy
	return p
}

// RecordView 记录一次播放：视频 viewCount +1，所属每个分类 viewCount +1（不存在时以 1 创建）。
func (p *CounterPropagator) RecordView(ctx context.Context, videoID string) (*vo.ViewRecorded, error) {
	ctx, span := startSpan(ctx, "CounterPropagator.RecordView", attribute.String("video_id", videoID))
	recorded, err := p.recordView(ctx, videoID)
	endSpan(span, err)
	return recorded, err
}

func (p *CounterPropagator) recordView(ctx context.Context, videoID string) (*vo.ViewRecorded, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, invalidArgument("video_id is required")
	}

	video, err := p.videos.Get(ctx, videoID)
	if err != nil {
		return nil, mapStoreError(err, ReasonStoreUnavailable, "failed to load video")
	}

	err = retryWrite(ctx, p.retry, func() error {
		return p.videos.IncrementCounters(ctx, videoID, repositories.VideoCounterDelta{View: 1})
	})
	if err != nil {
		p.metrics.recordCounterFailure(ctx, "video_view")
		p.log.WithContext(ctx).Errorf("record view failed: video_id=%s err=%v", videoID, err)
		return nil, mapStoreError(err, ReasonStoreUnavailable, "failed to record view")
	}

	// 分类计数失败不回滚视频计数，由调用方感知并重试对应分类
	for _, name := range uniqueNames(video.Categories) {
		err := retryWrite(ctx, p.retry, func() error {
			return p.entities.IncrementOrCreate(ctx, po.EntityCategory, name, mappers.FieldViewCount, 1)
		})
		if err != nil {
			p.metrics.recordCounterFailure(ctx, "category_view")
			p.log.WithContext(ctx).Errorf("propagate view to category failed: video_id=%s category=%s err=%v", videoID, name, err)
			return nil, mapStoreError(err, ReasonStoreUnavailable, "failed to propagate view to category")
		}
	}

	return &vo.ViewRecorded{VideoID: videoID, ViewCount: video.ViewCount + 1}, nil
}

// AttachAssociation 某视频开始引用 name：videoCount +1，实体不存在时以 videoCount=1 创建。
func (p *CounterPropagator) AttachAssociation(ctx context.Context, kind po.EntityKind, name string) error {
	if err := validateAssociation(kind, name); err != nil {
		return err
	}
	err := retryWrite(ctx, p.retry, func() error {
		return p.entities.IncrementOrCreate(ctx, kind, name, mappers.FieldVideoCount, 1)
	})
	if err != nil {
		p.metrics.recordCounterFailure(ctx, "attach_"+string(kind))
		return mapStoreError(err, ReasonCatalogFailed, "failed to attach association")
	}
	return nil
}

// DetachAssociation 某视频不再引用 name：videoCount -1（不低于 0）。
func (p *CounterPropagator) DetachAssociation(ctx context.Context, kind po.EntityKind, name string) error {
	if err := validateAssociation(kind, name); err != nil {
		return err
	}
	err := retryWrite(ctx, p.retry, func() error {
		return p.entities.Decrement(ctx, kind, name, mappers.FieldVideoCount)
	})
	if err != nil {
		p.metrics.recordCounterFailure(ctx, "detach_"+string(kind))
		return mapStoreError(err, ReasonCatalogFailed, "failed to detach association")
	}
	return nil
}

func validateAssociation(kind po.EntityKind, name string) error {
	if kind != po.EntityCategory && kind != po.EntityActor {
		return invalidArgument("unknown entity kind %q", kind)
	}
	if strings.TrimSpace(name) == "" {
		return invalidArgument("entity name is required")
	}
	return nil
}

// uniqueNames 按首次出现顺序去重（大小写不敏感），与实体 ID 的归一化一致。
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		id := repositories.EntityID(name)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, name)
	}
	return out
}
