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

// VideoRepository 封装 videos 集合的读写。
type VideoRepository struct {
	store docstore.Store
	log   *log.Helper
}

// NewVideoRepository 构造 VideoRepository。
func NewVideoRepository(store docstore.Store, logger log.Logger) *VideoRepository {
	return &VideoRepository{store: store, log: log.NewHelper(logger)}
}

// VideoCounterDelta 描述一次对视频计数器的增量。
type VideoCounterDelta struct {
	View    int64
	Like    int64
	Dislike int64
}

// IsZero 判断增量是否为空。
func (d VideoCounterDelta) IsZero() bool {
	return d.View == 0 && d.Like == 0 && d.Dislike == 0
}

// VideoListParams 描述一次按 createdAt 倒序的视频查询。
type VideoListParams struct {
	Where []docstore.Predicate
	Limit int
	After *docstore.Cursor
}

// CreatedAtDesc 是视频列表统一使用的排序：createdAt 倒序，同值按 ID 倒序。
var CreatedAtDesc = docstore.Order{Field: mappers.FieldCreatedAt, Direction: docstore.Desc}

// Get 根据 ID 查询视频。
//
// 错误处理：
//   - docstore.ErrNotFound → ErrVideoNotFound
func (r *VideoRepository) Get(ctx context.Context, videoID string) (*po.Video, error) {
	doc, err := r.store.Get(ctx, CollectionVideos, videoID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	return mappers.VideoFromDocument(doc), nil
}

// Create 写入新视频，ID 为空时由存储生成。
func (r *VideoRepository) Create(ctx context.Context, video *po.Video) (*po.Video, error) {
	id, err := r.store.Create(ctx, CollectionVideos, video.ID, mappers.VideoToFields(video))
	if err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}
	return r.Get(ctx, id)
}

// IncrementCounters 原子地应用计数增量。
func (r *VideoRepository) IncrementCounters(ctx context.Context, videoID string, delta VideoCounterDelta) error {
	if delta.IsZero() {
		return nil
	}
	var mutations []docstore.Mutation
	if delta.View != 0 {
		mutations = append(mutations, docstore.Increment(mappers.FieldViewCount, delta.View))
	}
	if delta.Like != 0 {
		mutations = append(mutations, docstore.Increment(mappers.FieldLikeCount, delta.Like))
	}
	if delta.Dislike != 0 {
		mutations = append(mutations, docstore.Increment(mappers.FieldDislikeCount, delta.Dislike))
	}
	if err := r.store.Update(ctx, CollectionVideos, videoID, mutations...); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("increment video counters %s: %w", videoID, err)
	}
	return nil
}

// SetReactionCounts 直接覆盖点赞/点踩计数（对账任务使用）。
func (r *VideoRepository) SetReactionCounts(ctx context.Context, videoID string, likes, dislikes int64) error {
	err := r.store.Update(ctx, CollectionVideos, videoID,
		docstore.Set(mappers.FieldLikeCount, likes),
		docstore.Set(mappers.FieldDislikeCount, dislikes),
	)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("set reaction counts %s: %w", videoID, err)
	}
	return nil
}

// UpdateAssociations 覆盖分类、演员、标签及其小写镜像字段。
func (r *VideoRepository) UpdateAssociations(ctx context.Context, video *po.Video) error {
	mutations := []docstore.Mutation{
		docstore.Set(mappers.FieldTitle, video.Title),
		docstore.Set(mappers.FieldCategories, video.Categories),
		docstore.Set(mappers.FieldActors, video.Actors),
		docstore.Set(mappers.FieldTags, video.Tags),
	}
	for field, value := range mappers.MirrorFields(video.Title, video.Categories, video.Actors, video.Tags) {
		mutations = append(mutations, docstore.Set(field, value))
	}
	if err := r.store.Update(ctx, CollectionVideos, video.ID, mutations...); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("update video associations %s: %w", video.ID, err)
	}
	return nil
}

// Count 返回满足条件的视频总数。
func (r *VideoRepository) Count(ctx context.Context, where ...docstore.Predicate) (int64, error) {
	total, err := r.store.Count(ctx, CollectionVideos, where...)
	if err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return total, nil
}

// List 按 createdAt 倒序查询视频，返回结果与指向最后一条的游标。
func (r *VideoRepository) List(ctx context.Context, params VideoListParams) ([]*po.Video, *docstore.Cursor, error) {
	order := CreatedAtDesc
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: CollectionVideos,
		Where:      params.Where,
		OrderBy:    &order,
		Limit:      params.Limit,
		After:      params.After,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list videos: %w", err)
	}
	videos := make([]*po.Video, 0, len(docs))
	for _, doc := range docs {
		videos = append(videos, mappers.VideoFromDocument(doc))
	}
	var cursor *docstore.Cursor
	if len(docs) > 0 {
		cursor = docstore.CursorAfter(docs[len(docs)-1], order)
	}
	return videos, cursor, nil
}
