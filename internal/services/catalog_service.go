package services

import (
	"context"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/models/vo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// CatalogVideoStore 定义管理端写入视频所需的持久化行为。
type CatalogVideoStore interface {
	Get(ctx context.Context, videoID string) (*po.Video, error)
	Create(ctx context.Context, video *po.Video) (*po.Video, error)
	UpdateAssociations(ctx context.Context, video *po.Video) error
}

// CreateVideoInput 表示创建视频的输入参数。
type CreateVideoInput struct {
	VideoID      string
	Title        string
	Description  string
	ThumbnailURL string
	Categories   []string
	Actors       []string
	Tags         []string
}

// UpdateAssociationsInput 表示更新视频关联时的可选字段；nil 表示不修改。
type UpdateAssociationsInput struct {
	VideoID    string
	Title      *string
	Categories *[]string
	Actors     *[]string
	Tags       *[]string
}

// CatalogService 是管理端写入视频的入口：维护小写镜像字段，
// 并通过 CounterPropagator 同步分类 / 演员的 videoCount。
type CatalogService struct {
	videos     CatalogVideoStore
	propagator *CounterPropagator
	clock      func() time.Time
	log        *log.Helper
}

// NewCatalogService 构造目录写服务。
func NewCatalogService(videos CatalogVideoStore, propagator *CounterPropagator, logger log.Logger) *CatalogService {
	return &CatalogService{
		videos:     videos,
		propagator: propagator,
		clock:      time.Now,
		log:        log.NewHelper(logger),
	}
}

// WithClock 替换 createdAt 使用的时钟。
func (s *CatalogService) WithClock(fn func() time.Time) *CatalogService {
	if fn != nil {
		s.clock = fn
	}
	return s
}

// CreateVideo 创建视频并为每个分类 / 演员 attach 一次。
func (s *CatalogService) CreateVideo(ctx context.Context, in CreateVideoInput) (*vo.VideoSummary, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidArgument("title is required")
	}
	id := strings.TrimSpace(in.VideoID)
	if id == "" {
		id = uuid.NewString()
	}

	video := &po.Video{
		ID:           id,
		Title:        title,
		Description:  in.Description,
		ThumbnailURL: in.ThumbnailURL,
		Categories:   cleanNames(in.Categories),
		Actors:       cleanNames(in.Actors),
		Tags:         cleanNames(in.Tags),
		CreatedAt:    s.clock().UTC(),
	}
	created, err := s.videos.Create(ctx, video)
	if err != nil {
		return nil, mapStoreError(err, ReasonCatalogFailed, "failed to create video")
	}

	if err := s.attachAll(ctx, po.EntityCategory, created.Categories); err != nil {
		return nil, err
	}
	if err := s.attachAll(ctx, po.EntityActor, created.Actors); err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Infof("video created: video_id=%s categories=%d actors=%d", created.ID, len(created.Categories), len(created.Actors))
	return vo.NewVideoSummary(created), nil
}

// UpdateVideoAssociations 改写标题 / 分类 / 演员 / 标签，并按新旧差异 attach / detach。
func (s *CatalogService) UpdateVideoAssociations(ctx context.Context, in UpdateAssociationsInput) (*vo.VideoSummary, error) {
	if strings.TrimSpace(in.VideoID) == "" {
		return nil, invalidArgument("video_id is required")
	}
	if in.Title == nil && in.Categories == nil && in.Actors == nil && in.Tags == nil {
		return nil, invalidArgument("no fields to update")
	}

	current, err := s.videos.Get(ctx, in.VideoID)
	if err != nil {
		return nil, mapStoreError(err, ReasonCatalogFailed, "failed to load video")
	}

	updated := *current
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, invalidArgument("title must not be empty")
		}
		updated.Title = title
	}
	if in.Categories != nil {
		updated.Categories = cleanNames(*in.Categories)
	}
	if in.Actors != nil {
		updated.Actors = cleanNames(*in.Actors)
	}
	if in.Tags != nil {
		updated.Tags = cleanNames(*in.Tags)
	}

	if err := s.videos.UpdateAssociations(ctx, &updated); err != nil {
		return nil, mapStoreError(err, ReasonCatalogFailed, "failed to update video")
	}

	addedCats, removedCats := diffNames(current.Categories, updated.Categories)
	addedActors, removedActors := diffNames(current.Actors, updated.Actors)
	if err := s.attachAll(ctx, po.EntityCategory, addedCats); err != nil {
		return nil, err
	}
	if err := s.attachAll(ctx, po.EntityActor, addedActors); err != nil {
		return nil, err
	}
	for _, name := range removedCats {
		if err := s.propagator.DetachAssociation(ctx, po.EntityCategory, name); err != nil {
			return nil, err
		}
	}
	for _, name := range removedActors {
		if err := s.propagator.DetachAssociation(ctx, po.EntityActor, name); err != nil {
			return nil, err
		}
	}

	return vo.NewVideoSummary(&updated), nil
}

func (s *CatalogService) attachAll(ctx context.Context, kind po.EntityKind, names []string) error {
	for _, name := range uniqueNames(names) {
		if err := s.propagator.AttachAssociation(ctx, kind, name); err != nil {
			s.log.WithContext(ctx).Errorf("attach %s %q failed: %v", kind, name, err)
			return err
		}
	}
	return nil
}

// cleanNames 去除首尾空白与空项，保持顺序。
func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if n := strings.TrimSpace(name); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// diffNames 按归一化名称比较新旧列表。
func diffNames(before, after []string) (added, removed []string) {
	index := func(names []string) map[string]string {
		m := make(map[string]string, len(names))
		for _, name := range uniqueNames(names) {
			m[strings.ToLower(strings.TrimSpace(name))] = name
		}
		return m
	}
	old, cur := index(before), index(after)
	for _, name := range uniqueNames(after) {
		if _, ok := old[strings.ToLower(strings.TrimSpace(name))]; !ok {
			added = append(added, name)
		}
	}
	for _, name := range uniqueNames(before) {
		if _, ok := cur[strings.ToLower(strings.TrimSpace(name))]; !ok {
			removed = append(removed, name)
		}
	}
	return added, removed
}
