package services

import (
	"context"
	"strings"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/models/vo"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/mappers"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// VideoListStore 定义按 createdAt 倒序的视频计数与游标查询。
type VideoListStore interface {
	Count(ctx context.Context, where ...docstore.Predicate) (int64, error)
	List(ctx context.Context, params repositories.VideoListParams) ([]*po.Video, *docstore.Cursor, error)
}

// skipBatch 是定位游标时单次读取的最大条数。
const skipBatch = 500

// ListingService 把无序的视频集合转换为稳定分页，支持前缀搜索。
type ListingService struct {
	videos          VideoListStore
	defaultPageSize int
	maxPageSize     int
	searchCap       int
	log             *log.Helper
	metrics         *serviceMetrics
}

// NewListingService 构造列表服务。
func NewListingService(videos VideoListStore, cfg configloader.ListingConfig, logger log.Logger) *ListingService {
	helper := log.NewHelper(logger)
	s := &ListingService{
		videos:          videos,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
		searchCap:       cfg.SearchCap,
		log:             helper,
		metrics:         newServiceMetrics(helper),
	}
	if s.defaultPageSize <= 0 {
		s.defaultPageSize = 20
	}
	if s.maxPageSize < s.defaultPageSize {
		s.maxPageSize = s.defaultPageSize
	}
	if s.searchCap <= 0 {
		s.searchCap = 50
	}
	return s
}

func (s *ListingService) normalize(page, pageSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return page, pageSize
}

func totalPagesFor(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// FetchPage 返回按 createdAt 倒序的第 page 页。
//
// 页码超过总页数时钳制到最后一页；集合为空时返回第 1 页空结果。
// 第 2 页起先走过前 (page-1)*pageSize 条得到游标，再读取游标之后的 pageSize 条。
func (s *ListingService) FetchPage(ctx context.Context, page, pageSize int) (*vo.VideoPage, error) {
	ctx, span := startSpan(ctx, "ListingService.FetchPage", attribute.Int("page", page), attribute.Int("page_size", pageSize))
	result, err := s.fetchPage(ctx, page, pageSize)
	endSpan(span, err)
	return result, err
}

func (s *ListingService) fetchPage(ctx context.Context, page, pageSize int) (*vo.VideoPage, error) {
	page, pageSize = s.normalize(page, pageSize)

	total, err := s.videos.Count(ctx)
	if err != nil {
		return nil, mapStoreError(err, ReasonListingFailed, "failed to count videos")
	}
	totalPages := totalPagesFor(total, pageSize)
	if totalPages == 0 {
		return vo.NewVideoPage(nil, 1, pageSize, 0, 0), nil
	}
	if page > totalPages {
		s.log.WithContext(ctx).Debugf("page clamped: requested=%d total_pages=%d", page, totalPages)
		page = totalPages
	}

	var cursor *docstore.Cursor
	if page > 1 {
		cursor, err = s.skip(ctx, (page-1)*pageSize)
		if err != nil {
			return nil, mapStoreError(err, ReasonListingFailed, "failed to locate page cursor")
		}
	}

	videos, _, err := s.videos.List(ctx, repositories.VideoListParams{Limit: pageSize, After: cursor})
	if err != nil {
		return nil, mapStoreError(err, ReasonListingFailed, "failed to list videos")
	}
	return vo.NewVideoPage(videos, page, pageSize, total, totalPages), nil
}

// skip 读取排序后的前 n 条并返回指向第 n 条的游标，分批读取以限制单次结果大小。
func (s *ListingService) skip(ctx context.Context, n int) (*docstore.Cursor, error) {
	var cursor *docstore.Cursor
	for remaining := n; remaining > 0; {
		batch := remaining
		if batch > skipBatch {
			batch = skipBatch
		}
		videos, next, err := s.videos.List(ctx, repositories.VideoListParams{Limit: batch, After: cursor})
		if err != nil {
			return nil, err
		}
		if next != nil {
			cursor = next
		}
		if len(videos) < batch {
			break
		}
		remaining -= batch
	}
	return cursor, nil
}

// searchPredicates 按优先级返回四个前缀谓词：标题、主分类、主演员、标签精确匹配。
func searchPredicates(term string) []docstore.Predicate {
	return []docstore.Predicate{
		docstore.Prefix(mappers.FieldTitleLower, term),
		docstore.Prefix(mappers.FieldCategoryLower, term),
		docstore.Prefix(mappers.FieldActorLower, term),
		docstore.ArrayContains(mappers.FieldTagsLower, term),
	}
}

// Search 并行执行四个前缀谓词（各最多 searchCap 条），按谓词优先级合并去重后分页。
//
// 只支持前缀匹配，合并候选最多 4×searchCap 条，超出部分不保证返回。
// 页码超出合并结果时返回空页。
func (s *ListingService) Search(ctx context.Context, term string, page, pageSize int) (*vo.VideoPage, error) {
	ctx, span := startSpan(ctx, "ListingService.Search", attribute.Int("page", page))
	result, err := s.search(ctx, term, page, pageSize)
	endSpan(span, err)
	return result, err
}

func (s *ListingService) search(ctx context.Context, term string, page, pageSize int) (*vo.VideoPage, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.FetchPage(ctx, page, pageSize)
	}
	page, pageSize = s.normalize(page, pageSize)

	predicates := searchPredicates(term)
	results := make([][]*po.Video, len(predicates))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range predicates {
		g.Go(func() error {
			videos, _, err := s.videos.List(gctx, repositories.VideoListParams{
				Where: []docstore.Predicate{p},
				Limit: s.searchCap,
			})
			if err != nil {
				return err
			}
			results[i] = videos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, mapStoreError(err, ReasonListingFailed, "failed to search videos")
	}

	merged := mergeCandidates(results...)
	s.metrics.recordSearch(ctx, len(merged))

	total := int64(len(merged))
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(merged) {
		start = len(merged)
	}
	if end > len(merged) {
		end = len(merged)
	}
	result := vo.NewVideoPage(merged[start:end], page, pageSize, total, totalPagesFor(total, pageSize))
	result.Term = term
	return result, nil
}

// mergeCandidates 按参数顺序合并，重复 ID 保留第一次出现。
func mergeCandidates(sets ...[]*po.Video) []*po.Video {
	seen := make(map[string]struct{})
	var merged []*po.Video
	for _, set := range sets {
		for _, v := range set {
			if v == nil {
				continue
			}
			if _, ok := seen[v.ID]; ok {
				continue
			}
			seen[v.ID] = struct{}{}
			merged = append(merged, v)
		}
	}
	return merged
}
