// Package vo 定义视图对象（View Objects），用于向上层传递业务数据。
// VO 对象由 Service 层返回，经 controllers 序列化为 API 响应，隔离内部数据结构。
package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
)

// VideoSummary 是列表与搜索结果中的单条视频。
type VideoSummary struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	DislikeCount int64     `json:"dislike_count"`
	Categories   []string  `json:"categories"`
	Actors       []string  `json:"actors"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewVideoSummary 从持久化对象构造列表视图。
func NewVideoSummary(video *po.Video) *VideoSummary {
	if video == nil {
		return nil
	}
	return &VideoSummary{
		VideoID:      video.ID,
		Title:        video.Title,
		ThumbnailURL: video.ThumbnailURL,
		ViewCount:    video.ViewCount,
		LikeCount:    video.LikeCount,
		DislikeCount: video.DislikeCount,
		Categories:   append([]string{}, video.Categories...),
		Actors:       append([]string{}, video.Actors...),
		Tags:         append([]string{}, video.Tags...),
		CreatedAt:    video.CreatedAt,
	}
}

// VideoPage 是一页视频列表。
//
// Page 为钳制后的实际页码；请求页超过 TotalPages 时等于 TotalPages。
type VideoPage struct {
	Items      []*VideoSummary `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"total_pages"`
	Term       string          `json:"term,omitempty"`
}

// NewVideoPage 组装分页结果。
func NewVideoPage(videos []*po.Video, page, pageSize int, total int64, totalPages int) *VideoPage {
	items := make([]*VideoSummary, 0, len(videos))
	for _, v := range videos {
		items = append(items, NewVideoSummary(v))
	}
	return &VideoPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
