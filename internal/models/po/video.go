// Package po 定义持久化对象（Persistent Objects），与文档存储中的集合一一对应。
package po

import "time"

// Video 表示 videos 集合中的一条视频文档。
//
// TitleLower / CategoryLower / ActorLower / TagsLower 是写入时维护的小写镜像字段，
// 供前缀搜索与标签匹配使用；CategoryLower、ActorLower 只镜像首个（主）分类与演员。
type Video struct {
	ID           string
	Title        string
	Description  string
	ThumbnailURL string

	ViewCount    int64
	LikeCount    int64
	DislikeCount int64

	Categories []string
	Actors     []string
	Tags       []string

	TitleLower    string
	CategoryLower string
	ActorLower    string
	TagsLower     []string

	CreatedAt time.Time
}
