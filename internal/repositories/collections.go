// Package repositories 实现数据访问层：文档存储后端（PostgreSQL / MongoDB）、标记存储（Redis / 内存），
// 以及基于 docstore.Store 的类型化仓储。
package repositories

import "errors"

// 集合名。
const (
	CollectionVideos       = "videos"
	CollectionUsers        = "users"
	CollectionCategories   = "categories"
	CollectionActors       = "actors"
	CollectionAdStats      = "adStats"
	CollectionAdDailyStats = "adDailyStats"
	CollectionAds          = "ads"
	CollectionVisitorStats = "visitorStats"
	CollectionVisitorDaily = "visitorDaily"
)

// aggregateDocID 是汇总单例文档的固定 ID。
const aggregateDocID = "aggregate"

// ErrVideoNotFound 表示视频文档不存在。
var ErrVideoNotFound = errors.New("video not found")
