package po

import "time"

// PositionCounter 是单个广告位的点击与曝光计数。
type PositionCounter struct {
	Clicks      int64
	Impressions int64
}

// AdAggregateStats 对应 adStats/aggregate 单例文档。
// CTR 为百分比（保留两位小数），ImpressionsPerPage 为每页平均曝光数。
type AdAggregateStats struct {
	TotalClicks        int64
	TotalImpressions   int64
	TotalPageViews     int64
	CTR                float64
	ImpressionsPerPage float64
	PositionStats      map[string]PositionCounter
	LastUpdated        time.Time
}

// AdDailyStats 对应 adDailyStats/{YYYY-MM-DD} 日桶文档。
type AdDailyStats struct {
	Date          string
	Clicks        int64
	Impressions   int64
	PositionStats map[string]PositionCounter
}

// AdCounters 对应 ads/{adId} 单个广告素材的计数。
type AdCounters struct {
	AdID        string
	Clicks      int64
	Impressions int64
	LastUpdated time.Time
}
