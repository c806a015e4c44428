package vo

import (
	"sort"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
)

// PositionStats 是单个广告位的计数与派生点击率。
type PositionStats struct {
	Position    string  `json:"position"`
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	CTR         float64 `json:"ctr"`
}

// DailyAdStats 是一个日桶。
type DailyAdStats struct {
	Date        string          `json:"date"`
	Clicks      int64           `json:"clicks"`
	Impressions int64           `json:"impressions"`
	CTR         float64         `json:"ctr"`
	Positions   []PositionStats `json:"positions"`
}

// AdStatsReport 是广告统计读模型，比率在读取时由计数推导。
type AdStatsReport struct {
	TotalClicks        int64           `json:"total_clicks"`
	TotalImpressions   int64           `json:"total_impressions"`
	TotalPageViews     int64           `json:"total_page_views"`
	CTR                float64         `json:"ctr"`
	ImpressionsPerPage float64         `json:"impressions_per_page"`
	StoredCTR          float64         `json:"stored_ctr"`
	Positions          []PositionStats `json:"positions"`
	Daily              []DailyAdStats  `json:"daily"`
	LastUpdated        time.Time       `json:"last_updated"`
}

// AdEventRecorded 是一次曝光 / 点击记录后的返回值。
type AdEventRecorded struct {
	AdID     string `json:"ad_id"`
	Position string `json:"position"`
	Date     string `json:"date"`
}

// PositionList 把广告位计数 map 转为按名称排序的列表，ratio 用于计算每个广告位的点击率。
func PositionList(stats map[string]po.PositionCounter, ratio func(clicks, impressions int64) float64) []PositionStats {
	out := make([]PositionStats, 0, len(stats))
	for name, counter := range stats {
		out = append(out, PositionStats{
			Position:    name,
			Clicks:      counter.Clicks,
			Impressions: counter.Impressions,
			CTR:         ratio(counter.Clicks, counter.Impressions),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
