package mappers

import (
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
)

// 广告统计字段名。
const (
	FieldTotalClicks        = "totalClicks"
	FieldTotalImpressions   = "totalImpressions"
	FieldTotalPageViews     = "totalPageViews"
	FieldCTR                = "ctr"
	FieldImpressionsPerPage = "impressionsPerPage"
	FieldPositionStats      = "positionStats"
	FieldLastUpdated        = "lastUpdated"
	FieldDate               = "date"
	FieldClicks             = "clicks"
	FieldImpressions        = "impressions"
)

// AdAggregateFromDocument 转换广告汇总文档；文档缺失时返回零值汇总。
func AdAggregateFromDocument(doc *docstore.Document) *po.AdAggregateStats {
	stats := &po.AdAggregateStats{PositionStats: map[string]po.PositionCounter{}}
	if doc == nil {
		return stats
	}
	stats.TotalClicks = doc.Int64(FieldTotalClicks)
	stats.TotalImpressions = doc.Int64(FieldTotalImpressions)
	stats.TotalPageViews = doc.Int64(FieldTotalPageViews)
	stats.CTR = doc.Float64(FieldCTR)
	stats.ImpressionsPerPage = doc.Float64(FieldImpressionsPerPage)
	stats.LastUpdated = doc.Time(FieldLastUpdated)
	stats.PositionStats = positionStats(doc)
	return stats
}

// AdDailyFromDocument 转换日桶文档。
func AdDailyFromDocument(doc *docstore.Document) *po.AdDailyStats {
	if doc == nil {
		return nil
	}
	date := doc.String(FieldDate)
	if date == "" {
		date = doc.ID
	}
	return &po.AdDailyStats{
		Date:          date,
		Clicks:        doc.Int64(FieldClicks),
		Impressions:   doc.Int64(FieldImpressions),
		PositionStats: positionStats(doc),
	}
}

// AdCountersFromDocument 转换单个广告素材计数文档。
func AdCountersFromDocument(adID string, doc *docstore.Document) *po.AdCounters {
	counters := &po.AdCounters{AdID: adID}
	if doc == nil {
		return counters
	}
	counters.Clicks = doc.Int64(FieldClicks)
	counters.Impressions = doc.Int64(FieldImpressions)
	counters.LastUpdated = doc.Time(FieldLastUpdated)
	return counters
}

// ZeroPositionStats 构造按广告位零初始化的 positionStats 字段。
func ZeroPositionStats(positions []string) map[string]any {
	out := make(map[string]any, len(positions))
	for _, p := range positions {
		out[p] = map[string]any{FieldClicks: int64(0), FieldImpressions: int64(0)}
	}
	return out
}

func positionStats(doc *docstore.Document) map[string]po.PositionCounter {
	out := map[string]po.PositionCounter{}
	for position, raw := range doc.Map(FieldPositionStats) {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		sub := &docstore.Document{Fields: entry}
		out[position] = po.PositionCounter{
			Clicks:      sub.Int64(FieldClicks),
			Impressions: sub.Int64(FieldImpressions),
		}
	}
	return out
}
