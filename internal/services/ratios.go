package services

import "math"

// ClickThroughRate 返回百分比形式的点击率，保留两位小数；无曝光时为 0。
func ClickThroughRate(clicks, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return round2(float64(clicks) * 100 / float64(impressions))
}

// ImpressionsPerPage 返回每次页面浏览的平均曝光数，保留两位小数；无页面浏览时为 0。
func ImpressionsPerPage(impressions, pageViews int64) float64 {
	if pageViews <= 0 {
		return 0
	}
	return round2(float64(impressions) / float64(pageViews))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
