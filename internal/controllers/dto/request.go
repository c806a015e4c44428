// Package dto 定义 HTTP 请求体与查询参数，并负责基础解析。
package dto

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PageQuery 是列表与搜索的查询参数；0 表示使用默认值。
type PageQuery struct {
	Query    string `validate:"max=200"`
	Page     int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0,lte=1000"`
}

// ParsePageQuery 解析 q / page / page_size。
func ParsePageQuery(values url.Values) (PageQuery, error) {
	page, err := optionalInt(values, "page")
	if err != nil {
		return PageQuery{}, err
	}
	size, err := optionalInt(values, "page_size")
	if err != nil {
		return PageQuery{}, err
	}
	return PageQuery{Query: values.Get("q"), Page: page, PageSize: size}, nil
}

// AdStatsQuery 是广告统计的日期区间，格式 YYYY-MM-DD。
type AdStatsQuery struct {
	From string `validate:"omitempty,datetime=2006-01-02"`
	To   string `validate:"omitempty,datetime=2006-01-02"`
}

// ParseAdStatsQuery 解析 from / to。
func ParseAdStatsQuery(values url.Values) AdStatsQuery {
	return AdStatsQuery{
		From: strings.TrimSpace(values.Get("from")),
		To:   strings.TrimSpace(values.Get("to")),
	}
}

// AdEventRequest 是广告曝光 / 点击的请求体。
type AdEventRequest struct {
	Position string `json:"position" validate:"required,max=64"`
	PageView bool   `json:"page_view"`
}

// VisitRequest 是访问上报的请求体。
type VisitRequest struct {
	Path string `json:"path" validate:"required,startswith=/,max=2048"`
}

// CreateVideoRequest 是管理端创建视频的请求体。
type CreateVideoRequest struct {
	VideoID      string   `json:"video_id" validate:"omitempty,max=128"`
	Title        string   `json:"title" validate:"required,max=512"`
	Description  string   `json:"description" validate:"max=8192"`
	ThumbnailURL string   `json:"thumbnail_url" validate:"omitempty,url"`
	Categories   []string `json:"categories" validate:"max=32,dive,max=128"`
	Actors       []string `json:"actors" validate:"max=64,dive,max=128"`
	Tags         []string `json:"tags" validate:"max=64,dive,max=64"`
}

// UpdateVideoRequest 是管理端更新视频关联的请求体；缺省字段不修改。
type UpdateVideoRequest struct {
	Title      *string   `json:"title" validate:"omitempty,max=512"`
	Categories *[]string `json:"categories" validate:"omitempty,max=32,dive,max=128"`
	Actors     *[]string `json:"actors" validate:"omitempty,max=64,dive,max=128"`
	Tags       *[]string `json:"tags" validate:"omitempty,max=64,dive,max=64"`
}

func optionalInt(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// Ack 是无业务返回值时的响应体。
type Ack struct {
	Recorded bool `json:"recorded"`
}
