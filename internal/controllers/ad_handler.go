package controllers

import (
	"context"

	"github.com/bionicotaku/lingo-services-listing/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// AdHandler 处理广告曝光、点击、页面浏览与统计查询。
type AdHandler struct {
	*BaseHandler
	aggregator *services.MetricsAggregator
}

// NewAdHandler 构造广告统计 Handler。
func NewAdHandler(aggregator *services.MetricsAggregator, base *BaseHandler) *AdHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &AdHandler{BaseHandler: base, aggregator: aggregator}
}

// RecordImpression 处理 POST /v1/ads/{ad_id}/impressions。
func (h *AdHandler) RecordImpression(ctx khttp.Context) error {
	in, err := h.eventInput(ctx)
	if err != nil {
		return err
	}
	return h.serve(ctx, OperationRecordImpress, HandlerTypeCommand, in, func(c context.Context) (any, error) {
		return h.aggregator.RecordImpression(c, in)
	})
}

// RecordClick 处理 POST /v1/ads/{ad_id}/clicks。
func (h *AdHandler) RecordClick(ctx khttp.Context) error {
	in, err := h.eventInput(ctx)
	if err != nil {
		return err
	}
	return h.serve(ctx, OperationRecordClick, HandlerTypeCommand, in, func(c context.Context) (any, error) {
		return h.aggregator.RecordClick(c, in)
	})
}

// RecordPageView 处理 POST /v1/page-views。
func (h *AdHandler) RecordPageView(ctx khttp.Context) error {
	return h.serve(ctx, OperationRecordPageView, HandlerTypeCommand, nil, func(c context.Context) (any, error) {
		if err := h.aggregator.RecordPageView(c); err != nil {
			return nil, err
		}
		return &dto.Ack{Recorded: true}, nil
	})
}

// GetAdStats 处理 GET /v1/ads/stats。
func (h *AdHandler) GetAdStats(ctx khttp.Context) error {
	q := dto.ParseAdStatsQuery(ctx.Query())
	if err := h.Validate(&q); err != nil {
		return err
	}
	return h.serve(ctx, OperationGetAdStats, HandlerTypeQuery, q, func(c context.Context) (any, error) {
		return h.aggregator.GetAdStats(c, services.AdStatsQuery{From: q.From, To: q.To})
	})
}

func (h *AdHandler) eventInput(ctx khttp.Context) (services.AdEventInput, error) {
	var req dto.AdEventRequest
	if err := ctx.Bind(&req); err != nil {
		return services.AdEventInput{}, err
	}
	if err := h.Validate(&req); err != nil {
		return services.AdEventInput{}, err
	}
	return services.AdEventInput{
		AdID:     ctx.Vars().Get("ad_id"),
		Position: req.Position,
		PageView: req.PageView,
	}, nil
}
