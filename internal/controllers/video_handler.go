package controllers

import (
	"context"

	"github.com/bionicotaku/lingo-services-listing/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// VideoHandler 处理视频列表、搜索与播放计数。
type VideoHandler struct {
	*BaseHandler
	listing    *services.ListingService
	propagator *services.CounterPropagator
}

// NewVideoHandler 构造视频 Handler。
func NewVideoHandler(listing *services.ListingService, propagator *services.CounterPropagator, base *BaseHandler) *VideoHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &VideoHandler{BaseHandler: base, listing: listing, propagator: propagator}
}

// ListVideos 处理 GET /v1/videos。
func (h *VideoHandler) ListVideos(ctx khttp.Context) error {
	q, err := h.pageQuery(ctx)
	if err != nil {
		return err
	}
	return h.serve(ctx, OperationListVideos, HandlerTypeQuery, q, func(c context.Context) (any, error) {
		return h.listing.FetchPage(c, q.Page, q.PageSize)
	})
}

// SearchVideos 处理 GET /v1/videos/search。
func (h *VideoHandler) SearchVideos(ctx khttp.Context) error {
	q, err := h.pageQuery(ctx)
	if err != nil {
		return err
	}
	return h.serve(ctx, OperationSearchVideos, HandlerTypeQuery, q, func(c context.Context) (any, error) {
		return h.listing.Search(c, q.Query, q.Page, q.PageSize)
	})
}

// RecordView 处理 POST /v1/videos/{video_id}/views。
func (h *VideoHandler) RecordView(ctx khttp.Context) error {
	videoID := ctx.Vars().Get("video_id")
	return h.serve(ctx, OperationRecordView, HandlerTypeCommand, videoID, func(c context.Context) (any, error) {
		return h.propagator.RecordView(c, videoID)
	})
}

func (h *VideoHandler) pageQuery(ctx khttp.Context) (dto.PageQuery, error) {
	q, err := dto.ParsePageQuery(ctx.Query())
	if err != nil {
		return dto.PageQuery{}, kerrors.BadRequest(reasonBadRequest, err.Error())
	}
	if err := h.Validate(&q); err != nil {
		return dto.PageQuery{}, err
	}
	return q, nil
}
