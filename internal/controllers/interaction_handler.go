package controllers

import (
	"context"

	"github.com/bionicotaku/lingo-services-listing/internal/metadata"
	"github.com/bionicotaku/lingo-services-listing/internal/models/vo"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// InteractionHandler 处理点赞 / 点踩 / 收藏切换与互动状态查询。
type InteractionHandler struct {
	*BaseHandler
	svc *services.InteractionService
}

// NewInteractionHandler 构造互动 Handler。
func NewInteractionHandler(svc *services.InteractionService, base *BaseHandler) *InteractionHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &InteractionHandler{BaseHandler: base, svc: svc}
}

// ToggleLike 处理 POST /v1/videos/{video_id}/like。
func (h *InteractionHandler) ToggleLike(ctx khttp.Context) error {
	return h.toggle(ctx, OperationToggleLike, h.svc.ToggleLike)
}

// ToggleDislike 处理 POST /v1/videos/{video_id}/dislike。
func (h *InteractionHandler) ToggleDislike(ctx khttp.Context) error {
	return h.toggle(ctx, OperationToggleDislike, h.svc.ToggleDislike)
}

// ToggleFavorite 处理 POST /v1/videos/{video_id}/favorite。
func (h *InteractionHandler) ToggleFavorite(ctx khttp.Context) error {
	return h.toggle(ctx, OperationToggleFavorite, h.svc.ToggleFavorite)
}

// GetInteraction 处理 GET /v1/videos/{video_id}/interaction。
func (h *InteractionHandler) GetInteraction(ctx khttp.Context) error {
	videoID := ctx.Vars().Get("video_id")
	return h.serve(ctx, OperationGetInteraction, HandlerTypeQuery, videoID, func(c context.Context) (any, error) {
		meta, _ := metadata.FromContext(c)
		return h.svc.GetInteraction(c, meta.UserID, videoID)
	})
}

type toggleFunc func(context.Context, services.ToggleInput) (*vo.InteractionState, error)

func (h *InteractionHandler) toggle(ctx khttp.Context, operation string, fn toggleFunc) error {
	videoID := ctx.Vars().Get("video_id")
	return h.serve(ctx, operation, HandlerTypeCommand, videoID, func(c context.Context) (any, error) {
		meta, _ := metadata.FromContext(c)
		return fn(c, services.ToggleInput{
			UserID:         meta.UserID,
			VideoID:        videoID,
			IdempotencyKey: meta.IdempotencyKey,
		})
	})
}
