package controllers

import (
	"context"

	"github.com/bionicotaku/lingo-services-listing/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// CatalogHandler 处理管理端视频写入。
type CatalogHandler struct {
	*BaseHandler
	svc *services.CatalogService
}

// NewCatalogHandler 构造目录写 Handler。
func NewCatalogHandler(svc *services.CatalogService, base *BaseHandler) *CatalogHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &CatalogHandler{BaseHandler: base, svc: svc}
}

// CreateVideo 处理 POST /v1/admin/videos。
func (h *CatalogHandler) CreateVideo(ctx khttp.Context) error {
	var req dto.CreateVideoRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := h.Validate(&req); err != nil {
		return err
	}
	return h.serve(ctx, OperationCreateVideo, HandlerTypeCommand, &req, func(c context.Context) (any, error) {
		return h.svc.CreateVideo(c, services.CreateVideoInput{
			VideoID:      req.VideoID,
			Title:        req.Title,
			Description:  req.Description,
			ThumbnailURL: req.ThumbnailURL,
			Categories:   req.Categories,
			Actors:       req.Actors,
			Tags:         req.Tags,
		})
	})
}

// UpdateVideo 处理 PATCH /v1/admin/videos/{video_id}。
func (h *CatalogHandler) UpdateVideo(ctx khttp.Context) error {
	var req dto.UpdateVideoRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := h.Validate(&req); err != nil {
		return err
	}
	videoID := ctx.Vars().Get("video_id")
	return h.serve(ctx, OperationUpdateVideo, HandlerTypeCommand, &req, func(c context.Context) (any, error) {
		return h.svc.UpdateVideoAssociations(c, services.UpdateAssociationsInput{
			VideoID:    videoID,
			Title:      req.Title,
			Categories: req.Categories,
			Actors:     req.Actors,
			Tags:       req.Tags,
		})
	})
}
