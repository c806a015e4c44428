package controllers

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-listing/internal/metadata"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// visitorCookieMaxAge 是 visitor_id Cookie 的有效期。
const visitorCookieMaxAge = 365 * 24 * time.Hour

// VisitHandler 处理访问上报与访客统计查询。
type VisitHandler struct {
	*BaseHandler
	tracker *services.VisitorTracker
}

// NewVisitHandler 构造访客 Handler。
func NewVisitHandler(tracker *services.VisitorTracker, base *BaseHandler) *VisitHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &VisitHandler{BaseHandler: base, tracker: tracker}
}

// RecordVisit 处理 POST /v1/visits，首次访问时下发 visitor_id Cookie。
func (h *VisitHandler) RecordVisit(ctx khttp.Context) error {
	var req dto.VisitRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := h.Validate(&req); err != nil {
		return err
	}
	return h.serve(ctx, OperationRecordVisit, HandlerTypeCommand, &req, func(c context.Context) (any, error) {
		meta, _ := metadata.FromContext(c)
		result, visitorID, err := h.tracker.ClassifyAndMaybeRecordVisit(c, services.VisitInput{
			UserAgent: meta.UserAgent,
			Path:      req.Path,
			VisitorID: meta.VisitorID,
			TabID:     meta.TabID,
		})
		if err != nil {
			return nil, err
		}
		if visitorID != meta.VisitorID {
			stdhttp.SetCookie(ctx.Response(), &stdhttp.Cookie{
				Name:     metadata.CookieVisitorID,
				Value:    visitorID,
				Path:     "/",
				MaxAge:   int(visitorCookieMaxAge / time.Second),
				HttpOnly: true,
				SameSite: stdhttp.SameSiteLaxMode,
			})
		}
		return result, nil
	})
}

// GetVisitorStats 处理 GET /v1/visits/stats。
func (h *VisitHandler) GetVisitorStats(ctx khttp.Context) error {
	return h.serve(ctx, OperationGetVisitorStats, HandlerTypeQuery, nil, func(c context.Context) (any, error) {
		return h.tracker.GetVisitorStats(c)
	})
}
