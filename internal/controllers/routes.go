package controllers

import (
	"context"
	stdhttp "net/http"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// Kratos operation 名称，供日志与指标中间件使用。
const (
	OperationToggleLike      = "/listing.v1.InteractionService/ToggleLike"
	OperationToggleDislike   = "/listing.v1.InteractionService/ToggleDislike"
	OperationToggleFavorite  = "/listing.v1.InteractionService/ToggleFavorite"
	OperationGetInteraction  = "/listing.v1.InteractionService/GetInteraction"
	OperationRecordView      = "/listing.v1.VideoService/RecordView"
	OperationListVideos      = "/listing.v1.VideoService/ListVideos"
	OperationSearchVideos    = "/listing.v1.VideoService/SearchVideos"
	OperationRecordImpress   = "/listing.v1.AdService/RecordImpression"
	OperationRecordClick     = "/listing.v1.AdService/RecordClick"
	OperationRecordPageView  = "/listing.v1.AdService/RecordPageView"
	OperationGetAdStats      = "/listing.v1.AdService/GetAdStats"
	OperationRecordVisit     = "/listing.v1.VisitService/RecordVisit"
	OperationGetVisitorStats = "/listing.v1.VisitService/GetVisitorStats"
	OperationCreateVideo     = "/listing.v1.CatalogService/CreateVideo"
	OperationUpdateVideo     = "/listing.v1.CatalogService/UpdateVideo"
)

// Handlers 聚合全部 HTTP Handler，由 Wire 注入。
type Handlers struct {
	Interaction *InteractionHandler
	Video       *VideoHandler
	Ad          *AdHandler
	Visit       *VisitHandler
	Catalog     *CatalogHandler
}

// Register 在 /v1 前缀下注册全部路由。
func (hs *Handlers) Register(srv *khttp.Server) {
	r := srv.Route("/v1")

	r.GET("/videos", hs.Video.ListVideos)
	r.GET("/videos/search", hs.Video.SearchVideos)
	r.POST("/videos/{video_id}/views", hs.Video.RecordView)

	r.POST("/videos/{video_id}/like", hs.Interaction.ToggleLike)
	r.POST("/videos/{video_id}/dislike", hs.Interaction.ToggleDislike)
	r.POST("/videos/{video_id}/favorite", hs.Interaction.ToggleFavorite)
	r.GET("/videos/{video_id}/interaction", hs.Interaction.GetInteraction)

	r.POST("/ads/{ad_id}/impressions", hs.Ad.RecordImpression)
	r.POST("/ads/{ad_id}/clicks", hs.Ad.RecordClick)
	r.GET("/ads/stats", hs.Ad.GetAdStats)
	r.POST("/page-views", hs.Ad.RecordPageView)

	r.POST("/visits", hs.Visit.RecordVisit)
	r.GET("/visits/stats", hs.Visit.GetVisitorStats)

	r.POST("/admin/videos", hs.Catalog.CreateVideo)
	r.PATCH("/admin/videos/{video_id}", hs.Catalog.UpdateVideo)
}

// serve 设置 operation，经 Kratos 中间件链调用 fn，成功时以 200 写回结果。
func (h *BaseHandler) serve(ctx khttp.Context, operation string, kind HandlerType, req any, fn func(context.Context) (any, error)) error {
	khttp.SetOperation(ctx, operation)
	handler := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		return h.invoke(c, kind, fn)
	})
	out, err := handler(ctx, req)
	if err != nil {
		return err
	}
	return ctx.Result(stdhttp.StatusOK, out)
}
