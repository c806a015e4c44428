package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-listing/internal/repositories"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 错误原因（kratos errors reason 字段）。
const (
	ReasonUnauthenticated   = "LISTING_UNAUTHENTICATED"
	ReasonInvalidArgument   = "LISTING_INVALID_ARGUMENT"
	ReasonVideoNotFound     = "LISTING_VIDEO_NOT_FOUND"
	ReasonToggleInProgress  = "LISTING_TOGGLE_IN_PROGRESS"
	ReasonStoreUnavailable  = "LISTING_STORE_UNAVAILABLE"
	ReasonQueryTimeout      = "LISTING_QUERY_TIMEOUT"
	ReasonInteractionFailed = "LISTING_INTERACTION_FAILED"
	ReasonMetricsFailed     = "LISTING_METRICS_FAILED"
	ReasonVisitFailed       = "LISTING_VISIT_FAILED"
	ReasonListingFailed     = "LISTING_QUERY_FAILED"
	ReasonCatalogFailed     = "LISTING_CATALOG_FAILED"
)

var (
	// ErrUnauthenticated 表示缺少已认证的用户 ID，在访问存储前拒绝。
	ErrUnauthenticated = kerrors.Unauthorized(ReasonUnauthenticated, "authenticated user id required")
	// ErrVideoNotFound 是视频不存在时返回的哨兵错误。
	ErrVideoNotFound = kerrors.NotFound(ReasonVideoNotFound, "video not found")
	// ErrToggleInProgress 表示相同幂等键的请求仍在处理。
	ErrToggleInProgress = kerrors.Conflict(ReasonToggleInProgress, "request with the same idempotency key is in progress")
)

func invalidArgument(format string, args ...any) error {
	return kerrors.BadRequest(ReasonInvalidArgument, fmt.Sprintf(format, args...))
}

// mapStoreError 把仓储层错误转换为 kratos 错误；已是 kratos 错误时原样返回。
func mapStoreError(err error, reason, message string) error {
	if err == nil {
		return nil
	}
	var kerr *kerrors.Error
	if errors.As(err, &kerr) {
		return err
	}
	switch {
	case errors.Is(err, repositories.ErrVideoNotFound):
		return ErrVideoNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return kerrors.GatewayTimeout(ReasonQueryTimeout, "store call timed out").WithCause(err)
	case errors.Is(err, context.Canceled):
		return kerrors.ClientClosed(ReasonStoreUnavailable, "request canceled").WithCause(err)
	default:
		return kerrors.InternalServer(reason, message).WithCause(err)
	}
}
