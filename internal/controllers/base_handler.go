package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/metadata"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/go-playground/validator/v10"
)

// HandlerType 表示 Handler 的语义类别，用于选择超时策略。
type HandlerType int

const (
	// HandlerTypeDefault 表示未显式区分的 Handler。
	HandlerTypeDefault HandlerType = iota
	// HandlerTypeCommand 表示写模型命令 Handler。
	HandlerTypeCommand
	// HandlerTypeQuery 表示读模型查询 Handler。
	HandlerTypeQuery
)

// HandlerTimeouts 聚合不同类型 Handler 的超时策略。
type HandlerTimeouts struct {
	Default time.Duration
	Command time.Duration
	Query   time.Duration
}

// NewHandlerTimeouts 从 server.handlers 配置构造超时策略。
func NewHandlerTimeouts(cfg configloader.ServerConfig) HandlerTimeouts {
	return HandlerTimeouts{
		Default: cfg.Handlers.DefaultTimeout.Duration,
		Command: cfg.Handlers.CommandTimeout.Duration,
		Query:   cfg.Handlers.QueryTimeout.Duration,
	}
}

const (
	fallbackDefaultTimeout = 5 * time.Second
	fallbackQueryTimeout   = 3 * time.Second

	reasonBadRequest = "LISTING_BAD_REQUEST"
)

// BaseHandler 提供公共的超时、Metadata 解析与请求校验能力，供具体 Handler 内嵌复用。
type BaseHandler struct {
	timeouts HandlerTimeouts
	validate *validator.Validate
}

// NewBaseHandler 构造基础 Handler，并为缺省值填充合理的回退策略。
func NewBaseHandler(timeouts HandlerTimeouts) *BaseHandler {
	if timeouts.Default <= 0 {
		if timeouts.Command > 0 {
			timeouts.Default = timeouts.Command
		} else if timeouts.Query > 0 {
			timeouts.Default = timeouts.Query
		} else {
			timeouts.Default = fallbackDefaultTimeout
		}
	}
	if timeouts.Command <= 0 {
		timeouts.Command = timeouts.Default
	}
	if timeouts.Query <= 0 {
		if timeouts.Default > 0 {
			timeouts.Query = timeouts.Default
		} else {
			timeouts.Query = fallbackQueryTimeout
		}
	}
	return &BaseHandler{timeouts: timeouts, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// WithTimeout 根据 Handler 类型包装上下文，返回绑定超时的新 Context 与取消函数。
func (h *BaseHandler) WithTimeout(ctx context.Context, kind HandlerType) (context.Context, context.CancelFunc) {
	if h == nil {
		return context.WithTimeout(ctx, fallbackDefaultTimeout)
	}
	var timeout time.Duration
	switch kind {
	case HandlerTypeCommand:
		timeout = h.timeouts.Command
	case HandlerTypeQuery:
		timeout = h.timeouts.Query
	default:
		timeout = h.timeouts.Default
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// ExtractMetadata 从 Kratos 服务端 Transport 的请求头解析调用方信息。
// HTTP 请求额外读取 visitor_id Cookie。
func (h *BaseHandler) ExtractMetadata(ctx context.Context) metadata.HandlerMetadata {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return metadata.HandlerMetadata{}
	}
	meta := metadata.FromHeader(tr.RequestHeader())
	if ht, ok := tr.(khttp.Transporter); ok && ht.Request() != nil {
		if cookie, err := ht.Request().Cookie(metadata.CookieVisitorID); err == nil {
			meta.VisitorID = strings.TrimSpace(cookie.Value)
		}
	}
	return meta
}

// Validate 使用 validator 校验请求体，失败时返回 400。
func (h *BaseHandler) Validate(v any) error {
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return kerrors.BadRequest(reasonBadRequest, "invalid field "+fe.Field()+": "+fe.Tag())
		}
		return kerrors.BadRequest(reasonBadRequest, err.Error()).WithCause(err)
	}
	return nil
}

// invoke 在超时与 Metadata 注入后调用业务函数。
func (h *BaseHandler) invoke(ctx context.Context, kind HandlerType, fn func(context.Context) (any, error)) (any, error) {
	meta := h.ExtractMetadata(ctx)
	timeoutCtx, cancel := h.WithTimeout(ctx, kind)
	defer cancel()
	return fn(metadata.Inject(timeoutCtx, meta))
}
