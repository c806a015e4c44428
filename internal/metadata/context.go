// Package metadata 提供 HandlerMetadata 在 Context 中的存取工具，供控制器与服务层共享。
package metadata

import (
	"context"
	"strings"
)

// 入站请求中约定的 Header 与 Cookie 名称。
const (
	HeaderUserID         = "x-md-global-user-id"
	HeaderIdempotencyKey = "x-md-idempotency-key"
	HeaderTabID          = "x-tab-id"
	HeaderUserAgent      = "User-Agent"
	CookieVisitorID      = "visitor_id"
)

// HandlerMetadata 描述从请求头解析出的调用方信息。
type HandlerMetadata struct {
	UserID         string
	IdempotencyKey string
	TabID          string
	UserAgent      string
	VisitorID      string
}

// IsZero 判断 Metadata 是否为空。
func (m HandlerMetadata) IsZero() bool {
	return m.UserID == "" &&
		m.IdempotencyKey == "" &&
		m.TabID == "" &&
		m.UserAgent == "" &&
		m.VisitorID == ""
}

// HasUser 判断是否携带已认证用户。
func (m HandlerMetadata) HasUser() bool {
	return strings.TrimSpace(m.UserID) != ""
}

// HeaderReader 是 transport.Header 的只读子集。
type HeaderReader interface {
	Get(key string) string
}

// FromHeader 从请求头解析 Metadata；visitor_id 由调用方从 Cookie 补充。
func FromHeader(h HeaderReader) HandlerMetadata {
	if h == nil {
		return HandlerMetadata{}
	}
	return HandlerMetadata{
		UserID:         strings.TrimSpace(h.Get(HeaderUserID)),
		IdempotencyKey: strings.TrimSpace(h.Get(HeaderIdempotencyKey)),
		TabID:          strings.TrimSpace(h.Get(HeaderTabID)),
		UserAgent:      h.Get(HeaderUserAgent),
	}
}

type ctxKey struct{}

// Inject 将 HandlerMetadata 注入 Context。
func Inject(ctx context.Context, meta HandlerMetadata) context.Context {
	if meta.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, meta)
}

// FromContext 读取上游注入的 HandlerMetadata。
func FromContext(ctx context.Context) (HandlerMetadata, bool) {
	if ctx == nil {
		return HandlerMetadata{}, false
	}
	meta, ok := ctx.Value(ctxKey{}).(HandlerMetadata)
	return meta, ok
}
