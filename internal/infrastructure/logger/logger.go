// Package logger 构造带 trace/span 关联的 Kratos Logger。
package logger

import (
	"context"
	"strings"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"

	gclog "github.com/bionicotaku/lingo-utils/gclog"
	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/trace"
)

// Config captures runtime metadata used to annotate logs.
type Config struct {
	Service string
	Version string
	HostID  string
	Env     string
	Level   string
}

// ProvideConfig 由服务元信息与 log 配置组装 Config。
func ProvideConfig(meta configloader.ServiceMetadata, lc configloader.LogConfig) Config {
	return Config{
		Service: meta.Name,
		Version: meta.Version,
		HostID:  meta.InstanceID,
		Env:     meta.Environment,
		Level:   lc.Level,
	}
}

// NewLogger builds a Kratos-compatible logger with trace/span enrichment and level filtering.
func NewLogger(cfg Config) (log.Logger, error) {
	baseLogger, err := gclog.NewLogger(
		gclog.WithService(cfg.Service),
		gclog.WithVersion(cfg.Version),
		gclog.WithEnvironment(cfg.Env),
		gclog.WithStaticLabels(map[string]string{"service.id": cfg.HostID}),
		gclog.EnableSourceLocation(),
	)
	if err != nil {
		return nil, err
	}
	filtered := log.NewFilter(baseLogger, log.FilterLevel(parseLevel(cfg.Level)))
	return log.With(
		filtered,
		"trace_id", log.Valuer(func(ctx context.Context) interface{} {
			sc := trace.SpanContextFromContext(ctx)
			if sc.HasTraceID() {
				return sc.TraceID().String()
			}
			return ""
		}),
		"span_id", log.Valuer(func(ctx context.Context) interface{} {
			sc := trace.SpanContextFromContext(ctx)
			if sc.HasSpanID() {
				return sc.SpanID().String()
			}
			return ""
		}),
	), nil
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
