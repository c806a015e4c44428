// Package httpserver wires the inbound HTTP server and its middleware stack.
package httpserver

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/controllers"
	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/metadata"
	kmetrics "github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/go-kratos/kratos/v2/middleware/ratelimit"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readinessTimeout = 2 * time.Second

// ReadinessChecker 检查外部依赖是否可用。
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// NewHTTPServer 构造 HTTP Server，注册业务路由与探针。
func NewHTTPServer(cfg configloader.ServerConfig, handlers *controllers.Handlers, ready ReadinessChecker, telemetry *Telemetry, logger log.Logger) *khttp.Server {
	middlewares := []khttp.ServerOption{
		khttp.Middleware(
			tracing.Server(),
			recovery.Recovery(),
			metadata.Server(
				metadata.WithPropagatedPrefix("x-md-"),
			),
			ratelimit.Server(),
			metricsMiddleware(telemetry),
			logging.Server(logger),
		),
	}
	opts := append(middlewares, serverOptions(cfg.HTTP)...)
	srv := khttp.NewServer(opts...)

	srv.Handle("/healthz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	}))
	srv.Handle("/readyz", readinessHandler(ready, logger))
	if telemetry != nil && telemetry.PrometheusRegistry != nil {
		srv.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	}

	handlers.Register(srv)
	return srv
}

func serverOptions(c configloader.HTTPConfig) []khttp.ServerOption {
	var opts []khttp.ServerOption
	if c.Network != "" {
		opts = append(opts, khttp.Network(c.Network))
	}
	if c.Addr != "" {
		opts = append(opts, khttp.Address(c.Addr))
	}
	if c.Timeout.Duration > 0 {
		opts = append(opts, khttp.Timeout(c.Timeout.Duration))
	}
	return opts
}

func metricsMiddleware(t *Telemetry) middleware.Middleware {
	if t == nil {
		return func(next middleware.Handler) middleware.Handler { return next }
	}
	return kmetrics.Server(
		kmetrics.WithRequests(t.RequestCounter),
		kmetrics.WithSeconds(t.SecondsHistogram),
	)
}

func readinessHandler(ready ReadinessChecker, logger log.Logger) stdhttp.Handler {
	helper := log.NewHelper(logger)
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if ready == nil {
			w.WriteHeader(stdhttp.StatusOK)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := ready.Ready(ctx); err != nil {
			helper.WithContext(ctx).Warnf("readiness check failed: %v", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(stdhttp.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		w.WriteHeader(stdhttp.StatusOK)
	})
}
