package reconcile

import (
	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet 暴露对账任务与其 Server。
var ProviderSet = wire.NewSet(ProvideTask, NewServer)

// ProvideTask 在 reconcile.enabled 时构造任务，否则返回 nil。
func ProvideTask(
	cfg configloader.ReconcileConfig,
	store docstore.Store,
	videos *repositories.VideoRepository,
	users *repositories.UserInteractionRepository,
	aggregator *services.MetricsAggregator,
	logger log.Logger,
) *Task {
	if !cfg.Enabled {
		log.NewHelper(logger).Info("reconcile task disabled")
		return nil
	}
	return NewTask(store, videos, users, aggregator, cfg, logger)
}
