// Package services contains application use case orchestration.
package services

import (
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"

	"github.com/google/wire"
)

// ProviderSet is services providers.
var ProviderSet = wire.NewSet(
	NewInteractionService,
	NewCounterPropagator,
	NewMetricsAggregator,
	NewVisitorTracker,
	NewListingService,
	NewCatalogService,

	wire.Bind(new(TxRunner), new(docstore.Store)),
	wire.Bind(new(MarkerStore), new(repositories.MarkerStore)),
	wire.Bind(new(UserInteractionStore), new(*repositories.UserInteractionRepository)),
	wire.Bind(new(VideoCounterStore), new(*repositories.VideoRepository)),
	wire.Bind(new(VideoListStore), new(*repositories.VideoRepository)),
	wire.Bind(new(CatalogVideoStore), new(*repositories.VideoRepository)),
	wire.Bind(new(CatalogEntityStore), new(*repositories.CatalogEntityRepository)),
	wire.Bind(new(AdStatsStore), new(*repositories.AdStatsRepository)),
	wire.Bind(new(VisitorStatsStore), new(*repositories.VisitorStatsRepository)),
)
