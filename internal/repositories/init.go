package repositories

import "github.com/google/wire"

// ProviderSet 暴露类型化仓储的构造函数；存储后端由 infrastructure/data 选定。
var ProviderSet = wire.NewSet(
	NewVideoRepository,
	NewUserInteractionRepository,
	NewCatalogEntityRepository,
	NewAdStatsRepository,
	NewVisitorStatsRepository,
)
