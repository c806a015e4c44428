package database

import "github.com/google/wire"

// ProviderSet 暴露连接池与事务管理器构造器。
var ProviderSet = wire.NewSet(
	NewPgxPool,
	NewTxManager,
)
