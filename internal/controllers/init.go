package controllers

import "github.com/google/wire"

// ProviderSet exposes controller/handler constructors for DI.
var ProviderSet = wire.NewSet(
	NewHandlerTimeouts,
	NewBaseHandler,
	NewInteractionHandler,
	NewVideoHandler,
	NewAdHandler,
	NewVisitHandler,
	NewCatalogHandler,
	wire.Struct(new(Handlers), "*"),
)
