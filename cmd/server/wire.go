//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"context"

	"github.com/bionicotaku/lingo-services-listing/internal/controllers"
	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/data"
	httpserver "github.com/bionicotaku/lingo-services-listing/internal/infrastructure/http_server"
	loginfra "github.com/bionicotaku/lingo-services-listing/internal/infrastructure/logger"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/services"
	"github.com/bionicotaku/lingo-services-listing/internal/tasks/reconcile"

	"github.com/go-kratos/kratos/v2"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(context.Context, *configloader.Bundle) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		loginfra.ProviderSet,
		data.ProviderSet,
		repositories.ProviderSet,
		services.ProviderSet,
		controllers.ProviderSet,
		httpserver.ProviderSet,
		reconcile.ProviderSet,
		wire.Bind(new(httpserver.ReadinessChecker), new(*data.Data)),
		newApp,
	))
}
