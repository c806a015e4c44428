// Package main boots the Kratos HTTP entrypoint for the listing service.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/tasks/reconcile"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name string
	// Version is the version of the compiled software.
	Version string

	id, _ = os.Hostname()
)

func newApp(meta configloader.ServiceMetadata, logger log.Logger, hs *http.Server, rs *reconcile.Server) *kratos.App {
	name := Name
	if name == "" {
		name = meta.Name
	}
	version := Version
	if version == "" {
		version = meta.Version
	}
	return kratos.New(
		kratos.ID(id),
		kratos.Name(name),
		kratos.Version(version),
		kratos.Metadata(map[string]string{"environment": meta.Environment}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			rs,
		),
	)
}

func main() {
	// Parse command-line flags (currently only -conf).
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	confPath := fs.String("conf", "", "config path, eg: -conf configs/config.yaml")
	if err := fs.Parse(os.Args[1:]); err != nil {
		panic(err)
	}

	// Load configuration (.env, YAML, env overrides, defaults, validation).
	bundle, err := configloader.Build(configloader.Params{ConfPath: *confPath})
	if err != nil {
		panic(err)
	}

	// Assemble all dependencies via Wire and create the Kratos app.
	app, cleanup, err := wireApp(context.Background(), bundle)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// Start the application and block until a stop signal is received.
	if err := app.Run(); err != nil {
		panic(err)
	}
}
