package httpserver

import "github.com/google/wire"

// ProviderSet bundles the HTTP server and telemetry providers for Wire.
var ProviderSet = wire.NewSet(NewTelemetry, NewHTTPServer)
