package configloader

import (
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/wire"
)

// ProviderSet exposes configuration-derived dependencies for Wire graphs.
var ProviderSet = wire.NewSet(
	ProvideBootstrap,
	ProvideServiceMetadata,
	ProvideServerConfig,
	ProvideDataConfig,
	ProvideListingConfig,
	ProvideMetricsConfig,
	ProvideVisitorConfig,
	ProvideReconcileConfig,
	ProvideLogConfig,
	ProvideTxConfig,
)

// ProvideBootstrap exposes the strongly typed bootstrap configuration.
func ProvideBootstrap(b *Bundle) *Bootstrap {
	if b == nil || b.Bootstrap == nil {
		bc := &Bootstrap{}
		applyDefaults(bc)
		return bc
	}
	return b.Bootstrap
}

// ProvideServiceMetadata returns the resolved ServiceMetadata.
func ProvideServiceMetadata(b *Bundle) ServiceMetadata {
	if b == nil {
		return ServiceMetadata{}
	}
	return b.Service
}

// ProvideTxConfig returns the txmanager configuration derived from data.postgres.transaction.
func ProvideTxConfig(b *Bundle) txmanager.Config {
	if b == nil {
		return txmanager.Config{}
	}
	return b.TxConfig
}

// ProvideServerConfig returns the server section.
func ProvideServerConfig(bc *Bootstrap) ServerConfig { return bc.Server }

// ProvideDataConfig returns the data section.
func ProvideDataConfig(bc *Bootstrap) DataConfig { return bc.Data }

// ProvideListingConfig returns the listing section.
func ProvideListingConfig(bc *Bootstrap) ListingConfig { return bc.Listing }

// ProvideMetricsConfig returns the metrics section.
func ProvideMetricsConfig(bc *Bootstrap) MetricsConfig { return bc.Metrics }

// ProvideVisitorConfig returns the visitor section.
func ProvideVisitorConfig(bc *Bootstrap) VisitorConfig { return bc.Visitor }

// ProvideReconcileConfig returns the reconcile section.
func ProvideReconcileConfig(bc *Bootstrap) ReconcileConfig { return bc.Reconcile }

// ProvideLogConfig returns the log section.
func ProvideLogConfig(bc *Bootstrap) LogConfig { return bc.Log }
