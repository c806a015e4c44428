package configloader

import "time"

const (
	// defaultConfPath 未指定 -conf 与 CONF_PATH 时使用的配置目录。
	defaultConfPath    = "configs"
	defaultEnvironment = "development"
	defaultServiceName = "listing"
	defaultVersion     = "dev"
)

var (
	defaultAdPositions  = []string{"top", "sidebar", "inline", "bottom"}
	defaultMobileTokens = []string{"mobile", "android", "iphone", "ipad", "ipod", "windows phone", "blackberry", "opera mini", "iemobile"}
)

// applyDefaults 为缺省字段填充默认值，不覆盖显式配置。
func applyDefaults(bc *Bootstrap) {
	if bc.Server.HTTP.Addr == "" {
		bc.Server.HTTP.Addr = "0.0.0.0:8000"
	}
	setDuration(&bc.Server.HTTP.Timeout, 5*time.Second)
	setDuration(&bc.Server.Handlers.DefaultTimeout, 5*time.Second)
	setDuration(&bc.Server.Handlers.QueryTimeout, 3*time.Second)

	if bc.Data.Driver == "" {
		bc.Data.Driver = DriverMemory
	}
	if bc.Data.Markers == "" {
		bc.Data.Markers = MarkersMemory
	}
	setDuration(&bc.Data.Mongo.ConnectTimeout, 10*time.Second)
	if bc.Data.Mongo.Database == "" {
		bc.Data.Mongo.Database = "listing"
	}
	setDuration(&bc.Data.Redis.DialTimeout, 5*time.Second)
	if bc.Data.Postgres.Transaction.DefaultIsolation == "" {
		bc.Data.Postgres.Transaction.DefaultIsolation = "read_committed"
	}

	if bc.Listing.DefaultPageSize == 0 {
		bc.Listing.DefaultPageSize = 20
	}
	if bc.Listing.MaxPageSize == 0 {
		bc.Listing.MaxPageSize = 100
	}
	if bc.Listing.SearchCap == 0 {
		bc.Listing.SearchCap = 50
	}

	if bc.Metrics.TimeZone == "" {
		bc.Metrics.TimeZone = "UTC"
	}
	if len(bc.Metrics.AdPositions) == 0 {
		bc.Metrics.AdPositions = append([]string(nil), defaultAdPositions...)
	}

	setDuration(&bc.Visitor.Window, 30*time.Minute)
	if bc.Visitor.AdminPrefix == "" {
		bc.Visitor.AdminPrefix = "/admin"
	}
	if len(bc.Visitor.MobileTokens) == 0 {
		bc.Visitor.MobileTokens = append([]string(nil), defaultMobileTokens...)
	}
	setDuration(&bc.Visitor.SessionTTL, 24*time.Hour)
	setDuration(&bc.Visitor.MarkerTTL, 7*24*time.Hour)

	setDuration(&bc.Reconcile.Interval, 10*time.Minute)
	if bc.Reconcile.BatchSize == 0 {
		bc.Reconcile.BatchSize = 200
	}

	if bc.Log.Level == "" {
		bc.Log.Level = "info"
	}
}

func setDuration(d *Duration, fallback time.Duration) {
	if d.Duration <= 0 {
		d.Duration = fallback
	}
}
