// Package configloader 负责加载 configs/config.yaml，应用环境变量覆盖与默认值，
// 并以强类型结构体的形式交给 Wire 注入。
package configloader

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Bootstrap 对应配置文件的顶层结构。
type Bootstrap struct {
	Server    ServerConfig    `json:"server"`
	Data      DataConfig      `json:"data"`
	Listing   ListingConfig   `json:"listing"`
	Metrics   MetricsConfig   `json:"metrics"`
	Visitor   VisitorConfig   `json:"visitor"`
	Reconcile ReconcileConfig `json:"reconcile"`
	Log       LogConfig       `json:"log"`
}

// ServerConfig HTTP 服务与 Handler 超时配置。
type ServerConfig struct {
	HTTP     HTTPConfig    `json:"http"`
	Handlers HandlerConfig `json:"handlers"`
}

// HTTPConfig HTTP 监听配置。
type HTTPConfig struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr" validate:"required"`
	Timeout Duration `json:"timeout"`
}

// HandlerConfig 按 Handler 类型区分的超时。
type HandlerConfig struct {
	DefaultTimeout Duration `json:"default_timeout"`
	CommandTimeout Duration `json:"command_timeout"`
	QueryTimeout   Duration `json:"query_timeout"`
}

// 文档存储后端。
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// 标记存储后端。
const (
	MarkersMemory = "memory"
	MarkersRedis  = "redis"
)

// DataConfig 存储后端配置。
type DataConfig struct {
	Driver   string         `json:"driver" validate:"oneof=memory postgres mongo"`
	Markers  string         `json:"markers" validate:"oneof=memory redis"`
	Postgres PostgresConfig `json:"postgres"`
	Mongo    MongoConfig    `json:"mongo"`
	Redis    RedisConfig    `json:"redis"`
}

// PostgresConfig PostgreSQL 连接池配置。
type PostgresConfig struct {
	DSN                      string            `json:"dsn"`
	MaxOpenConns             int32             `json:"max_open_conns" validate:"gte=0"`
	MinOpenConns             int32             `json:"min_open_conns" validate:"gte=0"`
	MaxConnLifetime          Duration          `json:"max_conn_lifetime"`
	MaxConnIdleTime          Duration          `json:"max_conn_idle_time"`
	HealthCheckPeriod        Duration          `json:"health_check_period"`
	Schema                   string            `json:"schema"`
	EnablePreparedStatements bool              `json:"enable_prepared_statements"`
	Transaction              TransactionConfig `json:"transaction"`
}

// TransactionConfig 传递给 txmanager 的事务参数。
type TransactionConfig struct {
	DefaultIsolation string   `json:"default_isolation" validate:"omitempty,oneof=read_committed repeatable_read serializable"`
	DefaultTimeout   Duration `json:"default_timeout"`
	LockTimeout      Duration `json:"lock_timeout"`
	MaxRetries       int      `json:"max_retries" validate:"gte=0"`
}

// MongoConfig MongoDB 连接配置。
type MongoConfig struct {
	URI            string   `json:"uri"`
	Database       string   `json:"database"`
	ConnectTimeout Duration `json:"connect_timeout"`
}

// RedisConfig Redis 连接配置。
type RedisConfig struct {
	Addr        string   `json:"addr"`
	Password    string   `json:"password"`
	DB          int      `json:"db" validate:"gte=0"`
	DialTimeout Duration `json:"dial_timeout"`
}

// ListingConfig 分页与搜索配置。
type ListingConfig struct {
	DefaultPageSize int `json:"default_page_size" validate:"gte=1"`
	MaxPageSize     int `json:"max_page_size" validate:"gtefield=DefaultPageSize"`
	SearchCap       int `json:"search_cap" validate:"gte=1"`
}

// MetricsConfig 广告统计配置。
type MetricsConfig struct {
	TimeZone    string   `json:"time_zone" validate:"required"`
	AdPositions []string `json:"ad_positions" validate:"dive,required"`
}

// VisitorConfig 访客统计配置。
type VisitorConfig struct {
	Window       Duration `json:"window"`
	AdminPrefix  string   `json:"admin_prefix"`
	MobileTokens []string `json:"mobile_tokens" validate:"dive,required"`
	SessionTTL   Duration `json:"session_ttl"`
	MarkerTTL    Duration `json:"marker_ttl"`
}

// ReconcileConfig 计数对账任务配置。
type ReconcileConfig struct {
	Enabled   bool     `json:"enabled"`
	Interval  Duration `json:"interval"`
	BatchSize int      `json:"batch_size" validate:"gte=1"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `json:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Duration 支持 "5s" 形式的字符串或秒数。
type Duration struct {
	time.Duration
}

// UnmarshalJSON 实现 json.Unmarshaler。
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		d.Duration = 0
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
	case string:
		if v == "" {
			d.Duration = 0
			return nil
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			d.Duration = time.Duration(secs * float64(time.Second))
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %v", raw)
	}
	return nil
}

// MarshalJSON 实现 json.Marshaler。
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
