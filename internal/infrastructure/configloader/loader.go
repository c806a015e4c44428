package configloader

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	_ "github.com/go-kratos/kratos/v2/encoding/yaml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	envConfPath       = "CONF_PATH"
	envServiceName    = "SERVICE_NAME"
	envServiceVersion = "SERVICE_VERSION"
	envAppEnv         = "APP_ENV"
	envDatabaseURL    = "DATABASE_URL"
	envMongoURI       = "MONGO_URI"
	envRedisAddr      = "REDIS_ADDR"
	envDocstoreDriver = "DOCSTORE_DRIVER"
	envPort           = "PORT"
)

var envFileNames = []string{".env.local", ".env"}

// Params 包含构造配置 Bundle 所需的运行时输入参数。
type Params struct {
	ConfPath string // 配置文件路径（可为空，使用默认值）
}

// ServiceMetadata 保存服务标识信息，供日志和指标标签使用。
type ServiceMetadata struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// Bundle 聚合强类型的配置片段，供下游 Wire 注入使用。
type Bundle struct {
	Bootstrap *Bootstrap
	Service   ServiceMetadata
	TxConfig  txmanager.Config
}

// BuildError 捕获配置构建过程中的上下文错误信息。
type BuildError struct {
	Stage string
	Path  string
	Err   error
}

// Error 实现 error 接口，提供包含上下文的错误信息。
func (e BuildError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("config %s at %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

// Unwrap 暴露底层错误，支持 errors.Is/As 链式查询。
func (e BuildError) Unwrap() error {
	return e.Err
}

// Build 从配置文件构建 Bundle。
//
// 流程：
// 1. 解析配置路径并 best-effort 加载 .env 文件
// 2. 加载配置、应用环境变量覆盖与默认值
// 3. validator 校验 + 按驱动检查必填项
// 4. 推导服务元信息与事务配置
func Build(params Params) (*Bundle, error) {
	confPath := ResolveConfPath(params.ConfPath)
	loadEnvFiles(confPath)

	bootstrap, err := loadBootstrap(confPath)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Bootstrap: bootstrap,
		Service:   buildServiceMetadata(),
		TxConfig:  toTxManagerConfig(bootstrap.Data.Postgres.Transaction),
	}, nil
}

// ResolveConfPath 应用回退规则确定要加载的配置目录/文件路径。
// 优先级：显式传入路径 > CONF_PATH 环境变量 > 默认路径。
func ResolveConfPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(envConfPath); env != "" {
		return env
	}
	return defaultConfPath
}

// loadBootstrap 从指定路径加载并解析配置。
//
// 错误阶段：
//   - "load": 文件读取失败
//   - "scan": YAML/JSON 解析失败
//   - "validate": 配置校验失败
func loadBootstrap(confPath string) (*Bootstrap, error) {
	c := config.New(config.WithSource(file.NewSource(confPath)))
	if err := c.Load(); err != nil {
		return nil, BuildError{Stage: "load", Path: confPath, Err: err}
	}
	defer c.Close()

	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		return nil, BuildError{Stage: "scan", Path: confPath, Err: err}
	}
	applyEnvOverrides(&bc)
	applyDefaults(&bc)

	if err := Validate(&bc); err != nil {
		return nil, BuildError{Stage: "validate", Path: confPath, Err: err}
	}
	return &bc, nil
}

// Validate 执行结构体标签校验，并检查所选后端的必填连接参数。
func Validate(bc *Bootstrap) error {
	if err := validator.New().Struct(bc); err != nil {
		return err
	}
	switch bc.Data.Driver {
	case DriverPostgres:
		if strings.TrimSpace(bc.Data.Postgres.DSN) == "" {
			return fmt.Errorf("data.postgres.dsn is required for driver %s (set %s)", DriverPostgres, envDatabaseURL)
		}
	case DriverMongo:
		if strings.TrimSpace(bc.Data.Mongo.URI) == "" {
			return fmt.Errorf("data.mongo.uri is required for driver %s (set %s)", DriverMongo, envMongoURI)
		}
	}
	if bc.Data.Markers == MarkersRedis && strings.TrimSpace(bc.Data.Redis.Addr) == "" {
		return fmt.Errorf("data.redis.addr is required for redis markers (set %s)", envRedisAddr)
	}
	if _, err := time.LoadLocation(bc.Metrics.TimeZone); err != nil {
		return fmt.Errorf("metrics.time_zone: %w", err)
	}
	return nil
}

// applyEnvOverrides 应用环境变量覆盖配置文件中的特定字段。
//
// 支持的环境变量：
//   - DATABASE_URL: data.postgres.dsn
//   - MONGO_URI: data.mongo.uri
//   - REDIS_ADDR: data.redis.addr，同时启用 redis 标记存储
//   - DOCSTORE_DRIVER: data.driver
//   - PORT: server.http.addr 的端口部分（保留 host）
//
// 环境变量为空时不覆盖，保留配置文件原值。
func applyEnvOverrides(bc *Bootstrap) {
	if bc == nil {
		return
	}
	if dsn := os.Getenv(envDatabaseURL); dsn != "" {
		bc.Data.Postgres.DSN = dsn
	}
	if uri := os.Getenv(envMongoURI); uri != "" {
		bc.Data.Mongo.URI = uri
	}
	if addr := os.Getenv(envRedisAddr); addr != "" {
		bc.Data.Redis.Addr = addr
		bc.Data.Markers = MarkersRedis
	}
	if driver := os.Getenv(envDocstoreDriver); driver != "" {
		bc.Data.Driver = strings.ToLower(strings.TrimSpace(driver))
	}
	if port := os.Getenv(envPort); port != "" {
		bc.Server.HTTP.Addr = replacePort(bc.Server.HTTP.Addr, port)
	}
}

// buildServiceMetadata 构建服务元信息，用于日志与指标标签。
// 数据来源优先级：环境变量 > 默认值。
func buildServiceMetadata() ServiceMetadata {
	host, _ := os.Hostname()
	return ServiceMetadata{
		Name:        firstNonEmpty(os.Getenv(envServiceName), defaultServiceName),
		Version:     firstNonEmpty(os.Getenv(envServiceVersion), defaultVersion),
		Environment: firstNonEmpty(os.Getenv(envAppEnv), defaultEnvironment),
		InstanceID:  firstNonEmpty(host, "unknown"),
	}
}

// loadEnvFiles best-effort 加载配置相关的 .env 文件，失败时忽略以保持幂等。
func loadEnvFiles(confPath string) {
	files := envFileCandidates(confPath)
	if len(files) == 0 {
		return
	}
	_ = godotenv.Load(files...)
}

// envFileCandidates 按目录优先级返回存在的 .env 文件；.env.local 先于 .env。
// godotenv 不覆盖已设置的变量，因此靠前的文件优先。
func envFileCandidates(confPath string) []string {
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range orderedDirs(confPath) {
		for _, name := range envFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			files = append(files, candidate)
			seen[candidate] = struct{}{}
		}
	}
	return files
}

// orderedDirs 返回 confPath 所在目录与当前工作目录（去重）。
func orderedDirs(confPath string) []string {
	var dirs []string
	appendUnique := func(path string) {
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		for _, existing := range dirs {
			if existing == clean {
				return
			}
		}
		dirs = append(dirs, clean)
	}

	if confPath != "" {
		if info, err := os.Stat(confPath); err == nil {
			if info.IsDir() {
				appendUnique(confPath)
			} else {
				appendUnique(filepath.Dir(confPath))
			}
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		appendUnique(cwd)
	}
	return dirs
}

// replacePort 替换地址中的端口部分，保留 host。
//   - "0.0.0.0:8000" -> "0.0.0.0:8080"
//   - "[::1]:8000" -> "[::1]:8080"
func replacePort(addr, newPort string) string {
	if addr == "" {
		return "0.0.0.0:" + newPort
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "0.0.0.0:" + newPort
	}
	return net.JoinHostPort(host, newPort)
}

func toTxManagerConfig(tx TransactionConfig) txmanager.Config {
	return txmanager.Config{
		DefaultIsolation: tx.DefaultIsolation,
		DefaultTimeout:   tx.DefaultTimeout.Duration,
		LockTimeout:      tx.LockTimeout.Duration,
		MaxRetries:       tx.MaxRetries,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
