package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	xerrors "Greeter-Service/internal/errors"
)

// Config 描述了 greeterd 在启动阶段需要加载的全部配置。
type Config struct {
	Message *string       `json:"message" yaml:"message" toml:"message"`
	Server  ServerConfig  `json:"server" yaml:"server" toml:"server"`
	Sources SourcesConfig `json:"sources" yaml:"sources" toml:"sources"`
	Events  EventsConfig  `json:"events" yaml:"events" toml:"events"`
	Log     LogConfig     `json:"log" yaml:"log" toml:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics" toml:"metrics"`

	// MessageOrigin 记录 Message 来自哪一层（file、env、flag）。
	MessageOrigin string `json:"-" yaml:"-" toml:"-"`
}

// ServerConfig 控制 HTTP 服务的监听地址与超时。
type ServerConfig struct {
	Address                  string `json:"address" yaml:"address" toml:"address"`
	ShutdownTimeoutSeconds   int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
	ReadHeaderTimeoutSeconds int    `json:"read_header_timeout_seconds" yaml:"read_header_timeout_seconds" toml:"read_header_timeout_seconds"`
}

// ShutdownTimeout 返回优雅关闭的等待时间。
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// ReadHeaderTimeout 返回读取请求头的超时时间。
func (s ServerConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(s.ReadHeaderTimeoutSeconds) * time.Second
}

// SourcesConfig 描述远程参数存储，文件与环境变量之外的 message 来源。
type SourcesConfig struct {
	Redis RedisSourceConfig `json:"redis" yaml:"redis" toml:"redis"`
	MySQL MySQLSourceConfig `json:"mysql" yaml:"mysql" toml:"mysql"`
}

// RedisSourceConfig 描述从 Redis 读取 message 所需的连接参数。
type RedisSourceConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Address  string `json:"address" yaml:"address" toml:"address"`
	Password string `json:"password" yaml:"password" toml:"password"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
	Key      string `json:"key" yaml:"key" toml:"key"`
}

// MySQLSourceConfig 描述从 MySQL settings 表读取 message 所需的参数。
type MySQLSourceConfig struct {
	Enabled                bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	DSN                    string `json:"dsn" yaml:"dsn" toml:"dsn"`
	Table                  string `json:"table" yaml:"table" toml:"table"`
	Name                   string `json:"name" yaml:"name" toml:"name"`
	MaxOpenConns           int    `json:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds" toml:"conn_max_lifetime_seconds"`
}

// EventsConfig 控制生命周期事件的投递。
type EventsConfig struct {
	RabbitMQ RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq" toml:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 连接参数。
type RabbitMQConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	URL     string `json:"url" yaml:"url" toml:"url"`
	Queue   string `json:"queue" yaml:"queue" toml:"queue"`
	Durable bool   `json:"durable" yaml:"durable" toml:"durable"`
}

// LogConfig 对应 pkg/logger 的配置。
type LogConfig struct {
	Level   string       `json:"level" yaml:"level" toml:"level"`
	Format  string       `json:"format" yaml:"format" toml:"format"`
	Outputs []string     `json:"outputs" yaml:"outputs" toml:"outputs"`
	Access  AccessConfig `json:"access" yaml:"access" toml:"access"`
}

// AccessConfig 控制访问日志。
type AccessConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Path       string `json:"path" yaml:"path" toml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress" toml:"compress"`
}

// MetricsConfig 控制 /metrics 旁路监听。地址为空时不启动。
type MetricsConfig struct {
	Address string `json:"address" yaml:"address" toml:"address"`
}

// 消息来源标识。
const (
	OriginFile = "file"
	OriginEnv  = "env"
	OriginFlag = "flag"
)

// 识别的环境变量。
const (
	EnvMessage        = "GREETER_MESSAGE"
	EnvMessagePlain   = "MESSAGE"
	EnvListen         = "GREETER_LISTEN"
	EnvPort           = "PORT"
	EnvLogLevel       = "GREETER_LOG_LEVEL"
	EnvLogFormat      = "GREETER_LOG_FORMAT"
	EnvMetricsAddress = "GREETER_METRICS_ADDRESS"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Default 返回不依赖任何配置文件的默认配置。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults("")
	return cfg
}

// Load 负责解析指定路径的配置文件，路径为空时只返回默认配置。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "读取配置文件失败",
			xerrors.WithMetadata("path", path))
	}

	var cfg Config
	if err := decode(path, content, &cfg); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析配置失败",
			xerrors.WithMetadata("path", path))
	}
	if cfg.Message != nil {
		cfg.MessageOrigin = OriginFile
	}

	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

// decode 按扩展名选择格式，三种格式都拒绝未知字段。
func decode(path string, content []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(content)) == 0 {
			return nil
		}
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml":
		return toml.NewDecoder(bytes.NewReader(content)).DisallowUnknownFields().Decode(cfg)
	default:
		dec := json.NewDecoder(bytes.NewReader(content))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}
	if c.Server.ReadHeaderTimeoutSeconds <= 0 {
		c.Server.ReadHeaderTimeoutSeconds = 5
	}

	if c.Sources.Redis.Key == "" {
		c.Sources.Redis.Key = "greeter:message"
	}
	if c.Sources.MySQL.Table == "" {
		c.Sources.MySQL.Table = "settings"
	}
	if c.Sources.MySQL.Name == "" {
		c.Sources.MySQL.Name = "message"
	}
	if c.Sources.MySQL.MaxOpenConns <= 0 {
		c.Sources.MySQL.MaxOpenConns = 2
	}

	if c.Events.RabbitMQ.Queue == "" {
		c.Events.RabbitMQ.Queue = "greeter.lifecycle"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	for i, out := range c.Log.Outputs {
		c.Log.Outputs[i] = resolvePath(baseDir, out)
	}
	if c.Log.Access.Path == "" {
		c.Log.Access.Path = filepath.Join("logs", "access.log")
	}
	c.Log.Access.Path = resolvePath(baseDir, c.Log.Access.Path)
}

func resolvePath(baseDir, path string) string {
	switch strings.ToLower(path) {
	case "stdout", "stderr", "":
		return path
	}
	if baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LookupFunc 与 os.LookupEnv 的签名一致，用于区分未设置与空值。
type LookupFunc func(key string) (string, bool)

// ApplyEnv 使用环境变量覆盖配置文件中的值。
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if value, ok := lookup(EnvMessage); ok {
		c.SetMessage(value, OriginEnv)
	} else if value, ok := lookup(EnvMessagePlain); ok {
		c.SetMessage(value, OriginEnv)
	}

	if value, ok := lookup(EnvPort); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || port <= 0 || port > 65535 {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("环境变量 %s 不是合法端口: %q", EnvPort, value))
		}
		c.Server.Address = withPort(c.Server.Address, port)
	}
	if value, ok := lookup(EnvListen); ok && strings.TrimSpace(value) != "" {
		c.Server.Address = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvLogLevel); ok && value != "" {
		c.Log.Level = value
	}
	if value, ok := lookup(EnvLogFormat); ok && value != "" {
		c.Log.Format = value
	}
	if value, ok := lookup(EnvMetricsAddress); ok {
		c.Metrics.Address = strings.TrimSpace(value)
	}
	return nil
}

// withPort 保留原地址中的主机部分，仅替换端口。地址不含端口时整体视为主机。
func withPort(address string, port int) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = strings.TrimSpace(address)
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SetMessage 以更高优先级覆盖 message。
func (c *Config) SetMessage(value, origin string) {
	v := value
	c.Message = &v
	c.MessageOrigin = origin
}

// Validate 检查配置的一致性。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "server.address 不能为空")
	}

	redis := c.Sources.Redis
	if redis.Enabled {
		if strings.TrimSpace(redis.Address) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "sources.redis.address 不能为空")
		}
		if strings.TrimSpace(redis.Key) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "sources.redis.key 不能为空")
		}
	}

	mysql := c.Sources.MySQL
	if mysql.Enabled {
		if strings.TrimSpace(mysql.DSN) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "sources.mysql.dsn 不能为空")
		}
		if !identifierPattern.MatchString(mysql.Table) {
			return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("sources.mysql.table 非法: %q", mysql.Table))
		}
	}

	if c.Events.RabbitMQ.Enabled && strings.TrimSpace(c.Events.RabbitMQ.URL) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "events.rabbitmq.url 不能为空")
	}

	if c.Log.Access.Enabled && strings.TrimSpace(c.Log.Access.Path) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "log.access.path 不能为空")
	}
	return nil
}
