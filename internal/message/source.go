package message

import (
	"context"
	stdErrors "errors"

	"github.com/redis/go-redis/v9"

	xerrors "Greeter-Service/internal/errors"
	mysqlstore "Greeter-Service/internal/storage/mysql"
)

// ErrNotFound 表示某个来源中没有 message。
var ErrNotFound = stdErrors.New("message not present in source")

// Source 是 message 的一个来源。
type Source interface {
	Name() string
	// Lookup 返回来源中的值；来源没有该值时返回 ErrNotFound。
	Lookup(ctx context.Context) (string, error)
}

// staticSource 包装进程内已知的值（命令行、环境变量、配置文件）。
type staticSource struct {
	name  string
	value *string
}

// Static 返回一个固定值来源，value 为 nil 表示未配置。
func Static(name string, value *string) Source {
	return &staticSource{name: name, value: value}
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Lookup(context.Context) (string, error) {
	if s.value == nil {
		return "", ErrNotFound
	}
	return *s.value, nil
}

// StringGetter 是 go-redis 客户端中 RedisSource 需要的最小能力。
type StringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSource 从 Redis 的一个字符串键读取 message。
type RedisSource struct {
	client StringGetter
	key    string
}

// NewRedisSource 创建 Redis 来源。
func NewRedisSource(client StringGetter, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

// Name 返回来源名称。
func (s *RedisSource) Name() string { return "redis" }

// Lookup 执行 GET，键不存在视为未配置。
func (s *RedisSource) Lookup(ctx context.Context) (string, error) {
	if s.client == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "Redis 客户端未初始化")
	}
	value, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if stdErrors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// SettingsReader 是 MySQLSource 依赖的仓库接口。
type SettingsReader interface {
	Get(ctx context.Context, name string) (string, error)
}

// MySQLSource 从 settings 表读取 message。
type MySQLSource struct {
	repo SettingsReader
	name string
}

// NewMySQLSource 创建 MySQL 来源，name 为 settings 表中的记录名。
func NewMySQLSource(repo SettingsReader, name string) *MySQLSource {
	return &MySQLSource{repo: repo, name: name}
}

// Name 返回来源名称。
func (s *MySQLSource) Name() string { return "mysql" }

// Lookup 查询 settings 表，记录不存在视为未配置。
func (s *MySQLSource) Lookup(ctx context.Context) (string, error) {
	if s.repo == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "MySQL 仓库未初始化")
	}
	value, err := s.repo.Get(ctx, s.name)
	if err != nil {
		if stdErrors.Is(err, mysqlstore.ErrSettingNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}
