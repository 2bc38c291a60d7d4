package message

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"Greeter-Service/internal/config"
	xerrors "Greeter-Service/internal/errors"
	mysqlstore "Greeter-Service/internal/storage/mysql"
	redisstore "Greeter-Service/internal/storage/redis"
	"Greeter-Service/pkg/logger"
)

// Chain 是按优先级排列的来源以及它们持有的远程连接。
type Chain struct {
	Sources []Source
	closers []func() error
}

// Close 释放远程来源的连接。
func (c *Chain) Close() error {
	if c == nil {
		return nil
	}
	var err error
	for _, closeFn := range c.closers {
		err = stdErrors.Join(err, closeFn())
	}
	c.closers = nil
	return err
}

// Open 根据配置构造来源链：进程内配置（命令行 > 环境变量 > 文件）优先，
// 其后依次是 Redis 与 MySQL。进程内已有 message 时不会连接任何远程来源；
// 否则只有启用的远程来源才会建立连接。
func Open(ctx context.Context, cfg *config.Config) (*Chain, error) {
	if cfg == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "配置不能为空")
	}
	log := logger.Named("message")

	origin := cfg.MessageOrigin
	if origin == "" {
		origin = config.OriginFile
	}
	chain := &Chain{Sources: []Source{Static(origin, cfg.Message)}}
	if cfg.Message != nil {
		return chain, nil
	}

	if r := cfg.Sources.Redis; r.Enabled {
		client, err := redisstore.Open(ctx, redisstore.Config{
			Address:  r.Address,
			Password: r.Password,
			DB:       r.DB,
		})
		if err != nil {
			_ = chain.Close()
			return nil, xerrors.Wrap(xerrors.CodeSourceFailure, err, "初始化 Redis 来源失败")
		}
		chain.closers = append(chain.closers, client.Close)
		chain.Sources = append(chain.Sources, NewRedisSource(client, r.Key))
		log.Debug("已启用 Redis 来源", slog.String("address", r.Address), slog.String("key", r.Key))
	}

	if m := cfg.Sources.MySQL; m.Enabled {
		repo, err := mysqlstore.Open(ctx, mysqlstore.Config{
			DSN:             m.DSN,
			MaxOpenConns:    m.MaxOpenConns,
			ConnMaxLifetime: time.Duration(m.ConnMaxLifetimeSeconds) * time.Second,
		}, m.Table)
		if err != nil {
			_ = chain.Close()
			return nil, xerrors.Wrap(xerrors.CodeSourceFailure, err, "初始化 MySQL 来源失败")
		}
		chain.closers = append(chain.closers, repo.Close)
		chain.Sources = append(chain.Sources, NewMySQLSource(repo, m.Name))
		log.Debug("已启用 MySQL 来源", slog.String("dsn", mysqlstore.RedactDSN(m.DSN)), slog.String("table", repo.Table()))
	}

	return chain, nil
}

// ResolveConfig 打开来源链、解析 message 并立即释放远程连接。
func ResolveConfig(ctx context.Context, cfg *config.Config) (Message, error) {
	chain, err := Open(ctx, cfg)
	if err != nil {
		return Message{}, err
	}
	defer chain.Close()
	return Resolve(ctx, chain.Sources...)
}

var _ StringGetter = (*redis.Client)(nil)
