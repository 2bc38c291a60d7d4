package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	xerrors "Greeter-Service/internal/errors"
	mysqlstore "Greeter-Service/internal/storage/mysql"
)

func newMigrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "为 MySQL 来源创建 settings 表",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "seed",
				Usage: "迁移后把进程内（命令行、环境变量或文件）的 message 写入 settings 表",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			m := cfg.Sources.MySQL
			if !m.Enabled {
				return xerrors.New(xerrors.CodeInvalidArgument, "sources.mysql 未启用，无需迁移")
			}

			repo, err := mysqlstore.Open(ctx, mysqlstore.Config{
				DSN:             m.DSN,
				MaxOpenConns:    m.MaxOpenConns,
				ConnMaxLifetime: time.Duration(m.ConnMaxLifetimeSeconds) * time.Second,
			}, m.Table)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.RunMigrations(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "迁移完成: table=%s\n", repo.Table())

			if !cmd.Bool("seed") {
				return nil
			}
			if cfg.Message == nil {
				return xerrors.New(xerrors.CodeConfigurationMissing, "没有可写入的 message")
			}
			if err := repo.Put(ctx, m.Name, *cfg.Message); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "已写入 %s (source=%s length=%d)\n", m.Name, cfg.MessageOrigin, len(*cfg.Message))
			return nil
		},
	}
}
