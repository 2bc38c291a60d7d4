package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"Greeter-Service/internal/message"
)

func newValidateCmd() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"lint"},
		Usage:   "加载配置并解析 message，不启动服务",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("配置无效: %w", err)
			}
			msg, err := message.ResolveConfig(ctx, cfg)
			if err != nil {
				return fmt.Errorf("配置无效: %w", err)
			}
			fmt.Fprintf(cmd.Root().Writer, "配置有效: address=%s source=%s length=%d\n",
				cfg.Server.Address, msg.Source, len(msg.Value))
			return nil
		},
	}
}
