package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	xerrors "Greeter-Service/internal/errors"
)

// Version 在构建时通过 ldflags 注入。
var Version = "dev"

// main 是 greeterd 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, describeFailure(err))
		os.Exit(1)
	}
}

// describeFailure 为带错误码的失败附上错误码、严重程度以及是否值得重试。
func describeFailure(err error) string {
	if _, ok := xerrors.From(err); !ok {
		return fmt.Sprintf("greeterd 运行失败: %v", err)
	}
	return fmt.Sprintf("greeterd 运行失败 (code=%s severity=%s retryable=%t): %v",
		xerrors.CodeOf(err), xerrors.SeverityOf(err), xerrors.RetryableError(err), err)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "greeterd",
		Version: Version,
		Usage:   "在根路径上返回配置的 message",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（JSON、YAML 或 TOML）",
				Sources: cli.EnvVars("GREETER_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "覆盖配置中的 message，允许空字符串",
			},
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "HTTP 监听地址，例如 :8080",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别：debug、info、warn、error",
			},
			&cli.StringFlag{
				Name:  "metrics-address",
				Usage: "/metrics 与 /healthz 的旁路监听地址，为空时不启动",
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			newValidateCmd(),
			newMigrateCmd(),
			newVersionCmd(),
		},
	}
}
