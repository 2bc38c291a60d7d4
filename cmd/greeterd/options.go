package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"Greeter-Service/internal/config"
	"Greeter-Service/pkg/logger"
)

// loadConfig 依次叠加配置文件、环境变量与命令行参数，并做一致性校验。
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if cmd.IsSet("message") {
		cfg.SetMessage(cmd.String("message"), config.OriginFlag)
	}
	if cmd.IsSet("listen") {
		cfg.Server.Address = cmd.String("listen")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("metrics-address") {
		cfg.Metrics.Address = cmd.String("metrics-address")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.Outputs,
		Access: logger.AccessConfig{
			Enabled:    cfg.Log.Access.Enabled,
			Path:       cfg.Log.Access.Path,
			MaxSizeMB:  cfg.Log.Access.MaxSizeMB,
			MaxBackups: cfg.Log.Access.MaxBackups,
			MaxAgeDays: cfg.Log.Access.MaxAgeDays,
			Compress:   cfg.Log.Access.Compress,
		},
	}
}
