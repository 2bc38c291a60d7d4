package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"Greeter-Service/internal/api"
	"Greeter-Service/internal/config"
	"Greeter-Service/internal/events"
	"Greeter-Service/internal/message"
	"Greeter-Service/internal/observability/metrics"
	"Greeter-Service/pkg/logger"
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logger.Init(loggerConfig(cfg)); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("greeterd")

	msg, err := message.ResolveConfig(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("message 已加载",
		slog.String("config", cmd.String("config")),
		slog.String("source", msg.Source),
		slog.Int("length", len(msg.Value)),
	)

	collector := metrics.New()
	if addr := cfg.Metrics.Address; addr != "" {
		go func() {
			if err := metrics.StartServer(ctx, addr, collector); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("指标服务异常退出", slog.String("address", addr), slog.String("error", err.Error()))
			}
		}()
		log.Info("指标服务已启动", slog.String("address", addr))
	}

	publisher := newPublisher(cfg, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("关闭事件发布器失败", slog.String("error", err.Error()))
		}
	}()

	instanceID := uuid.NewString()
	publish := func(pubCtx context.Context, typ events.Type) {
		err := publisher.Publish(pubCtx, events.Event{
			Type:       typ,
			InstanceID: instanceID,
			Address:    cfg.Server.Address,
			Source:     msg.Source,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			log.Warn("投递生命周期事件失败", slog.String("type", string(typ)), slog.String("error", err.Error()))
		}
	}

	server := api.NewServer(cfg.Server.Address, msg.Value,
		api.WithMetrics(collector),
		api.WithAccessLog(logger.Access()),
		api.WithShutdownTimeout(cfg.Server.ShutdownTimeout()),
		api.WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout()),
	)

	publish(ctx, events.TypeStarted)
	err = server.Start(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	publish(stopCtx, events.TypeStopped)

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Info("greeterd 已退出")
	return nil
}

// newPublisher 在启用 RabbitMQ 时建立连接，失败时退化为 Noop，事件不影响对外服务。
func newPublisher(cfg *config.Config, log *slog.Logger) events.Publisher {
	rc := cfg.Events.RabbitMQ
	if !rc.Enabled {
		return events.Noop{}
	}
	publisher, err := events.NewRabbitMQPublisher(events.RabbitMQConfig{
		URL:     rc.URL,
		Queue:   rc.Queue,
		Durable: rc.Durable,
	})
	if err != nil {
		log.Warn("RabbitMQ 不可用，生命周期事件将被丢弃", slog.String("error", err.Error()))
		return events.Noop{}
	}
	log.Info("已连接 RabbitMQ", slog.String("queue", rc.Queue))
	return publisher
}
