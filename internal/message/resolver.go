package message

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"

	xerrors "Greeter-Service/internal/errors"
	"Greeter-Service/pkg/logger"
)

// Key 是 message 在各类配置来源中的名称。
const Key = "message"

// Message 是启动时解析出的最终值。
type Message struct {
	Value  string
	Source string
}

// Resolve 按顺序查询来源，返回第一个存在的值。
//
// 没有任何来源提供值时返回 CONFIGURATION_MISSING；某个来源本身出错时立即返回
// SOURCE_FAILURE，而不是退回到优先级更低的来源。
func Resolve(ctx context.Context, sources ...Source) (Message, error) {
	log := logger.Named("message")

	consulted := make([]string, 0, len(sources))
	for _, source := range sources {
		if source == nil {
			continue
		}
		consulted = append(consulted, source.Name())

		value, err := source.Lookup(ctx)
		if err != nil {
			if stdErrors.Is(err, ErrNotFound) {
				log.Debug("来源未提供 message", slog.String("source", source.Name()))
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				opts := []xerrors.Option{xerrors.WithMetadata("source", source.Name())}
				// 收到退出信号而中断属于正常停机。
				if stdErrors.Is(ctxErr, context.Canceled) {
					opts = append(opts, xerrors.WithSeverity(xerrors.SeverityInfo), xerrors.WithRetryable(false))
				}
				return Message{}, xerrors.Wrap(xerrors.CodeTimeout, err, "读取 message 超时", opts...)
			}
			return Message{}, xerrors.Wrap(xerrors.CodeSourceFailure, err, "读取 message 失败",
				xerrors.WithMetadata("source", source.Name()))
		}
		return Message{Value: value, Source: source.Name()}, nil
	}

	return Message{}, xerrors.New(xerrors.CodeConfigurationMissing,
		"未配置 message（已检查: "+strings.Join(consulted, ", ")+"）",
		xerrors.WithMetadata("key", Key))
}
