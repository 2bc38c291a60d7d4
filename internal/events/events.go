package events

import (
	"context"
	"time"
)

// Type 表示生命周期事件类型。
type Type string

const (
	TypeStarted Type = "started"
	TypeStopped Type = "stopped"
)

// Event 描述一次实例生命周期变化。
type Event struct {
	Type       Type      `json:"type"`
	InstanceID string    `json:"instance_id"`
	Address    string    `json:"address"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 负责投递生命周期事件。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop 是未启用事件投递时使用的发布器。
type Noop struct{}

// Publish 丢弃事件。
func (Noop) Publish(context.Context, Event) error { return nil }

// Close 无需释放资源。
func (Noop) Close() error { return nil }
