// Package events publishes greeterd lifecycle notifications (started,
// stopped) so deployment tooling can observe instances coming and going. The
// RabbitMQ publisher is optional; a no-op publisher is used when disabled.
package events
