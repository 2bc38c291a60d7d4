// Package redis opens the go-redis client greeterd uses to read its message
// from a Redis key at startup.
package redis
