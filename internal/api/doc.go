// Package api exposes the public HTTP surface of greeterd: a single route on
// the root path answering with the configured message as plain text.
package api
