// Package events announces completed keepalive cycles. The Redis publisher
// lets external monitors subscribe to cycle reports; without a configured
// broker the no-op publisher is used.
package events
