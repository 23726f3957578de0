// Package httpserver wraps net/http.Server with listen address validation
// and graceful shutdown.
package httpserver
