// Package handler implements the JSON HTTP endpoints for project registry
// management and keepalive scheduler control, including the cron-secret
// guard and per-client rate limit for externally triggered cycles.
package handler
