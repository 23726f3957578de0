// Package pinger implements the single-target keepalive request.
// Each ping is an independent short-lived HTTP GET bounded by its own
// timeout, and its outcome is classified into a machine-readable reason
// rather than returned as an error.
package pinger
