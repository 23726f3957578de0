// Package project defines the keepalive domain model: registered projects,
// per-ping results, cycle reports and the sentinel errors shared by the
// registry and its storage backends.
package project
