// Package cycle runs one keepalive pass over all active projects.
//
// Pings are fanned out one goroutine per project and joined before any
// result is persisted, so a slow or unreachable target never delays or
// fails its siblings. Ping failures are data: they are folded into the
// returned results and the project's last-ping fields.
package cycle
