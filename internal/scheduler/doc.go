// Package scheduler runs keepalive cycles on a repeating timer and on demand.
//
// The scheduler is a two-state machine:
//
//   - Idle: the timer is armed and no cycle is running
//   - CycleInProgress: a cycle started by the timer or by RunNow is in flight
//
// A timer fire while Idle starts a cycle and re-arms the timer for one
// interval after the cycle start. A timer fire during a cycle is dropped and
// the timer is re-armed one interval later. RunNow while Idle runs a cycle
// without touching the timer; RunNow during a cycle returns
// ErrCycleInProgress.
//
// Usage:
//
//	sched := scheduler.New(runner, registry, scheduler.Options{Interval: 6 * time.Hour})
//	sched.Start(ctx)
//	results, err := sched.RunNow(ctx)
//	status, err := sched.Status(ctx)
package scheduler
