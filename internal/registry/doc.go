// Package registry implements the project registry lifecycle: adding,
// listing, updating and deleting keepalive targets, plus folding ping
// outcomes back onto them.
//
// Input is validated with ozzo-validation before any write. Connection URLs
// must match the provider URL shape (DefaultURLPattern unless overridden).
// Validation failures wrap project.ErrValidation and unknown ids return
// project.ErrNotFound.
package registry
