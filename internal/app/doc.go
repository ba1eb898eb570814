// Package app provides the application service layer.
//
// Wraps the vibe pipeline with the stateful use cases around it: transcript counting,
// the recent-word context buffer, the decay ticker, slow climate baseline updates,
// state checkpointing and frame fan-out. Depends on domain interfaces, not concrete adapters.
package app
