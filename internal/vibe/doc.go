// Package vibe is the numeric core: the momentum blender, the two-stage
// amplifier, the cinematic matcher and the pipeline that runs them per
// transcript. Nothing in this package performs I/O; output goes through a
// domain.FrameEmitter supplied by the caller.
package vibe
