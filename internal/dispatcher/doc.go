// Package dispatcher routes hot-folder events to the host application.
//
// # Pipeline
//
// Each watched folder feeds a receive goroutine. The receive goroutine only
// performs the in-flight gate and enqueues; everything slow (stability
// polling, reading descriptors, host calls) runs on a fixed pool of worker
// goroutines, so notification delivery is never held up by a handler.
//
// # Per-path isolation
//
// A path enters the in-flight set when its event is accepted and leaves it
// when the attempt ends, whatever the outcome. While a path is in flight,
// further events for it are discarded; this absorbs the duplicate
// notifications operating systems emit for a single write. Once released,
// the next event for the same path starts a fresh attempt.
//
// # Host access
//
// The host application is single-threaded. All gateway calls go through a
// gateway.Exclusive, so at most one handler talks to the host at a time even
// when several workers are busy.
//
// # Failure
//
// Handler errors and panics are logged and counted; they never stop the
// dispatcher. Only startup errors (returned by Start) and watch failures
// (delivered on Failures) reach the owner.
package dispatcher
