/*
Package engine runs sandboxed scripts: a supervised Worker goroutine owning
goja VMs, and an Engine that submits jobs and correlates results.

# Isolation

The worker shares no mutable state with callers. Jobs and results cross the
boundary as messages over channels; every job gets a fresh, hardened VM (no
require/process/module, stubbed timers, no ambient network or filesystem) and
a fresh capture buffer, so nothing leaks between jobs.

# Timeouts

Two timers guard every execution. The inner timer (default 30s) interrupts
the VM so a runaway script reports "timed out" as an ordinary error result.
The outer timer (default 35s, always strictly above the inner one) protects
the caller against a wedged worker; when it fires the pending entry is
removed and any late result is logged and dropped. Exactly one resolution
ever happens per job id.

# Crash recovery

A worker panic is not a job error: the engine rejects every in-flight job
with ErrWorkerCrashed, spawns a replacement worker and carries on. Failed
jobs are not retried; resubmission is the caller's decision.
*/
package engine
