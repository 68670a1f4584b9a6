/*
Package pm builds the scripting API surface injected into each sandboxed VM.

# Overview

For every job the worker constructs a fresh `pm` global bound to that job's
snapshots and a Captures buffer:

  - pm.request: mutable request view with a HeaderList and auth helpers;
    every mutation updates both the live view and the job's RequestPatch.
  - pm.response: read-only response projection, test phase only.
  - pm.environment / pm.globals / pm.collectionVariables: scoped key-value
    namespaces with change tracking. Environment and globals mutations are
    surfaced in the result; collection-variable mutations are visible to the
    running script but deliberately never persisted.
  - pm.test(name, fn): test registrar. Failures are recorded, never re-raised,
    so one failing test cannot abort the rest of the script.
  - pm.expect(value): assertion chain factory (internal/script/assert).
  - pm.sendRequest: reserved stub, fails with "not implemented".

console.log/info/warn/error/debug and alert() append tagged lines to the
job's console buffer instead of touching any real console.

All state written during a run lands in Captures, which the worker drains
into the ExecutionResult. Nothing here is safe for concurrent use; a surface
serves exactly one job on one goroutine.
*/
package pm
