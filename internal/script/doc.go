/*
Package script defines the data model for the script execution subsystem.

# Overview

Every script invocation is described by an ExecutionJob: the script text, the
phase it runs in (pre-request or test), immutable snapshots of the request and
optionally the response, and the three variable scopes (environment, globals,
collection variables). Jobs are consumed by the execution engine
(internal/script/engine) and answered with exactly one ExecutionResult.

# Mutation deltas

Scripts never hand back full snapshots. Changes travel as minimal deltas:

  - EnvironmentUpdates / GlobalUpdates map changed keys to their new values;
    an empty-string value marks a deletion.
  - RequestUpdates carries only the touched request fields; a nil header
    value marks a deleted header and AuthRemoved marks explicit auth removal.

A scope the script never touched produces no map at all, so consumers can
distinguish "unchanged" from "cleared".

# Wire shape

The JSON tags on ExecutionResult and its parts match the message schema spoken
over the websocket channel (internal/ws), so results render in the UI without
translation.
*/
package script
