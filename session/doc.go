// Package session owns the mapping from session identifier to live R
// interpreter and routes execution requests.
//
// # Overview
//
// A [Session] pairs one interpreter instance with a dedicated worker
// goroutine draining a bounded task queue: calls against the same session
// run strictly in submission order and never overlap, while calls against
// different sessions proceed concurrently. The [Manager] creates sessions on
// first reference, evicts them after a configurable idle period (never while
// a call is in flight or queued), and tears them down on explicit delete.
//
// # Queue policy
//
// Submissions queue in order up to the session's queue capacity; a full
// queue rejects the call with a session-unavailable error rather than
// blocking. A caller timeout abandons only the wait: the worker keeps
// draining, the session stays busy, and no second call ever reaches the
// interpreter concurrently.
//
// # Crash policy
//
// When the interpreter process dies the call reports an interpreter-fatal
// error. By default the session then refuses further work until deleted and
// recreated; WithRecreateOnCrash instead replaces the interpreter in place
// so the next call starts against a fresh one (with fresh state).
package session
