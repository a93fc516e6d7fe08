// Package replcore is the embedded scripting runtime that drives one turn
// of an LLM coding agent.
//
// Each turn submits a block of script source to a long-lived [Session]. The
// script runs statement-by-statement against a shared namespace, issuing
// tool calls that round-trip through a [Bridge] to a host-side tool
// executor. The session also keeps derived state across turns: a ranked
// [TurnHistory], a key/value [Mem], discoverable tool metadata (the [Proxy]
// set a [Registry] holds, reached from scripts as T.<name>), and namespace [Namespace.Snapshot]/
// [Namespace.Restore] for persistence and sub-agent forking.
//
// # Core Interfaces
//
//   - [Bridge] — the host-provided send/invoke/ask primitive set
//   - [Dispatcher] — the tool-call interface; [ToolDispatcher] implements it
//     by marshalling calls through a worker pool onto a Bridge
//   - [Session] — wires the above into the host command protocol (exec,
//     snapshot, restore, reset)
//
// See cmd/replcore-host for a reference host process wiring a stdio JSON
// protocol around a Session.
package replcore
