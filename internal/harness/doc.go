// Package harness runs scripted field-check scenarios end to end.
//
// A scenario drives a real app (SQLite store, cache, queue, resolver,
// submitter and drain coordinator) against a scriptable remote service and
// connectivity signal, then checks the trace of steps and the final state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: offline_check_then_drain
//	description: "A check made offline is queued and sent by the next drain"
//	online: false
//	remote:
//	  assets:
//	    - { asset_id: AST-1, asset_name: Oscilloscope, status: available }
//	cache:
//	  - { asset_id: AST-1, asset_name: Oscilloscope, status: available }
//	steps:
//	  - do: scan
//	    payload: AST-1
//	    expect: { state: reviewing, source: cache }
//	  - do: submit
//	    status: available
//	    date: "2024-01-15"
//	    expect: { disposition: queued }
//	  - do: go_online
//	  - do: drain
//	    expect: { sent: 1, failed: 0 }
//	assertions:
//	  - type: final_state
//	    subject: queue
//	    expect: { length: 0 }
//
// # Steps
//
//   - scan: resolve payload through the operator session
//   - submit: submit a check for the asset under review
//   - reset: return the session to idle
//   - drain: send every queued check once
//   - go_online, go_offline: flip the connectivity signal
//   - fail_submits: script the next remote submissions ("ok", "transient"
//     or "reject: <message>")
//
// # Assertion Types
//
//   - trace_contains: a step with the given action whose outcome matches
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: queue, remote, session or cache state after the run
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory database, a manual clock starting at
// 2024-01-15T09:00:00Z and sequential queue entry ids, so traces are
// byte-identical across runs and can be compared against golden files.
package harness
