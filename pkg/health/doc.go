/*
Package health provides the shared Checker/Status primitives used to decide
whether a remote peer is alive — an MW slave (by heartbeat age) or, before a
Connection is attempted, an SWF worker's listening endpoint (by TCP dial).

# Architecture

	┌─────────────────── Checker Interface ───────────────────┐
	│  Check(ctx) Result                                        │
	│  Type() CheckType                                         │
	└────────┬──────────────────────────┬──────────────────────┘
	         ▼                          ▼
	┌────────────────┐         ┌─────────────────────┐
	│  TCPChecker     │         │  HeartbeatChecker    │
	│  dial + close   │         │  age since last Touch│
	└────────────────┘         └─────────────────────┘

# Heartbeat checks (MW)

The Master holds one HeartbeatChecker per registered slave. Every Heartbeat
message calls Touch; the 5s health-check loop calls Check, and a result with
Healthy=false past the configured timeout flips the slave unhealthy.

# TCP checks (SWF)

TCPChecker is used when a Worker is launched as a child process: the
Scheduler dials the worker's advertised local endpoint as a readiness probe
before handing it a Job.

# Status tracking

Status accumulates ConsecutiveFailures/ConsecutiveSuccesses across repeated
Check calls and flips Healthy only once Retries consecutive failures (or one
success) have been observed, matching the debounce a flaky peer needs.
*/
package health
