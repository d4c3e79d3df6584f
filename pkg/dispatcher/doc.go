/*
Package dispatcher implements the master/worker (MW) subsystem: a Master
that tracks registered Slaves, queues tasks, and assigns them by capability
match, and a Slave runtime that registers, heartbeats, and executes tasks
handed to it.

# Architecture

	┌───────────────────────── MASTER ─────────────────────────┐
	│  registry: slaveID → *SlaveInfo (capabilities, health)     │
	│  pending queue: FIFO of task IDs                           │
	│  health loop: every 5s, flag slaves past heartbeat timeout │
	│  assignment: first-fit over healthy slaves by capability   │
	│  redistribution: requeue tasks from a lost slave           │
	└──────────────────────────┬──────────────────────────────────┘
	                           │ Frame (10-byte header + JSON)
	┌──────────────────────────▼──────────────────────────────────┐
	│                           SLAVE                              │
	│  connect → register → heartbeat(3s) ─┐                       │
	│  reconnect backoff(5s) on disconnect  │                       │
	│  dispatch → Executor.Execute ─────────┘                       │
	└────────────────────────────────────────────────────────────┘

# Wire format

Every message is a fixed 10-byte header (Type uint16, Length uint32,
reserved uint32, little-endian) followed by a JSON body. See wire.go.

# Task payloads are opaque

The Master never interprets TaskMessage.Payload; it only matches declared
Slave capabilities against a task's type and hands the bytes over. The
Executor registered on the Slave for that task type does the decoding.
*/
package dispatcher
