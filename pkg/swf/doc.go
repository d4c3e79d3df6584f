/*
Package swf implements the scheduled worker framework (SWF): a Scheduler
that launches and reuses per-protocol child-process Workers, a framed
Connection for talking to them, and the Job/Command vocabulary a worker
understands.

# Architecture

	┌─────────────────────────── SCHEDULER ───────────────────────────┐
	│  ProtoQueue (per protocol): maxWorkers, maxWorkersPerHost         │
	│    └── HostQueue (per remote host): idle workers, active jobs     │
	│  doJob / cancelJob / jobFinished / putWorkerOnHold                 │
	└───────────────────────────┬──────────────────────────────────────┘
	                            │ launches / reuses
	┌───────────────────────────▼──────────────────────────────────────┐
	│                            WORKER                                  │
	│  Idle → Launching → Running | Failed                              │
	│  one child process per protocol, ref-counted, idle-timeout evict  │
	└───────────────────────────┬──────────────────────────────────────┘
	                            │ FramedTransport over net.Conn
	┌───────────────────────────▼──────────────────────────────────────┐
	│                          CONNECTION                                │
	│  ConnectTo / ListenForRemote / AcceptNext                          │
	│  Send / ReadCommand / WaitForIncoming / Suspend / Resume / Close    │
	└────────────────────────────────────────────────────────────────────┘

# Wire format

Frames share the dispatcher package's 10-byte header layout: Command
uint16, PayloadLength uint32, reserved uint32, little-endian, followed by
a JSON body. See transport.go.

# Worker idleness

A Worker whose ref count drops to zero stays in WorkerRunning; idleness is
tracked by the ref count and the idle-since time, not by a return to
WorkerIdle.

# Jobs

A Job couples a Command (copy, delete, list, stat, ...) with JobFlags
(OVERWRITE, RESUME, RECURSIVE) and reports back one of the stable
ErrorKind codes on failure. SimpleJob is the common single-path/dual-path
implementation used by most commands.
*/
package swf
