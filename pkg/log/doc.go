/*
Package log provides structured logging shared by the copy pipeline, the
master/worker dispatcher, and the scheduled worker framework, wrapping
zerolog for JSON-structured output with component-specific child loggers.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog instance, initialized by Init()  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("dispatcher")               │          │
	│  │  - WithTaskID / WithSlaveID                  │          │
	│  │  - WithWorkerID / WithJobID                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     ▼                                      │
	│              JSON or console output                       │
	└────────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	log.Info("dispatcher started")

	taskLog := log.WithTaskID(task.ID())
	taskLog.Info().Msg("copy task started")
	taskLog.Error().Err(err).Msg("copy task failed")

	slaveLog := log.WithSlaveID(slave.ID)
	slaveLog.Warn().Msg("heartbeat timeout exceeded")

# Levels

Debug is for development; Info is the default production level; Warn flags
conditions worth a look (a missed heartbeat, a retried task); Error marks a
failed operation; Fatal logs and calls os.Exit(1) — reserve it for startup
failures the process cannot recover from.
*/
package log
