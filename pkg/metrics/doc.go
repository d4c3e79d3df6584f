/*
Package metrics exposes Prometheus collectors for the three core subsystems
and a small Timer helper for histogram observations.

# Architecture

	┌────────────────────── METRICS ───────────────────────┐
	│  Copy pipeline:  filemgr_copy_*                        │
	│  Dispatcher:     filemgr_dispatcher_*                  │
	│  SWF:            filemgr_swf_*                         │
	└──────────────────────┬─────────────────────────────────┘
	                       ▼
	              promhttp.Handler() (Handler())

# Usage

	timer := metrics.NewTimer()
	// ... do work ...
	timer.ObserveDurationVec(metrics.CopyTaskDuration, "default")

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
