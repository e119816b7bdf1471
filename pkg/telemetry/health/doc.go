// Package health provides liveness and readiness probes for triggerd.
//
// Components register CheckFuncs on a Checker; the HTTP handlers aggregate
// them for orchestrator probes, served from the metrics endpoint's mux.
package health
