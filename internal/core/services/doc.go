// Package services implements the pipeline core: the connector registry,
// the validate and transform stage processors, the per-run state machine
// and the orchestrator that schedules windows across sources.
package services
