// Package driven defines the ports the pipeline core depends on:
// source connectors, stage processors and storage. Adapters implement
// these interfaces; the core never imports an adapter.
package driven
