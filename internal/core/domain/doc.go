// Package domain contains the core entities of the ingestion pipeline:
// source descriptors, raw payloads, canonical hotspot records, pipeline
// runs and the error taxonomy shared by all stages.
//
// Domain types have no dependencies on adapters or external services.
package domain
