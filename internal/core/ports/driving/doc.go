// Package driving defines the ports through which the CLI, the HTTP status
// surface and the scheduler drive the pipeline core.
package driving
