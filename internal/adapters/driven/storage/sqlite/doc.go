// Package sqlite persists pipeline run state in a local SQLite database,
// so terminal outcomes survive restarts and stay queryable for audit and
// manual replay.
package sqlite
