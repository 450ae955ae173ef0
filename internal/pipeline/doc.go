// Package pipeline discovers PNG files and fans them out to a bounded pool
// of optimizer workers, then aggregates the per-file reports.
package pipeline
