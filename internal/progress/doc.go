// Package progress carries analysis-run lifecycle events from the scan
// workers to registered sinks without blocking the scan itself.
package progress
