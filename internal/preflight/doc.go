// Package preflight checks that a build can run before it starts.
//
// The package validates:
//   - Disk space on the public directory's filesystem (minimum 100MB)
//   - Write permissions for the public, lock and manifest directories
//   - File descriptor limits
//   - Index sources: local files exist, databases answer a ping
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
