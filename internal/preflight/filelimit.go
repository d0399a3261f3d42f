package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the minimum recommended file descriptor limit.
// Concurrent builds hold a database, lock files and artifacts open per index.
const MinFileDescriptors = 256

// CheckFileDescriptors checks if the file descriptor limit is sufficient.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors"}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return fail(result, "failed to check file descriptor limit: %v", err)
	}

	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
		result.Details = "Run 'ulimit -n 1024' to increase the limit"
		return result
	}
	return pass(result, "%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
}
