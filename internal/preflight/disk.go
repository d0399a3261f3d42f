package preflight

import (
	"syscall"

	"github.com/Aman-CERP/localsearch/internal/profiling"
)

// MinDiskSpaceBytes is the minimum required free disk space (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace checks the free space on the filesystem holding path.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	dir, err := existingDir(path)
	if err != nil {
		return fail(result, "failed to check disk space: %v", err)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return fail(result, "failed to check disk space: %v", err)
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	if availableBytes < MinDiskSpaceBytes {
		return fail(result, "%s free (minimum: 100 MB)", profiling.FormatBytes(availableBytes))
	}
	return pass(result, "%s free (minimum: 100 MB)", profiling.FormatBytes(availableBytes))
}
