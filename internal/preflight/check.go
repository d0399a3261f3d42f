package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/localsearch/internal/config"
	"github.com/Aman-CERP/localsearch/internal/output"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// String describes a result on one line.
func (r CheckResult) String() string {
	return fmt.Sprintf("[%s] %s: %s", r.Status, r.Name, r.Message)
}

func pass(r CheckResult, format string, args ...any) CheckResult {
	r.Status = StatusPass
	r.Message = fmt.Sprintf(format, args...)
	return r
}

func fail(r CheckResult, format string, args ...any) CheckResult {
	r.Status = StatusFail
	r.Message = fmt.Sprintf(format, args...)
	return r
}

// DefaultPingTimeout bounds each database ping.
const DefaultPingTimeout = 5 * time.Second

// Checker performs preflight validation checks.
type Checker struct {
	pingTimeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithPingTimeout bounds each database ping.
func WithPingTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.pingTimeout = d
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{pingTimeout: DefaultPingTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check for a build of cfg.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config) []CheckResult {
	publicDir := cfg.Resolve(cfg.Publish.PublicDir)

	results := []CheckResult{
		c.CheckDiskSpace(publicDir),
		c.CheckWritePermissions("public_dir", publicDir),
		c.CheckWritePermissions("lock_dir", cfg.Resolve(cfg.Publish.LockDir)),
		c.CheckWritePermissions("manifest_dir", filepath.Dir(cfg.Resolve(cfg.Publish.Manifest))),
		c.CheckFileDescriptors(),
	}
	return append(results, c.CheckSources(ctx, cfg)...)
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results, with details when verbose.
func (c *Checker) PrintResults(out *output.Writer, results []CheckResult, verbose bool) {
	out.Header("localsearch system check")
	out.Newline()

	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch {
		case r.Status == StatusPass:
			out.Success(line)
		case r.IsCritical():
			out.Error(line)
		default:
			out.Warning(line)
		}
		if verbose && r.Details != "" {
			out.Field("details", r.Details)
		}
	}

	out.Newline()
	out.Statusf("", "Status: %s", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckWritePermissions checks that files can be created in dir, or in its
// nearest existing parent when dir does not exist yet.
func (c *Checker) CheckWritePermissions(name, dir string) CheckResult {
	result := CheckResult{Name: "write_permissions:" + name, Required: true}

	existing, err := existingDir(dir)
	if err != nil {
		return fail(result, "%v", err)
	}

	f, err := os.CreateTemp(existing, ".localsearch-preflight-*")
	if err != nil {
		return fail(result, "permission denied: %v", err)
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	if existing != filepath.Clean(dir) {
		return pass(result, "OK (%s will be created)", dir)
	}
	return pass(result, "OK")
}

// existingDir returns dir or its nearest existing ancestor.
func existingDir(dir string) (string, error) {
	current := filepath.Clean(dir)
	for {
		info, err := os.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", current)
			}
			return current, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing parent directory for %s", dir)
		}
		current = parent
	}
}
