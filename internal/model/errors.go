package model

import "fmt"

// ExtractionError reports a file or manifest that could not be analyzed.
// It is recorded as a diagnostic and never aborts a scan.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ClaimResolutionError reports a claim that could not be resolved against the filesystem
type ClaimResolutionError struct {
	Claim Claim
	Err   error
}

func (e *ClaimResolutionError) Error() string {
	return fmt.Sprintf("resolve %s %q: %v", e.Claim.Kind, e.Claim.Value, e.Err)
}

func (e *ClaimResolutionError) Unwrap() error { return e.Err }

// SandboxError reports a command that could not be spawned, timed out or
// violated the network policy
type SandboxError struct {
	Command string
	Reason  string
	Err     error
}

func (e *SandboxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sandbox %q: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("sandbox %q: %s", e.Command, e.Reason)
}

func (e *SandboxError) Unwrap() error { return e.Err }

// ConfigurationError is the only error surfaced to the caller as a hard
// failure. It is returned before any scanning begins.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
