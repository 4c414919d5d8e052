package redpost

import (
	"fmt"
	"strings"
)

// MissingEnvError is returned when required credentials are missing.
type MissingEnvError struct {
	Provider  string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing environment variable %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// ValidationError captures provider-specific validation issues.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Provider, e.Reason)
}

// ConfigError reports an unreadable or invalid post configuration.
type ConfigError struct {
	Path   string
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field '%s'", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FlairError is returned when a requested flair cannot be applied.
type FlairError struct {
	Flair     string
	Subreddit string
	MissingID bool
}

func (e *FlairError) Error() string {
	if e.MissingID {
		return fmt.Sprintf("flair ID not found for flair '%s' in r/%s", e.Flair, e.Subreddit)
	}
	return fmt.Sprintf("flair '%s' not found in r/%s", e.Flair, e.Subreddit)
}

// PreflightError reports a local precondition that failed before any remote call.
type PreflightError struct {
	Path   string
	Reason string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("%s at '%s'", e.Reason, e.Path)
}

// APIError is a failed remote call. Body carries the raw diagnostic payload
// the platform returned, if any.
type APIError struct {
	Op         string
	StatusCode int
	Reason     string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	parts := make([]string, 0, 4)
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		parts = append(parts, "response: "+body)
	}
	if len(parts) == 0 {
		parts = append(parts, "request failed")
	}
	return fmt.Sprintf("%s: %s", e.Op, strings.Join(parts, "; "))
}

func (e *APIError) Unwrap() error { return e.Err }
