package downloader

import (
	"fmt"
	"strings"
)

// Kind is a coarse error classification surfaced to clients alongside the raw
// tool output.
type Kind string

const (
	KindToolError        Kind = "YtDlpError"
	KindTimeout          Kind = "TimeoutError"
	KindFFmpegNotFound   Kind = "FFmpegNotFound"
	KindAllClientsFailed Kind = "AllClientsFailed"
)

// ToolError carries the raw diagnostic text of a failed external-tool
// invocation plus its kind tag.
type ToolError struct {
	Kind   Kind
	Output string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Output)
}

func newToolError(kind Kind, format string, args ...interface{}) *ToolError {
	return &ToolError{Kind: kind, Output: fmt.Sprintf(format, args...)}
}

// ErrKind extracts the kind tag from an error, defaulting to the generic tool
// error kind.
func ErrKind(err error) Kind {
	if te, ok := err.(*ToolError); ok {
		return te.Kind
	}
	return KindToolError
}

var authKeywords = []string{
	"sign in to confirm",
	"please sign in",
	"authentication required",
	"login required",
	"cookies",
	"age verification",
	"age-restricted",
	"private video",
	"members-only",
	"premium content",
	"subscription required",
}

// IsAuthError reports whether raw failure text indicates the platform is
// demanding login, age, or membership verification. Matching is substring
// based and case insensitive.
func IsAuthError(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range authKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// IsProxyError reports whether raw failure text points at the egress proxy or
// the connection through it.
func IsProxyError(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "proxy") || strings.Contains(lower, "connection")
}
