// Package core holds the status and error types shared across iossim.
package core

// StepStatus is the outcome of a flow step, or of a whole flow.
type StepStatus int

const (
	StatusPending StepStatus = iota
	StatusPassed
	StatusFailed
	StatusSkipped // an earlier step failed
	StatusWarned  // an optional step failed
)

var statusNames = [...]string{"pending", "passed", "failed", "skipped", "warned"}

func (s StepStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText renders the status by name in JSON results.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsSuccess reports whether the status counts as a pass: passed or warned.
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory tells which layer a failure came from.
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota
	ErrCategoryValidation               // element not found, invalid button or direction
	ErrCategoryProcess                  // external tool failed or produced bad output
	ErrCategoryConfig                   // invalid configuration or flow file
	ErrCategoryScript                   // JavaScript error
)

var categoryNames = [...]string{"none", "validation", "process", "config", "script"}

func (c ErrorCategory) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// MarshalText renders the category by name in JSON results.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
