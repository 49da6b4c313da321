package imaging

import "fmt"

// Reasons an image is refused before any variant is produced.
const (
	ReasonEmpty       = "empty"
	ReasonTooSmall    = "too_small"
	ReasonTooLarge    = "too_large"
	ReasonCorrupt     = "corrupt"
	ReasonUnsupported = "unsupported"
)

// ValidationError marks an input that can never be processed. Callers skip
// the candidate rather than retrying.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "invalid image: " + e.Reason
	}
	return fmt.Sprintf("invalid image: %s: %s", e.Reason, e.Detail)
}

func invalid(reason, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
