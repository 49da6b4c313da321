package collection

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Store when no progress exists for an item.
var ErrNotFound = errors.New("collection: not found")

// OrchestrationError is a whole-item failure at one stage of a pass.
type OrchestrationError struct {
	ItemID string
	Stage  string
	Err    error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("collect item %s: %s: %v", e.ItemID, e.Stage, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}
