package reference

import "fmt"

// UnimplementedError marks a reference operation that is deliberately not
// supported. Callers match it with errors.Is against the exported values.
type UnimplementedError struct {
	Feature string
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("unimplemented: %s", e.Feature)
}

// ErrHelperPath is returned when a property is derived from the result of
// a helper invocation.
var ErrHelperPath = &UnimplementedError{Feature: "yielding the result of a helper call"}
