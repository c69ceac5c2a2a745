package ensemble

import (
	"errors"
	"fmt"
)

// ErrNotReady is matched by every *NotReadyError through errors.Is.
var ErrNotReady = errors.New("ensemble: model not ready")

// ModelFormatError reports a malformed ensemble or feature-index description.
// It is fatal to the affected model only.
type ModelFormatError struct {
	Model  string
	Reason string
	Err    error
}

func (e *ModelFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model %q: format error: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("model %q: format error: %s", e.Model, e.Reason)
}

func (e *ModelFormatError) Unwrap() error { return e.Err }

// ModelCorruptionError is returned when a single tree walk exceeds maxTraversalSteps.
type ModelCorruptionError struct {
	Model string
	Tree  int
	Node  int
	Steps int
}

func (e *ModelCorruptionError) Error() string {
	return fmt.Sprintf("model %q: tree %d did not reach a leaf after %d steps (stuck near node %d)",
		e.Model, e.Tree, e.Steps, e.Node)
}

type NotReadyError struct {
	Model string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("model %q: not ready", e.Model)
}

func (e *NotReadyError) Is(target error) bool { return target == ErrNotReady }

func formatErr(model, format string, args ...any) error {
	return &ModelFormatError{Model: model, Reason: fmt.Sprintf(format, args...)}
}
