package graphcompile

import (
	"errors"
	"fmt"

	"github.com/resonantwave/engine/internal/schedule"
	"github.com/resonantwave/engine/internal/xerrors"
)

// ErrMissingGraphInBuffer is returned when a graph-in (or graph-out) port
// has no buffer assignment in the abstract schedule.
var ErrMissingGraphInBuffer = errors.New("graphcompile: missing graph endpoint buffer assignment")

// ErrUnknownNode is returned when an entry references a node id not present
// in the shared pools' plugin registry.
var ErrUnknownNode = errors.New("graphcompile: unknown node id")

// ErrInsufficientSumInputs is returned when a SumEntry lists fewer than two
// inputs.
var ErrInsufficientSumInputs = errors.New("graphcompile: sum entry needs at least two inputs")

// ErrNegativeDelay is returned when a DelayEntry's rounded sample count is
// negative.
var ErrNegativeDelay = errors.New("graphcompile: delay entry has negative sample count")

// VerifierError wraps a race-freedom violation found after compilation,
// carrying both the rejected concrete schedule and the abstract input that
// produced it, for diagnostics.
type VerifierError struct {
	Abstract *AbstractSchedule
	Concrete *schedule.ProcessorSchedule
	Reason   error
}

func (e *VerifierError) Error() string {
	return fmt.Sprintf("graphcompile: schedule verification failed: %v", e.Reason)
}

func (e *VerifierError) Unwrap() error {
	return e.Reason
}

func wrapCompile(category xerrors.Category, err error) error {
	if err == nil {
		return nil
	}
	return xerrors.New(err).
		Component(xerrors.ComponentGraph).
		Category(category).
		Build()
}
