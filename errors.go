package tflplan

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/tflplan/internal/arena"
	"github.com/hupe1980/tflplan/internal/graph"
	"github.com/hupe1980/tflplan/internal/liveness"
	"github.com/hupe1980/tflplan/internal/patch"
	"github.com/hupe1980/tflplan/plan"
	"github.com/hupe1980/tflplan/schema"
)

var (
	// ErrInvalidArgument is returned for planning parameters that cannot be
	// applied to the input, such as a subgraph index outside the model.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Stage names reported by errors, logs and metrics.
const (
	StageDecode    = "decode"
	StageGraph     = "graph"
	StageLiveness  = "liveness"
	StageSize      = "size"
	StageArena     = "arena"
	StageVerify    = "verify"
	StageInject    = "inject"
	StageSerialize = "serialize"
)

// Exit codes returned by ExitCode.
const (
	ExitOK       = 0
	ExitUsage    = 1
	ExitBadInput = 2
	ExitInternal = 3
)

// FormatError indicates input bytes that are not a supported descriptor.
//
// The original underlying error can be accessed via errors.Unwrap.
type FormatError struct {
	Stage    string
	Subgraph int
	Tensor   int
	cause    error
}

func (e *FormatError) Error() string {
	return describe("format error", e.Stage, e.Subgraph, e.Tensor, e.cause)
}

func (e *FormatError) Unwrap() error { return e.cause }

// GraphConsistencyError indicates a descriptor whose references or operator
// order contradict each other.
//
// The original underlying error can be accessed via errors.Unwrap.
type GraphConsistencyError struct {
	Stage    string
	Subgraph int
	Tensor   int
	cause    error
}

func (e *GraphConsistencyError) Error() string {
	return describe("inconsistent graph", e.Stage, e.Subgraph, e.Tensor, e.cause)
}

func (e *GraphConsistencyError) Unwrap() error { return e.cause }

// PlanningError indicates a consistent graph that cannot be laid out, for
// example because a tensor size is unknown or an arena is too small.
//
// The original underlying error can be accessed via errors.Unwrap.
type PlanningError struct {
	Stage    string
	Subgraph int
	Tensor   int
	cause    error
}

func (e *PlanningError) Error() string {
	return describe("planning failed", e.Stage, e.Subgraph, e.Tensor, e.cause)
}

func (e *PlanningError) Unwrap() error { return e.cause }

// SerializationError indicates a patched descriptor that could not be
// written.
//
// The original underlying error can be accessed via errors.Unwrap.
type SerializationError struct {
	Stage    string
	Subgraph int
	Tensor   int
	cause    error
}

func (e *SerializationError) Error() string {
	return describe("serialization failed", e.Stage, e.Subgraph, e.Tensor, e.cause)
}

func (e *SerializationError) Unwrap() error { return e.cause }

func describe(kind, stage string, subgraph, tensor int, cause error) string {
	msg := kind + " in " + stage
	if subgraph >= 0 {
		msg += fmt.Sprintf(" (subgraph %d", subgraph)
		if tensor >= 0 {
			msg += fmt.Sprintf(", tensor %d", tensor)
		}
		msg += ")"
	}
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return msg
}

// translateError maps errors of the internal stages onto the public error
// kinds. subgraph is the subgraph being worked on, or -1.
func translateError(stage string, subgraph int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var (
		fe *FormatError
		ge *GraphConsistencyError
		pe *PlanningError
		se *SerializationError
	)
	if errors.As(err, &fe) || errors.As(err, &ge) || errors.As(err, &pe) || errors.As(err, &se) {
		return err
	}

	// Input format.
	var de *schema.DecodeError
	if errors.As(err, &de) {
		return &FormatError{Stage: stage, Subgraph: subgraph, Tensor: -1, cause: err}
	}
	if errors.Is(err, plan.ErrMalformed) {
		return &FormatError{Stage: stage, Subgraph: subgraph, Tensor: -1, cause: err}
	}

	// Graph consistency.
	var ie *graph.IndexError
	if errors.As(err, &ie) {
		return &GraphConsistencyError{Stage: stage, Subgraph: ie.Subgraph, Tensor: ie.Tensor, cause: err}
	}
	var ce *liveness.ConsistencyError
	if errors.As(err, &ce) {
		return &GraphConsistencyError{Stage: stage, Subgraph: ce.Subgraph, Tensor: ce.Tensor, cause: err}
	}

	// Planning.
	if errors.Is(err, arena.ErrInvalidConfig) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	var ue *graph.UnresolvedSizeError
	if errors.As(err, &ue) {
		return &PlanningError{Stage: stage, Subgraph: ue.Subgraph, Tensor: ue.Tensor, cause: err}
	}
	var ae *arena.CapacityError
	if errors.As(err, &ae) {
		return &PlanningError{Stage: stage, Subgraph: subgraph, Tensor: ae.Tensor, cause: err}
	}
	var ve *plan.VerifyError
	if errors.As(err, &ve) {
		return &PlanningError{Stage: stage, Subgraph: subgraph, Tensor: ve.Tensor, cause: err}
	}
	if errors.Is(err, arena.ErrMissingSize) {
		return &PlanningError{Stage: stage, Subgraph: subgraph, Tensor: -1, cause: err}
	}

	// Output.
	var ee *schema.EncodeError
	var pae *patch.Error
	if errors.As(err, &ee) || errors.As(err, &pae) {
		return &SerializationError{Stage: stage, Subgraph: subgraph, Tensor: -1, cause: err}
	}
	if stage == StageInject || stage == StageSerialize {
		return &SerializationError{Stage: stage, Subgraph: subgraph, Tensor: -1, cause: err}
	}

	return err
}

// ExitCode maps an error returned by this package to a process exit code:
// 0 for nil, 1 for invalid arguments, 2 for inputs that cannot be planned and
// 3 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrInvalidArgument) {
		return ExitUsage
	}
	var (
		fe *FormatError
		ge *GraphConsistencyError
		pe *PlanningError
	)
	if errors.As(err, &fe) || errors.As(err, &ge) || errors.As(err, &pe) {
		return ExitBadInput
	}
	return ExitInternal
}
