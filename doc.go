// Package tflplan computes static memory layouts for TFLite model
// descriptors.
//
// A descriptor lists tensors and the operators that read and write them in
// execution order. The planner derives each tensor's lifetime, assigns every
// non-persistent tensor an offset inside one of a configured number of
// arenas so that tensors alive at the same time never share bytes, and
// embeds the layout back into the descriptor as a named metadata record. A
// runtime can then preallocate the arenas once instead of allocating per
// tensor.
//
// # Quick Start
//
//	p := tflplan.New(tflplan.WithArenaCount(2), tflplan.WithAlignment(64))
//	res, err := p.Plan(ctx, input)
//	if err != nil {
//	    os.Exit(tflplan.ExitCode(err))
//	}
//	os.WriteFile("model.planned.tflite", res.Output, 0o644)
//
// # Embedded Plans
//
// Every planned subgraph i gets a metadata record named
// "tflplan/arena_plan/i" whose buffer holds the layout in the format of
// package plan. Re-planning a planned descriptor replaces the record.
// Verify reads the records back and checks them against the graph.
//
// # Errors
//
// Failures are reported as *FormatError, *GraphConsistencyError,
// *PlanningError or *SerializationError, each naming the stage and, where
// known, the subgraph and tensor. Invalid parameters wrap
// ErrInvalidArgument. ExitCode maps all of them to process exit codes.
package tflplan
