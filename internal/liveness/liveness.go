package liveness

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/tflplan/internal/graph"
	"github.com/hupe1980/tflplan/plan"
	"github.com/hupe1980/tflplan/schema"
)

// ConsistencyError reports an operator sequence that contradicts its own
// tensor references.
type ConsistencyError struct {
	Subgraph int
	Operator int // -1 for subgraph inputs and outputs
	Tensor   int
	Reason   string
}

func (e *ConsistencyError) Error() string {
	if e.Operator < 0 {
		return fmt.Sprintf("liveness: subgraph %d tensor %d: %s", e.Subgraph, e.Tensor, e.Reason)
	}
	return fmt.Sprintf("liveness: subgraph %d operator %d tensor %d: %s", e.Subgraph, e.Operator, e.Tensor, e.Reason)
}

// tensorSet is a set of tensor indices.
type tensorSet struct {
	rb *roaring.Bitmap
}

func newTensorSet() tensorSet { return tensorSet{rb: roaring.New()} }

func (s tensorSet) add(t int)           { s.rb.Add(uint32(t)) }
func (s tensorSet) contains(t int) bool { return s.rb.Contains(uint32(t)) }

// Analyze computes the live interval of every tensor of sg that needs
// planned storage. Constants and variable tensors are persistent and get no
// entry.
//
// Step t is the position of an operator in the sequence. Subgraph inputs are
// live from plan.BeforeStart, subgraph outputs until plan.AfterEnd. A tensor
// written but never read lives for its writing step only.
func Analyze(sg *graph.Subgraph) (plan.Lifetimes, error) {
	a := &analyzer{
		sg:        sg,
		persisted: newTensorSet(),
		written:   newTensorSet(),
		lifetimes: make(plan.Lifetimes),
	}
	for t := 0; t < sg.NumTensors(); t++ {
		if sg.IsConstant(t) || sg.IsVariable(t) {
			a.persisted.add(t)
		}
	}

	for _, t := range sg.Inputs() {
		if err := a.check(-1, t); err != nil {
			return nil, err
		}
		if a.persisted.contains(t) || a.written.contains(t) {
			continue
		}
		a.written.add(t)
		a.lifetimes[t] = plan.Interval{First: plan.BeforeStart, Last: plan.BeforeStart}
	}

	for _, op := range sg.Operators() {
		if err := a.step(op); err != nil {
			return nil, err
		}
	}

	for _, t := range sg.Outputs() {
		if err := a.check(-1, t); err != nil {
			return nil, err
		}
		if a.persisted.contains(t) {
			continue
		}
		if !a.written.contains(t) {
			return nil, a.fail(-1, t, "subgraph output is never written")
		}
		iv := a.lifetimes[t]
		iv.Last = plan.AfterEnd
		a.lifetimes[t] = iv
	}
	return a.lifetimes, nil
}

type analyzer struct {
	sg        *graph.Subgraph
	persisted tensorSet
	written   tensorSet
	lifetimes plan.Lifetimes
}

func (a *analyzer) fail(op, t int, format string, args ...any) error {
	return &ConsistencyError{Subgraph: a.sg.Index(), Operator: op, Tensor: t, Reason: fmt.Sprintf(format, args...)}
}

func (a *analyzer) check(op, t int) error {
	if !a.sg.HasTensor(t) {
		return a.fail(op, t, "tensor index out of range [0,%d)", a.sg.NumTensors())
	}
	return nil
}

// touch extends the interval of t to include step.
func (a *analyzer) touch(t, step int) {
	iv := a.lifetimes[t]
	if step > iv.Last {
		iv.Last = step
	}
	a.lifetimes[t] = iv
}

func (a *analyzer) step(op graph.Operator) error {
	t := op.Step

	for _, in := range op.Inputs {
		if in == schema.OptionalTensor {
			continue
		}
		if err := a.check(t, in); err != nil {
			return err
		}
		if a.persisted.contains(in) {
			continue
		}
		if !a.written.contains(in) {
			return a.fail(t, in, "read before any write")
		}
		a.touch(in, t)
	}

	// Scratch tensors only live while their operator runs.
	for _, scratch := range op.Intermediates {
		if err := a.check(t, scratch); err != nil {
			return err
		}
		if a.persisted.contains(scratch) {
			continue
		}
		if !a.written.contains(scratch) {
			a.written.add(scratch)
			a.lifetimes[scratch] = plan.Interval{First: t, Last: t}
			continue
		}
		a.touch(scratch, t)
	}

	for _, out := range op.Outputs {
		if out == schema.OptionalTensor {
			continue
		}
		if err := a.check(t, out); err != nil {
			return err
		}
		if a.sg.IsConstant(out) {
			return a.fail(t, out, "writes a constant tensor")
		}
		if a.persisted.contains(out) {
			continue
		}
		if !a.written.contains(out) {
			a.written.add(out)
			a.lifetimes[out] = plan.Interval{First: t, Last: t}
			continue
		}
		a.touch(out, t)
	}
	return nil
}
