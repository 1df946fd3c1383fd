package plan

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

const (
	// BeforeStart is the first step of a tensor that is live on entry.
	BeforeStart = -1
	// AfterEnd is the last step of a tensor that must survive the subgraph.
	AfterEnd = math.MaxInt
)

// MaxArenas is the largest arena count a plan may use.
const MaxArenas = 256

// Interval is the closed range of execution steps during which a tensor's
// storage must stay intact.
type Interval struct {
	First int
	Last  int
}

// Overlaps reports whether the two intervals share a step. Intervals are
// closed, so a tensor last read at step t conflicts with one first written
// at step t.
func (iv Interval) Overlaps(other Interval) bool {
	return !(iv.Last < other.First || other.Last < iv.First)
}

func (iv Interval) String() string {
	first, last := fmt.Sprint(iv.First), fmt.Sprint(iv.Last)
	if iv.First == BeforeStart {
		first = "start"
	}
	if iv.Last == AfterEnd {
		last = "end"
	}
	return "[" + first + "," + last + "]"
}

// Lifetimes maps tensor indices to their live intervals. Tensors without an
// entry need no planned storage.
type Lifetimes map[int]Interval

// Tensors returns the planned tensor indices in ascending order.
func (l Lifetimes) Tensors() []int {
	out := make([]int, 0, len(l))
	for t := range l {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// Record places one tensor at a byte offset of an arena.
type Record struct {
	Tensor int
	Arena  int
	Offset int64
	Size   int64
}

// End returns the first byte past the tensor.
func (r Record) End() int64 {
	return r.Offset + r.Size
}

// Plan is the memory layout of one subgraph.
type Plan struct {
	Arenas int
	// Sizes holds the high-water mark of each arena.
	Sizes []int64
	// Records is sorted by ascending tensor index.
	Records []Record
}

// Record returns the placement of tensor t.
func (p *Plan) Record(t int) (Record, bool) {
	i, ok := slices.BinarySearchFunc(p.Records, t, func(r Record, t int) int {
		return r.Tensor - t
	})
	if !ok {
		return Record{}, false
	}
	return p.Records[i], true
}

// Total returns the sum of all arena sizes.
func (p *Plan) Total() int64 {
	var total int64
	for _, s := range p.Sizes {
		total += s
	}
	return total
}

// Naive returns the bytes needed when every tensor gets its own storage.
func (p *Plan) Naive() int64 {
	var total int64
	for _, r := range p.Records {
		total += r.Size
	}
	return total
}

// SetSizes fills record sizes from sizes and recomputes the arena
// high-water marks. It is used for plans read back from a descriptor, whose
// encoding does not carry sizes.
func (p *Plan) SetSizes(sizes map[int]int64) error {
	if p.Arenas < 1 || p.Arenas > MaxArenas {
		return &VerifyError{Tensor: -1, Other: -1, Reason: fmt.Sprintf("%d arenas", p.Arenas)}
	}
	p.Sizes = make([]int64, p.Arenas)
	for i := range p.Records {
		r := &p.Records[i]
		size, ok := sizes[r.Tensor]
		if !ok {
			return &VerifyError{Tensor: r.Tensor, Other: -1, Reason: "no size known"}
		}
		r.Size = size
		if r.Arena >= 0 && r.Arena < p.Arenas && r.End() > p.Sizes[r.Arena] {
			p.Sizes[r.Arena] = r.End()
		}
	}
	return nil
}

// VerifyError reports a layout that is unsafe to execute.
type VerifyError struct {
	Tensor int
	// Other is the conflicting tensor, or -1.
	Other  int
	Reason string
}

func (e *VerifyError) Error() string {
	if e.Other >= 0 {
		return fmt.Sprintf("plan: tensor %d and tensor %d: %s", e.Tensor, e.Other, e.Reason)
	}
	if e.Tensor >= 0 {
		return fmt.Sprintf("plan: tensor %d: %s", e.Tensor, e.Reason)
	}
	return "plan: " + e.Reason
}

// Verify checks p against lifetimes: every live tensor is placed exactly
// once inside its arena, and no two tensors whose intervals overlap share a
// byte of the same arena.
func Verify(p *Plan, lifetimes Lifetimes) error {
	if p.Arenas < 1 || p.Arenas > MaxArenas {
		return &VerifyError{Tensor: -1, Other: -1, Reason: fmt.Sprintf("%d arenas", p.Arenas)}
	}
	if len(p.Sizes) != p.Arenas {
		return &VerifyError{Tensor: -1, Other: -1, Reason: fmt.Sprintf("%d sizes for %d arenas", len(p.Sizes), p.Arenas)}
	}

	byArena := make([][]Record, p.Arenas)
	for i, r := range p.Records {
		if i > 0 && r.Tensor <= p.Records[i-1].Tensor {
			return &VerifyError{Tensor: r.Tensor, Other: -1, Reason: "records not in ascending tensor order"}
		}
		if _, ok := lifetimes[r.Tensor]; !ok {
			return &VerifyError{Tensor: r.Tensor, Other: -1, Reason: "placed but not live"}
		}
		if r.Arena < 0 || r.Arena >= p.Arenas {
			return &VerifyError{Tensor: r.Tensor, Other: -1, Reason: fmt.Sprintf("arena %d out of range", r.Arena)}
		}
		if r.Offset < 0 || r.Size < 0 || r.End() > p.Sizes[r.Arena] {
			return &VerifyError{Tensor: r.Tensor, Other: -1, Reason: fmt.Sprintf("bytes [%d,%d) outside arena %d of %d bytes", r.Offset, r.End(), r.Arena, p.Sizes[r.Arena])}
		}
		byArena[r.Arena] = append(byArena[r.Arena], r)
	}
	if len(p.Records) != len(lifetimes) {
		for _, t := range lifetimes.Tensors() {
			if _, ok := p.Record(t); !ok {
				return &VerifyError{Tensor: t, Other: -1, Reason: "live but not placed"}
			}
		}
	}

	for _, records := range byArena {
		slices.SortFunc(records, func(a, b Record) int {
			if a.Offset != b.Offset {
				if a.Offset < b.Offset {
					return -1
				}
				return 1
			}
			return a.Tensor - b.Tensor
		})
		for i, a := range records {
			for _, b := range records[i+1:] {
				if b.Offset >= a.End() {
					break
				}
				if b.Size == 0 || a.Size == 0 {
					continue
				}
				if lifetimes[a.Tensor].Overlaps(lifetimes[b.Tensor]) {
					return &VerifyError{Tensor: a.Tensor, Other: b.Tensor, Reason: "share bytes while both live"}
				}
			}
		}
	}
	return nil
}
