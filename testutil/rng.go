package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/tflplan/schema"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// GraphShape bounds a random operator graph.
type GraphShape struct {
	Operators      int
	Inputs         int // defaults to 1
	MaxFanIn       int // defaults to 2
	MaxTensorBytes int // defaults to 1024
	// ConstantRate is the chance that an operator also reads a constant.
	ConstantRate float64
}

// Model generates a single-subgraph topologically ordered graph. Every
// operator reads from earlier tensors and writes one new UINT8 tensor, so a
// tensor's size in bytes is its element count. The last written tensor is
// the subgraph output.
func (r *RNG) Model(shape GraphShape) *schema.Model {
	if shape.Inputs <= 0 {
		shape.Inputs = 1
	}
	if shape.MaxFanIn <= 0 {
		shape.MaxFanIn = 2
	}
	if shape.MaxTensorBytes <= 0 {
		shape.MaxTensorBytes = 1024
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := NewBuilder()
	sg := b.Subgraph("random")

	var ready []int
	for i := 0; i < shape.Inputs; i++ {
		t := sg.Tensor("input", schema.TensorTypeUint8, r.size(shape.MaxTensorBytes))
		sg.Input(t)
		ready = append(ready, t)
	}

	last := ready[len(ready)-1]
	for i := 0; i < shape.Operators; i++ {
		fanIn := 1 + r.rand.Intn(shape.MaxFanIn)
		inputs := make([]int, 0, fanIn+1)
		for j := 0; j < fanIn; j++ {
			inputs = append(inputs, ready[r.rand.Intn(len(ready))])
		}
		if r.rand.Float64() < shape.ConstantRate {
			n := r.size(shape.MaxTensorBytes)
			inputs = append(inputs, sg.Const("weights", schema.TensorTypeUint8, make([]byte, n), n))
		}
		out := sg.Tensor("activation", schema.TensorTypeUint8, r.size(shape.MaxTensorBytes))
		sg.Op(schema.BuiltinOperatorAdd, inputs, []int{out})
		ready = append(ready, out)
		last = out
	}
	sg.Output(last)

	return b.Model()
}

func (r *RNG) size(limit int) int32 {
	return int32(1 + r.rand.Intn(limit))
}
