// Package testutil provides testing utilities for tflplan.
//
// This package is intended for use in tests and benchmarks only.
// It provides a builder for synthetic descriptors and a seeded generator
// of random operator graphs for property tests.
//
// # Synthetic Descriptors
//
//	b := testutil.NewBuilder()
//	sg := b.Subgraph("main")
//	in := sg.Tensor("in", schema.TensorTypeUint8, 100)
//	out := sg.Tensor("out", schema.TensorTypeUint8, 50)
//	sg.Input(in).Output(out).Op(schema.BuiltinOperatorRelu, []int{in}, []int{out})
//	raw := b.Bytes(t)
//
// # Random Graphs
//
//	rng := testutil.NewRNG(seed)
//	m := rng.Model(testutil.GraphShape{Operators: 32, MaxTensorBytes: 4096})
package testutil
