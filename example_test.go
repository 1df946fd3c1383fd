package tflplan_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/tflplan"
	"github.com/hupe1980/tflplan/schema"
	"github.com/hupe1980/tflplan/testutil"
)

// Example plans a three-operator chain into one unaligned arena.
func Example() {
	b := testutil.NewBuilder()
	sg := b.Subgraph("main")
	in := sg.Tensor("in", schema.TensorTypeUint8, 100)
	a := sg.Tensor("a", schema.TensorTypeUint8, 50)
	c := sg.Tensor("c", schema.TensorTypeUint8, 50)
	out := sg.Tensor("out", schema.TensorTypeUint8, 50)
	sg.Input(in).Output(out).
		Op(schema.BuiltinOperatorRelu, []int{in}, []int{a}).
		Op(schema.BuiltinOperatorLogistic, []int{a}, []int{c}).
		Op(schema.BuiltinOperatorAdd, []int{in, c}, []int{out})

	input, err := tflplan.Dump(b.Model())
	if err != nil {
		log.Fatal(err)
	}

	res, err := tflplan.New(tflplan.WithAlignment(1)).Plan(context.Background(), input)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range res.Subgraphs[0].Plan.Records {
		fmt.Printf("tensor %d at %d\n", r.Tensor, r.Offset)
	}
	fmt.Println("arena bytes:", res.Subgraphs[0].Plan.Sizes[0])
	// Output:
	// tensor 0 at 0
	// tensor 1 at 100
	// tensor 2 at 150
	// tensor 3 at 100
	// arena bytes: 200
}

// Example_verify checks the plan embedded by an earlier run.
func Example_verify() {
	b := testutil.NewBuilder()
	sg := b.Subgraph("main")
	x := sg.Tensor("x", schema.TensorTypeFloat32, 1, 16)
	y := sg.Tensor("y", schema.TensorTypeFloat32, 1, 16)
	sg.Input(x).Output(y).Op(schema.BuiltinOperatorRelu, []int{x}, []int{y})

	input, err := tflplan.Dump(b.Model())
	if err != nil {
		log.Fatal(err)
	}
	p := tflplan.New()
	res, err := p.Plan(context.Background(), input)
	if err != nil {
		log.Fatal(err)
	}

	verified, err := p.Verify(context.Background(), res.Output)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("verified subgraphs:", len(verified))
	// Output: verified subgraphs: 1
}
