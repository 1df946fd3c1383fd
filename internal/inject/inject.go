// Package inject embeds planner output into a descriptor tree as buffers
// and named metadata records.
package inject

import (
	"fmt"
	"strconv"

	"github.com/hupe1980/tflplan/internal/conv"
	"github.com/hupe1980/tflplan/schema"
)

// MetadataPrefix starts the name of every metadata record written by the
// planner. The subgraph index follows it.
const MetadataPrefix = "tflplan/arena_plan/"

// MetadataName returns the reserved metadata name for a subgraph's plan.
func MetadataName(subgraph int) string {
	return MetadataPrefix + strconv.Itoa(subgraph)
}

// Injector appends buffers to one model. It owns the only buffer-index
// counter of a planning run, so it must not be shared between goroutines.
type Injector struct {
	model *schema.Model
	next  int
}

// New returns an injector that appends after the existing buffers of m.
func New(m *schema.Model) *Injector {
	return &Injector{model: m, next: len(m.Buffers)}
}

// Inject stores payload in a new buffer and points the subgraph's metadata
// record at it. An existing record with the same name is redirected; its old
// buffer stays in place so other references to it remain valid.
func (in *Injector) Inject(subgraph int, payload []byte) (int, error) {
	if in.next != len(in.model.Buffers) {
		return 0, fmt.Errorf("inject: buffer list changed outside the injector (%d buffers, expected %d)", len(in.model.Buffers), in.next)
	}
	index, err := conv.IntToUint32(in.next)
	if err != nil {
		return 0, fmt.Errorf("inject: buffer index: %w", err)
	}

	data := make([]byte, len(payload))
	copy(data, payload)
	in.model.Buffers = append(in.model.Buffers, schema.Buffer{Data: data})
	in.next++

	name := MetadataName(subgraph)
	for i := range in.model.Metadata {
		if in.model.Metadata[i].Name == name {
			in.model.Metadata[i].Buffer = index
			return int(index), nil
		}
	}
	if in.model.Metadata == nil {
		in.model.Metadata = []schema.Metadata{}
	}
	in.model.Metadata = append(in.model.Metadata, schema.Metadata{Name: name, Buffer: index})
	return int(index), nil
}

// Lookup returns the payload recorded for a subgraph, if any.
func Lookup(m *schema.Model, subgraph int) ([]byte, bool) {
	name := MetadataName(subgraph)
	for _, md := range m.Metadata {
		if md.Name == name && int64(md.Buffer) < int64(len(m.Buffers)) {
			return m.Buffers[md.Buffer].Data, true
		}
	}
	return nil, false
}
