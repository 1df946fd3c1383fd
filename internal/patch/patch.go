// Package patch re-encodes a mutated descriptor tree into a self-contained
// file.
package patch

import (
	"fmt"

	"github.com/hupe1980/tflplan/schema"
)

// Error reports a tree that cannot be written.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "patch: " + e.Reason + ": " + e.Err.Error()
	}
	return "patch: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Serialize checks the cross references of m, encodes it and confirms the
// result carries the descriptor identifier. The whole tree is re-encoded;
// nothing of an earlier encoding is reused.
func Serialize(m *schema.Model) ([]byte, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	out, err := schema.Encode(m)
	if err != nil {
		return nil, &Error{Reason: "encode", Err: err}
	}
	if len(out) < 8 || string(out[4:8]) != schema.FileIdentifier {
		return nil, &Error{Reason: "encoded descriptor lacks identifier " + schema.FileIdentifier}
	}
	return out, nil
}

func validate(m *schema.Model) error {
	buffers := int64(len(m.Buffers))
	for _, md := range m.Metadata {
		if int64(md.Buffer) >= buffers {
			return &Error{Reason: fmt.Sprintf("metadata %q references buffer %d of %d", md.Name, md.Buffer, buffers)}
		}
	}
	for i, idx := range m.MetadataBuffer {
		if idx < 0 || int64(idx) >= buffers {
			return &Error{Reason: fmt.Sprintf("metadata_buffer[%d] references buffer %d of %d", i, idx, buffers)}
		}
	}
	for si := range m.Subgraphs {
		sg := &m.Subgraphs[si]
		for ti := range sg.Tensors {
			if int64(sg.Tensors[ti].Buffer) >= buffers {
				return &Error{Reason: fmt.Sprintf("subgraph %d tensor %d references buffer %d of %d", si, ti, sg.Tensors[ti].Buffer, buffers)}
			}
		}
		for oi := range sg.Operators {
			if int64(sg.Operators[oi].OpcodeIndex) >= int64(len(m.OperatorCodes)) {
				return &Error{Reason: fmt.Sprintf("subgraph %d operator %d references opcode %d of %d", si, oi, sg.Operators[oi].OpcodeIndex, len(m.OperatorCodes))}
			}
		}
	}
	for i, sd := range m.SignatureDefs {
		if int64(sd.SubgraphIndex) >= int64(len(m.Subgraphs)) {
			return &Error{Reason: fmt.Sprintf("signature %d references subgraph %d of %d", i, sd.SubgraphIndex, len(m.Subgraphs))}
		}
	}
	return nil
}
