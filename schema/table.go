package schema

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// table is a bounds-checked view over one flatbuffer table.
type table struct {
	flatbuffers.Table
}

func (t table) size() int { return len(t.Bytes) }

// slot returns the absolute position of a field, or 0 when it is absent.
func (t table) slot(i int) flatbuffers.UOffsetT {
	o := t.Offset(flatbuffers.VOffsetT(4 + 2*i))
	if o == 0 {
		return 0
	}
	return t.Pos + flatbuffers.UOffsetT(o)
}

func (t table) has(i int) bool { return t.slot(i) != 0 }

// slots returns the number of fields declared by the table's vtable.
func (t table) slots() int {
	vtable := flatbuffers.UOffsetT(flatbuffers.SOffsetT(t.Pos) - t.GetSOffsetT(t.Pos))
	return (int(t.GetVOffsetT(vtable)) - 4) / 2
}

// foreign returns the first populated slot that is not in known, or -1.
func (t table) foreign(known int, skip ...int) int {
	n := t.slots()
	for s := 0; s < n; s++ {
		if s < known && !contains(skip, s) {
			continue
		}
		if t.has(s) {
			return s
		}
	}
	return -1
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func (t table) uint8At(i int, def uint8) uint8 {
	if p := t.slot(i); p != 0 {
		return t.GetUint8(p)
	}
	return def
}

func (t table) int8At(i int, def int8) int8 {
	if p := t.slot(i); p != 0 {
		return t.GetInt8(p)
	}
	return def
}

func (t table) boolAt(i int) bool {
	if p := t.slot(i); p != 0 {
		return t.GetBool(p)
	}
	return false
}

func (t table) int32At(i int, def int32) int32 {
	if p := t.slot(i); p != 0 {
		return t.GetInt32(p)
	}
	return def
}

func (t table) uint32At(i int, def uint32) uint32 {
	if p := t.slot(i); p != 0 {
		return t.GetUint32(p)
	}
	return def
}

func (t table) uint64At(i int) uint64 {
	if p := t.slot(i); p != 0 {
		return t.GetUint64(p)
	}
	return 0
}

// deref follows the uoffset stored at p.
func (t table) deref(p flatbuffers.UOffsetT) (flatbuffers.UOffsetT, error) {
	if int(p)+flatbuffers.SizeUOffsetT > t.size() {
		return 0, fmt.Errorf("offset %d out of range", p)
	}
	target := p + t.GetUOffsetT(p)
	if int(target) >= t.size() {
		return 0, fmt.Errorf("reference %d out of range", target)
	}
	return target, nil
}

// child returns the sub-table referenced by slot i.
func (t table) child(i int) (table, bool, error) {
	p := t.slot(i)
	if p == 0 {
		return table{}, false, nil
	}
	pos, err := t.deref(p)
	if err != nil {
		return table{}, false, err
	}
	return table{flatbuffers.Table{Bytes: t.Bytes, Pos: pos}}, true, nil
}

// vector locates the vector at slot i and checks that n elements of
// elemSize bytes fit in the buffer.
func (t table) vector(i, elemSize int) (start flatbuffers.UOffsetT, n int, present bool, err error) {
	p := t.slot(i)
	if p == 0 {
		return 0, 0, false, nil
	}
	vec, err := t.deref(p)
	if err != nil {
		return 0, 0, false, err
	}
	if int(vec)+flatbuffers.SizeUOffsetT > t.size() {
		return 0, 0, false, fmt.Errorf("vector header at %d out of range", vec)
	}
	count := uint64(t.GetUOffsetT(vec))
	start = vec + flatbuffers.SizeUOffsetT
	if uint64(start)+count*uint64(elemSize) > uint64(t.size()) {
		return 0, 0, false, fmt.Errorf("vector of %d elements at %d exceeds buffer", count, vec)
	}
	return start, int(count), true, nil
}

func (t table) stringAt(i int) (string, error) {
	start, n, _, err := t.vector(i, 1)
	if err != nil {
		return "", err
	}
	return string(t.Bytes[start : start+flatbuffers.UOffsetT(n)]), nil
}

// bytesAt copies the byte vector at slot i. A present but empty vector
// yields a non-nil empty slice.
func (t table) bytesAt(i int) ([]byte, error) {
	start, n, ok, err := t.vector(i, 1)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, t.Bytes[start:])
	return out, nil
}

func (t table) int32sAt(i int) ([]int32, error) {
	start, n, ok, err := t.vector(i, 4)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]int32, n)
	for k := range out {
		out[k] = t.GetInt32(start + flatbuffers.UOffsetT(4*k))
	}
	return out, nil
}

func (t table) int64sAt(i int) ([]int64, error) {
	start, n, ok, err := t.vector(i, 8)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]int64, n)
	for k := range out {
		out[k] = t.GetInt64(start + flatbuffers.UOffsetT(8*k))
	}
	return out, nil
}

func (t table) float32sAt(i int) ([]float32, error) {
	start, n, ok, err := t.vector(i, 4)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]float32, n)
	for k := range out {
		out[k] = t.GetFloat32(start + flatbuffers.UOffsetT(4*k))
	}
	return out, nil
}

func (t table) boolsAt(i int) ([]bool, error) {
	start, n, ok, err := t.vector(i, 1)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]bool, n)
	for k := range out {
		out[k] = t.GetBool(start + flatbuffers.UOffsetT(k))
	}
	return out, nil
}

// tablesAt resolves a vector of tables. present reports whether the vector
// exists at all.
func (t table) tablesAt(i int) (tables []table, present bool, err error) {
	start, n, ok, err := t.vector(i, flatbuffers.SizeUOffsetT)
	if err != nil || !ok {
		return nil, false, err
	}
	tables = make([]table, n)
	for k := range tables {
		pos, err := t.deref(start + flatbuffers.UOffsetT(flatbuffers.SizeUOffsetT*k))
		if err != nil {
			return nil, false, err
		}
		tables[k] = table{flatbuffers.Table{Bytes: t.Bytes, Pos: pos}}
	}
	return tables, true, nil
}
