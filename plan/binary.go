package plan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// binaryVersion is the first byte of every encoded plan.
const binaryVersion = 1

// ErrMalformed is returned by Decode for payloads that are not a valid plan.
var ErrMalformed = errors.New("plan: malformed payload")

// Encode serializes the placement of p.
// Format:
// Version (1 byte)
// ArenaCount (uvarint)
// RecordCount (uvarint)
// Records, ascending by tensor:
//
//	Tensor (uvarint)
//	Arena (uvarint)
//	Offset (uvarint)
//
// Sizes are not stored; they follow from the descriptor.
func Encode(p *Plan) []byte {
	buf := make([]byte, 0, 1+2*binary.MaxVarintLen64+len(p.Records)*(2+binary.MaxVarintLen64))
	buf = append(buf, binaryVersion)
	buf = binary.AppendUvarint(buf, uint64(p.Arenas))
	buf = binary.AppendUvarint(buf, uint64(len(p.Records)))
	for _, r := range p.Records {
		buf = binary.AppendUvarint(buf, uint64(r.Tensor))
		buf = binary.AppendUvarint(buf, uint64(r.Arena))
		buf = binary.AppendUvarint(buf, uint64(r.Offset))
	}
	return buf
}

// Decode parses a payload written by Encode. Record sizes and arena sizes
// are left zero; see SetSizes.
func Decode(data []byte) (*Plan, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if data[0] != binaryVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, data[0])
	}
	r := &uvarintReader{data: data, pos: 1}

	arenas := r.next("arena count")
	count := r.next("record count")
	if r.err != nil {
		return nil, r.err
	}
	if arenas == 0 || arenas > MaxArenas {
		return nil, fmt.Errorf("%w: %d arenas", ErrMalformed, arenas)
	}
	// Every record takes at least three bytes.
	if count > uint64(len(data)-r.pos)/3 {
		return nil, fmt.Errorf("%w: %d records exceed payload", ErrMalformed, count)
	}

	p := &Plan{
		Arenas:  int(arenas),
		Sizes:   make([]int64, arenas),
		Records: make([]Record, count),
	}
	for i := range p.Records {
		tensor := r.next("tensor")
		arena := r.next("arena")
		offset := r.next("offset")
		if r.err != nil {
			return nil, r.err
		}
		if tensor > math.MaxInt32 {
			return nil, fmt.Errorf("%w: tensor %d out of range", ErrMalformed, tensor)
		}
		if i > 0 && int(tensor) <= p.Records[i-1].Tensor {
			return nil, fmt.Errorf("%w: tensor %d out of order", ErrMalformed, tensor)
		}
		if arena >= arenas {
			return nil, fmt.Errorf("%w: tensor %d in arena %d of %d", ErrMalformed, tensor, arena, arenas)
		}
		if offset > math.MaxInt64 {
			return nil, fmt.Errorf("%w: tensor %d offset overflows", ErrMalformed, tensor)
		}
		p.Records[i] = Record{Tensor: int(tensor), Arena: int(arena), Offset: int64(offset)}
	}
	if r.pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data)-r.pos)
	}
	return p, nil
}

// uvarintReader keeps the first error, so a sequence of reads needs a
// single check.
type uvarintReader struct {
	data []byte
	pos  int
	err  error
}

func (r *uvarintReader) next(what string) uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		if n == 0 {
			r.err = fmt.Errorf("%w: truncated %s", ErrMalformed, what)
		} else {
			r.err = fmt.Errorf("%w: %s overflows", ErrMalformed, what)
		}
		return 0
	}
	r.pos += n
	return v
}
