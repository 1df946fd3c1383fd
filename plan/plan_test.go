package plan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		a, b Interval
		want bool
	}{
		{Interval{0, 1}, Interval{2, 3}, false},
		{Interval{0, 1}, Interval{1, 2}, true},
		{Interval{BeforeStart, 0}, Interval{0, 0}, true},
		{Interval{3, AfterEnd}, Interval{0, 2}, false},
		{Interval{3, AfterEnd}, Interval{5, 5}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.Overlaps(tt.b), "%v %v", tt.a, tt.b)
		assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "%v %v", tt.b, tt.a)
	}
	assert.Equal(t, "[start,end]", Interval{BeforeStart, AfterEnd}.String())
	assert.Equal(t, "[2,4]", Interval{2, 4}.String())
}

func TestLifetimesTensors(t *testing.T) {
	l := Lifetimes{7: {0, 1}, 2: {1, 2}, 5: {0, 0}}
	assert.Equal(t, []int{2, 5, 7}, l.Tensors())
	assert.Empty(t, Lifetimes{}.Tensors())
}

func scenario() (*Plan, Lifetimes) {
	lifetimes := Lifetimes{
		0: {BeforeStart, 2},
		1: {0, 1},
		2: {1, 2},
	}
	p := &Plan{
		Arenas: 1,
		Sizes:  []int64{200},
		Records: []Record{
			{Tensor: 0, Offset: 0, Size: 100},
			{Tensor: 1, Offset: 100, Size: 50},
			{Tensor: 2, Offset: 150, Size: 50},
		},
	}
	return p, lifetimes
}

func TestVerify(t *testing.T) {
	p, lifetimes := scenario()
	require.NoError(t, Verify(p, lifetimes))
	assert.Equal(t, int64(200), p.Total())
	assert.Equal(t, int64(200), p.Naive())

	r, ok := p.Record(1)
	require.True(t, ok)
	assert.Equal(t, int64(100), r.Offset)
	_, ok = p.Record(9)
	assert.False(t, ok)
}

func TestVerifyRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Plan, l Lifetimes)
		tensor int
	}{
		{"overlap", func(p *Plan, _ Lifetimes) { p.Records[2].Offset = 120 }, 1},
		{"outside arena", func(p *Plan, _ Lifetimes) { p.Sizes[0] = 190 }, 2},
		{"missing record", func(p *Plan, l Lifetimes) { l[3] = Interval{2, 2} }, 3},
		{"not live", func(p *Plan, l Lifetimes) { delete(l, 2) }, 2},
		{"arena range", func(p *Plan, _ Lifetimes) { p.Records[1].Arena = 1 }, 1},
		{"order", func(p *Plan, _ Lifetimes) { p.Records[1].Tensor = 0 }, 0},
		{"sizes", func(p *Plan, _ Lifetimes) { p.Sizes = nil }, -1},
		{"too many arenas", func(p *Plan, _ Lifetimes) { p.Arenas = MaxArenas + 1 }, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, l := scenario()
			tt.mutate(p, l)

			err := Verify(p, l)
			var ve *VerifyError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.tensor, ve.Tensor)
		})
	}
}

func TestVerifyAllowsReuseAfterLastUse(t *testing.T) {
	p := &Plan{
		Arenas: 1,
		Sizes:  []int64{64},
		Records: []Record{
			{Tensor: 0, Offset: 0, Size: 64},
			{Tensor: 1, Offset: 0, Size: 64},
			{Tensor: 2, Offset: 10, Size: 0},
		},
	}
	l := Lifetimes{0: {0, 1}, 1: {2, 3}, 2: {0, 3}}
	assert.NoError(t, Verify(p, l))

	l[1] = Interval{1, 3}
	assert.Error(t, Verify(p, l))
}

func TestSetSizes(t *testing.T) {
	p, _ := scenario()
	p.Sizes = nil
	for i := range p.Records {
		p.Records[i].Size = 0
	}

	require.NoError(t, p.SetSizes(map[int]int64{0: 100, 1: 50, 2: 50}))
	assert.Equal(t, []int64{200}, p.Sizes)
	assert.Equal(t, int64(50), p.Records[2].Size)

	var ve *VerifyError
	assert.ErrorAs(t, p.SetSizes(map[int]int64{0: 100}), &ve)

	p.Arenas = math.MaxInt32
	assert.ErrorAs(t, p.SetSizes(map[int]int64{0: 100, 1: 50, 2: 50}), &ve)
}
