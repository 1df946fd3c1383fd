package arena

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/hupe1980/tflplan/plan"
)

var (
	// ErrInvalidConfig is returned for configurations that cannot be planned.
	ErrInvalidConfig = errors.New("arena: invalid config")
	// ErrMissingSize is returned when a live tensor has no byte size.
	ErrMissingSize = errors.New("arena: missing tensor size")
)

// CapacityError is returned when a tensor fits no candidate arena without
// exceeding its capacity.
type CapacityError struct {
	Tensor int
	Size   int64
	Arenas []int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("arena: tensor %d of %d bytes exceeds the capacity of arenas %v", e.Tensor, e.Size, e.Arenas)
}

// Config controls placement.
type Config struct {
	// Arenas is the number of independent memory regions, at least 1.
	Arenas int
	// Alignment of every offset in bytes. 0 and 1 mean unaligned.
	Alignment int64
	// Capacities limits the size of arena i to Capacities[i] bytes. Missing
	// entries and 0 mean unlimited.
	Capacities []int64
	// Affinity restricts a tensor to the listed arenas, in preference order.
	Affinity map[int][]int
}

func (c *Config) validate() error {
	if c.Arenas < 1 || c.Arenas > plan.MaxArenas {
		return fmt.Errorf("%w: %d arenas", ErrInvalidConfig, c.Arenas)
	}
	if c.Alignment < 0 {
		return fmt.Errorf("%w: alignment %d", ErrInvalidConfig, c.Alignment)
	}
	if len(c.Capacities) > c.Arenas {
		return fmt.Errorf("%w: %d capacities for %d arenas", ErrInvalidConfig, len(c.Capacities), c.Arenas)
	}
	for i, capacity := range c.Capacities {
		if capacity < 0 {
			return fmt.Errorf("%w: arena %d capacity %d", ErrInvalidConfig, i, capacity)
		}
	}
	for t, arenas := range c.Affinity {
		if len(arenas) == 0 {
			return fmt.Errorf("%w: tensor %d has an empty affinity", ErrInvalidConfig, t)
		}
		for _, a := range arenas {
			if a < 0 || a >= c.Arenas {
				return fmt.Errorf("%w: tensor %d affinity to arena %d of %d", ErrInvalidConfig, t, a, c.Arenas)
			}
		}
	}
	return nil
}

func (c *Config) capacity(arena int) int64 {
	if arena < len(c.Capacities) {
		return c.Capacities[arena]
	}
	return 0
}

func (c *Config) candidates(tensor int, all []int) []int {
	if arenas, ok := c.Affinity[tensor]; ok {
		return arenas
	}
	return all
}

func (c *Config) alignUp(offset int64) int64 {
	if c.Alignment <= 1 {
		return offset
	}
	return (offset + c.Alignment - 1) / c.Alignment * c.Alignment
}

type placement struct {
	tensor   int
	interval plan.Interval
	offset   int64
	size     int64
}

// Plan assigns every tensor of lifetimes an arena and offset.
//
// Tensors are placed largest first, ties by ascending index. Each one goes
// to the lowest aligned offset that is clear of every placed tensor whose
// interval overlaps its own. Among the candidate arenas the first one that
// can host the tensor below its current high-water mark wins; otherwise the
// first one whose grown mark stays within capacity. The result is
// deterministic for a given input.
func Plan(lifetimes plan.Lifetimes, sizes map[int]int64, cfg Config) (*plan.Plan, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	tensors := lifetimes.Tensors()
	for _, t := range tensors {
		size, ok := sizes[t]
		if !ok {
			return nil, fmt.Errorf("%w: tensor %d", ErrMissingSize, t)
		}
		if size < 0 {
			return nil, fmt.Errorf("%w: tensor %d has negative size %d", ErrMissingSize, t, size)
		}
	}

	order := slices.Clone(tensors)
	sort.SliceStable(order, func(i, j int) bool {
		return sizes[order[i]] > sizes[order[j]]
	})

	all := make([]int, cfg.Arenas)
	for i := range all {
		all[i] = i
	}

	p := &plan.Plan{Arenas: cfg.Arenas, Sizes: make([]int64, cfg.Arenas)}
	placed := make([][]placement, cfg.Arenas)
	records := make(map[int]plan.Record, len(tensors))

	for _, t := range order {
		iv, size := lifetimes[t], sizes[t]
		candidates := cfg.candidates(t, all)

		chosen, fallback := -1, -1
		var chosenOffset, fallbackOffset int64
		for _, a := range candidates {
			offset := cfg.fit(placed[a], iv, size)
			end := offset + size
			if end <= p.Sizes[a] {
				chosen, chosenOffset = a, offset
				break
			}
			if capacity := cfg.capacity(a); fallback < 0 && (capacity == 0 || end <= capacity) {
				fallback, fallbackOffset = a, offset
			}
		}
		if chosen < 0 {
			if fallback < 0 {
				return nil, &CapacityError{Tensor: t, Size: size, Arenas: slices.Clone(candidates)}
			}
			chosen, chosenOffset = fallback, fallbackOffset
		}

		placed[chosen] = append(placed[chosen], placement{tensor: t, interval: iv, offset: chosenOffset, size: size})
		if end := chosenOffset + size; end > p.Sizes[chosen] {
			p.Sizes[chosen] = end
		}
		records[t] = plan.Record{Tensor: t, Arena: chosen, Offset: chosenOffset, Size: size}
	}

	p.Records = make([]plan.Record, len(tensors))
	for i, t := range tensors {
		p.Records[i] = records[t]
	}
	return p, nil
}

// fit returns the lowest aligned offset at which size bytes do not collide
// with any placement live at the same time.
func (c *Config) fit(placed []placement, iv plan.Interval, size int64) int64 {
	var conflicts []placement
	for _, p := range placed {
		if p.size > 0 && p.interval.Overlaps(iv) {
			conflicts = append(conflicts, p)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].offset != conflicts[j].offset {
			return conflicts[i].offset < conflicts[j].offset
		}
		return conflicts[i].tensor < conflicts[j].tensor
	})

	var offset int64
	for _, p := range conflicts {
		if offset+size <= p.offset {
			break
		}
		if end := c.alignUp(p.offset + p.size); end > offset {
			offset = end
		}
	}
	return offset
}

// LowerBound returns the largest sum of sizes of tensors live at the same
// step. No single-arena layout can be smaller.
func LowerBound(lifetimes plan.Lifetimes, sizes map[int]int64) int64 {
	type event struct {
		step  int
		delta int64
	}
	events := make([]event, 0, 2*len(lifetimes))
	for _, t := range lifetimes.Tensors() {
		iv := lifetimes[t]
		events = append(events, event{step: iv.First, delta: sizes[t]})
		if iv.Last != plan.AfterEnd {
			events = append(events, event{step: iv.Last + 1, delta: -sizes[t]})
		}
	}
	// Releases at a step happen before allocations at the same step.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].step != events[j].step {
			return events[i].step < events[j].step
		}
		return events[i].delta < events[j].delta
	})

	var live, peak int64
	for _, e := range events {
		live += e.delta
		if live > peak {
			peak = live
		}
	}
	return peak
}
