package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/tflplan"
)

func invalid(flag, value, want string) error {
	return fmt.Errorf("%w: --%s %q: want %s", tflplan.ErrInvalidArgument, flag, value, want)
}

// parseCapacity parses ARENA=BYTES.
func parseCapacity(s string) (int, int64, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return 0, 0, invalid("capacity", s, "ARENA=BYTES")
	}
	arena, err := strconv.Atoi(k)
	if err != nil || arena < 0 {
		return 0, 0, invalid("capacity", s, "ARENA=BYTES")
	}
	limit, err := strconv.ParseInt(v, 10, 64)
	if err != nil || limit < 0 {
		return 0, 0, invalid("capacity", s, "ARENA=BYTES")
	}
	return arena, limit, nil
}

// parseTensorRef parses SUBGRAPH:TENSOR.
func parseTensorRef(s string) (int, int, bool) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, false
	}
	sg, err := strconv.Atoi(a)
	if err != nil || sg < 0 {
		return 0, 0, false
	}
	t, err := strconv.Atoi(b)
	if err != nil || t < 0 {
		return 0, 0, false
	}
	return sg, t, true
}

// parseAffinity parses SUBGRAPH:TENSOR=A1,A2,...
func parseAffinity(s string) (int, int, []int, error) {
	const want = "SUBGRAPH:TENSOR=A1,A2"
	ref, list, ok := strings.Cut(s, "=")
	if !ok {
		return 0, 0, nil, invalid("affinity", s, want)
	}
	sg, t, ok := parseTensorRef(ref)
	if !ok || list == "" {
		return 0, 0, nil, invalid("affinity", s, want)
	}
	var arenas []int
	for _, f := range strings.Split(list, ",") {
		a, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || a < 0 {
			return 0, 0, nil, invalid("affinity", s, want)
		}
		arenas = append(arenas, a)
	}
	return sg, t, arenas, nil
}

// parseSize parses SUBGRAPH:TENSOR=BYTES.
func parseSize(s string) (int, int, int64, error) {
	const want = "SUBGRAPH:TENSOR=BYTES"
	ref, v, ok := strings.Cut(s, "=")
	if !ok {
		return 0, 0, 0, invalid("size", s, want)
	}
	sg, t, ok := parseTensorRef(ref)
	if !ok {
		return 0, 0, 0, invalid("size", s, want)
	}
	size, err := strconv.ParseInt(v, 10, 64)
	if err != nil || size < 0 {
		return 0, 0, 0, invalid("size", s, want)
	}
	return sg, t, size, nil
}
