// Package arena packs tensors into shared memory regions.
//
// Placement is a greedy interval-graph coloring: tensors are taken largest
// first and each is put at the lowest offset that no time-overlapping tensor
// occupies. Every arena's required size is its high-water mark.
//
// # Reuse Policy
//
// Live intervals are closed. A tensor may take over bytes of another only
// when its first step is strictly after the other's last step; a tensor
// written in the step where another is last read never shares its storage.
package arena
