// Package plan defines tensor lifetimes and memory layouts, checks a layout
// against the lifetimes it was built for, and encodes layouts into the
// compact payload embedded in planned descriptors.
package plan
