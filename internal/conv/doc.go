// Package conv provides checked integer conversion and arithmetic.
//
// Descriptor fields are fixed-width and untrusted; planner arithmetic runs
// on int and int64. These helpers report overflow instead of wrapping.
package conv
