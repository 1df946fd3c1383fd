// Package graph adapts a decoded descriptor into the read-only operator
// graph consumed by the planner: resolved operator kinds, constant and
// variable classification, and static tensor sizes.
package graph
