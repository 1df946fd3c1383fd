// Package liveness derives, for one subgraph, the closed interval of
// operator steps during which each tensor's storage must stay valid.
package liveness
