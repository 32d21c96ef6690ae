// Package vm implements a small structured-bytecode virtual machine.
//
// This package contains:
//   - NaN-boxed value representation (numbers and booleans)
//   - Linear byte-addressable memory with float64 load/store
//   - A flat table of defined and imported (host) functions
//   - An instruction executor with structured control flow
package vm
