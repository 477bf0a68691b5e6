// Package weaver builds include dependency graphs for C and C++ source trees.
package weaver

// Version is the current weaver release.
const Version = "0.3.0"
