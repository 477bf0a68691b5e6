// Package commands implements the weaver command line.
package commands
