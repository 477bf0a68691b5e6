package main

import (
	"fmt"
	"os"

	"github.com/simonhull/firebird-suite/weaver/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
