// main.go
//
// Minimal entry point that delegates CLI handling to the Cobra root command in cmd/root.go

package main

import (
	"github.com/tebeka/atexit"

	"github.com/inference-sim/pagesim/cmd"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
