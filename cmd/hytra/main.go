// Command hytra resolves mergers in solved cell-tracking hypotheses graphs.
package main

import (
	"os"

	"github.com/JaimeIvanCervantes/hytra/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
