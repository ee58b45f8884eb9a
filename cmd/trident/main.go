// Command trident is the CLI entrypoint for the image-based OS servicing
// agent: one subcommand per spec.md §6 verb, wired through the same
// RunConfig every verb reads its settings from.
package main

import (
	"fmt"
	"os"

	"github.com/microsoft/trident/internal/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(types.KindOf(err).ExitCode())
	}
}
