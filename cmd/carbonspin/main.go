// Command carbonspin spins up and simulates forest carbon units.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/carbonspin/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
