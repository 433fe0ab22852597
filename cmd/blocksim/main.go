// Command blocksim runs contract scenarios against a local simulator
// and serves simulators over gRPC.
package main

import (
	"fmt"
	"os"

	"github.com/blockberries/blocksim/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
