// Command escalate drives the alert escalation test on a simulated chip.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/escalate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
