// Command ripple runs a replication node.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ripple",
		Usage: "replicate signed feeds between peers of a social graph",
		Commands: []*cli.Command{
			initCommand,
			tokenCommand,
			configCommand,
			runCommand,
			followCommand,
			blockCommand,
			readCommand,
			clockCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
