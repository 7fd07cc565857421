// Command reprojsim drives the reprojection scheduler over a synthetic scene.
package main

import (
	"fmt"
	"os"

	"github.com/gogpu/reproject/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
