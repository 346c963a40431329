// Command engine is a small demonstration CLI that wires an engine instance
// together with a trivial pass-through schedule and drives it with a
// synthetic audio-callback loop, so the engine's realtime plumbing can be
// exercised end-to-end without a real host audio driver.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "engine",
		Short: "Run the realtime audio engine demo",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file overriding the embedded defaults")

	root.AddCommand(runCommand(&configPath))
	return root
}
