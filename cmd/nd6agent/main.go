package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yanet-platform/nd6/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "nd6agent",
	Short:   "IPv6 neighbor discovery resolution agent",
	Version: version.Version(),
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}
