package main

import (
	"os"

	"github.com/c-wilkinson/T4Toolbox/internal/commands"
	"github.com/c-wilkinson/T4Toolbox/output"
)

func main() {
	rootCmd := commands.RootCmd()

	rootCmd.AddCommand(commands.RunCmd())
	rootCmd.AddCommand(commands.StatusCmd())
	rootCmd.AddCommand(commands.CleanCmd())
	rootCmd.AddCommand(commands.ManifestCmd())

	if err := rootCmd.Execute(); err != nil {
		output.Error(err.Error())
		os.Exit(1)
	}
}
