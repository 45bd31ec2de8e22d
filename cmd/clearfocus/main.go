package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "clearfocus",
		Short:         "ClearFocus turns brain dumps into a short daily focus list",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CLEARFOCUS_CONFIG"), "path to a YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(processCmd(&configPath))
	rootCmd.AddCommand(scoreCmd(&configPath))
	rootCmd.AddCommand(decideCmd(&configPath))
	rootCmd.AddCommand(focusCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fail(err.Error())
		os.Exit(1)
	}
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}
