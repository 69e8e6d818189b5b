package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/headachelog/internal/config"
)

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "headachelog",
		Short:         "Personal headache journal server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addServe(root, &cfg)
	addInitUser(root, &cfg)
	addExport(root, &cfg)
	addImport(root, &cfg)
	addSeed(root, &cfg)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
