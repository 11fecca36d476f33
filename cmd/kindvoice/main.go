// Kindvoice is a daemon and CLI that answers what a user shares with a
// supportive response in a chosen tone, as text and speech, and keeps a
// history of conversations and reflections.
//
// Usage:
//
//	kindvoice serve [--config /path/to/kindvoice.yaml]
//	kindvoice respond --tone protective "I feel like I am not enough"
//	kindvoice respond --listen
//	kindvoice history list --tone nurturing --search lonely
//	kindvoice history export --out history.txt
//
// @title       kindvoice API
// @version     1.0
// @description Supportive response generation with voice input, speech output and history.
// @BasePath    /
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nadzzz/kindvoice/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "kindvoice",
		Short:         "Supportive responses as text and speech",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/kindvoice.yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		config.SetupLogging(cfg.Logging)
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newRespondCmd(load),
		newHistoryCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "kindvoice %s\n", version)
			},
		},
	)
	return root
}

// loader reads the configuration and sets up logging.
type loader func() (*config.Config, error)
