package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Secrets stay out of terminal output and shell history.
		redacted := *cfg
		if redacted.Anthropic.Key != "" {
			redacted.Anthropic.Key = "[redacted]"
		}
		if redacted.DocConv.MistralKey != "" {
			redacted.DocConv.MistralKey = "[redacted]"
		}
		if redacted.Store.DatabaseURL != "" {
			redacted.Store.DatabaseURL = "[redacted]"
		}

		out, err := yaml.Marshal(redacted)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}

		cmd.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
