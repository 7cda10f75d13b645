package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/proposer/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Config prints the merged configuration as YAML with secrets masked.

Configuration is stored at ~/.config/proposer/config.yaml
Project-specific overrides can be placed in .proposer.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(a.cfg.Redacted())
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config files in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "user:    %s\n", config.GetUserConfigPath())
			project := config.GetProjectConfigPath()
			if project == "" {
				project = "(none)"
			}
			fmt.Fprintf(w, "project: %s\n", project)
			fmt.Fprintf(w, "api key: %s\n", config.GetAPIKeySource(a.cfg))
			return nil
		},
	})

	return cmd
}
