package cli

import (
	"io"

	"github.com/spf13/cobra"
)

func newConfigCmd(env *environment) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}

			settings := cfg.Settings()
			values := make(map[string]string, len(settings))
			for _, s := range settings {
				values[s.Key] = s.Value
			}
			return writeOutput(cmd.OutOrStdout(), output, values, func(w io.Writer) {
				printSettings(w, settings)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format: text, json, yaml")
	return cmd
}
