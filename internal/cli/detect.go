package cli

import (
	"io"

	"github.com/spf13/cobra"
)

func newDetectCmd(env *environment) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "detect FILE",
		Short: "Detect the artifact type of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			text, err := env.readArtifact(args[0])
			if err != nil {
				return err
			}

			a, err := env.setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			det, err := a.detector.Detect(cmd.Context(), text)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, det, func(w io.Writer) {
				printDetection(w, det)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format: text, json, yaml")
	return cmd
}
