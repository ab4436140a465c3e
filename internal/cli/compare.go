package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/iteration"
)

type comparison struct {
	Result1    *domain.AnalysisResult  `json:"result_1" yaml:"result_1"`
	Result2    *domain.AnalysisResult  `json:"result_2" yaml:"result_2"`
	Comparison domain.ComparisonReport `json:"comparison" yaml:"comparison"`
}

func newCompareCmd(env *environment) *cobra.Command {
	var f analyseFlags

	cmd := &cobra.Command{
		Use:   "compare FILE1 FILE2",
		Short: "Score two versions of an artifact and report what changed",
		Long: `Compare analyses FILE1 as iteration 1 and FILE2 as iteration 2 with the
same analyser, then reports the score delta, improved and regressed
dimensions, and resolved and new issues.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(f.output); err != nil {
				return err
			}
			requested, err := parseTypeFlag(f.artifactType)
			if err != nil {
				return err
			}

			texts := make([]string, 2)
			for i, path := range args {
				if texts[i], err = env.readArtifact(path); err != nil {
					return err
				}
			}

			a, err := env.setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			threshold, err := a.threshold(f.threshold)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			t, _, err := a.detector.Resolve(ctx, texts[0], requested)
			if err != nil {
				return err
			}
			an := a.newAnalyser(t)

			results := make([]*domain.AnalysisResult, 2)
			for i, text := range texts {
				fmt.Fprintf(cmd.ErrOrStderr(), "Analysing %s\n", args[i])
				if results[i], err = analyseWithProgress(ctx, cmd.ErrOrStderr(), an, text, i+1); err != nil {
					return fmt.Errorf("%s: %w", args[i], err)
				}
			}

			out := comparison{
				Result1:    results[0],
				Result2:    results[1],
				Comparison: iteration.Compare(results[0], results[1], 1, 2),
			}
			return writeOutput(cmd.OutOrStdout(), f.output, out, func(w io.Writer) {
				printResult(w, out.Result1, threshold)
				fmt.Fprintln(w)
				printResult(w, out.Result2, threshold)
				printComparison(w, &out.Comparison)
			})
		},
	}

	cmd.Flags().StringVarP(&f.artifactType, "type", "t", "", "artifact type: requirements, process, story, use_case")
	cmd.Flags().StringVarP(&f.output, "output", "o", formatText, "output format: text, json, yaml")
	cmd.Flags().Float64Var(&f.threshold, "threshold", -1, "readiness threshold (default ANALYSIS_QUALITY_THRESHOLD)")
	return cmd
}
