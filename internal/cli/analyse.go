package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
)

type analyseFlags struct {
	artifactType string
	output       string
	threshold    float64
}

func newAnalyseCmd(env *environment) *cobra.Command {
	var f analyseFlags

	cmd := &cobra.Command{
		Use:   "analyse FILE",
		Short: "Score an artifact once and list issues and suggestions",
		Long: `Analyse scores the artifact in FILE ("-" reads stdin) across the quality
dimensions of its type. The type is detected automatically unless --type is set.`,
		Aliases: []string{"analyze"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyse(cmd, env, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.artifactType, "type", "t", "", "artifact type: requirements, process, story, use_case")
	cmd.Flags().StringVarP(&f.output, "output", "o", formatText, "output format: text, json, yaml")
	cmd.Flags().Float64Var(&f.threshold, "threshold", -1, "readiness threshold (default ANALYSIS_QUALITY_THRESHOLD)")
	return cmd
}

func runAnalyse(cmd *cobra.Command, env *environment, path string, f analyseFlags) error {
	if err := checkFormat(f.output); err != nil {
		return err
	}
	requested, err := parseTypeFlag(f.artifactType)
	if err != nil {
		return err
	}
	text, err := env.readArtifact(path)
	if err != nil {
		return err
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
	t, det, err := a.detector.Resolve(ctx, text, requested)
	if err != nil {
		return err
	}
	if det != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Detected type: %s (confidence %.2f)\n", det.Type, det.Confidence)
	}

	res, err := analyseWithProgress(ctx, cmd.ErrOrStderr(), a.newAnalyser(t), text, 1)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), f.output, res, func(w io.Writer) {
		printResult(w, res, threshold)
		printSuggestions(w, res.Suggestions)
	})
}

func analyseWithProgress(ctx context.Context, progress io.Writer, an analyser.Analyser, text string, iteration int) (*domain.AnalysisResult, error) {
	rep := newProgressReporter(progress)
	defer rep.finish()
	return an.Analyse(analyser.WithProgress(ctx, rep.observe), text, iteration)
}

// threshold: отрицательное значение флага - взять из конфигурации
func (a *app) threshold(flag float64) (float64, error) {
	if flag < 0 {
		return a.cfg.Analysis.QualityThreshold, nil
	}
	if err := domain.ValidateThreshold(flag); err != nil {
		return 0, err
	}
	return flag, nil
}
