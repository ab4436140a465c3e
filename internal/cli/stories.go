package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/stories"
)

type storiesFlags struct {
	output     string
	noCoverage bool
}

func newStoriesCmd(env *environment) *cobra.Command {
	var f storiesFlags

	cmd := &cobra.Command{
		Use:   "generate-stories FILE",
		Short: "Turn a requirements artifact into epics and user stories",
		Long: `Generate-stories extracts requirements and personas from FILE ("-" reads stdin),
writes user stories with acceptance criteria, MoSCoW priority and complexity,
then checks that every requirement is covered by at least one story.`,
		Aliases: []string{"stories"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStories(cmd, env, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", formatText, "output format: text, json, yaml")
	cmd.Flags().BoolVar(&f.noCoverage, "no-coverage", false, "skip the requirement coverage check")
	return cmd
}

func runStories(cmd *cobra.Command, env *environment, path string, f storiesFlags) error {
	if err := checkFormat(f.output); err != nil {
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

	steps := 4
	if f.noCoverage {
		steps = 3
	}
	rep := newProgressReporter(cmd.ErrOrStderr())
	ctx := stories.WithProgress(cmd.Context(), rep.observeStep(steps))

	var gen *stories.Generation
	if f.noCoverage {
		gen, err = a.stories.Generate(ctx, text)
		if err == nil && len(gen.Stories) == 0 {
			err = domain.ErrNoStories
		}
	} else {
		gen, err = a.stories.Run(ctx, text)
	}
	rep.finish()
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), f.output, gen, func(w io.Writer) {
		printStories(w, gen)
	})
}
