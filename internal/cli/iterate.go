package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/config"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/session"
)

type iterateFlags struct {
	artifactType  string
	threshold     float64
	maxIterations int
	save          bool
	auto          bool
}

func newIterateCmd(env *environment) *cobra.Command {
	var f iterateFlags

	cmd := &cobra.Command{
		Use:   "iterate FILE",
		Short: "Improve an artifact interactively until it reaches the threshold",
		Long: `Iterate analyses FILE, shows the score and suggestions, and lets you accept
suggestions (an LLM rewrites the artifact with them) or edit the file yourself.
The loop repeats until the artifact is ready, you quit, or --max-iterations
is reached. With STORE_TYPE=sqlite or postgres every iteration is archived.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIterate(cmd, env, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.artifactType, "type", "t", "", "artifact type: requirements, process, story, use_case")
	cmd.Flags().Float64Var(&f.threshold, "threshold", -1, "readiness threshold (default ANALYSIS_QUALITY_THRESHOLD)")
	cmd.Flags().IntVar(&f.maxIterations, "max-iterations", 5, "stop after this many analyses")
	cmd.Flags().BoolVar(&f.save, "save", false, "write each revised artifact back to FILE")
	cmd.Flags().BoolVar(&f.auto, "auto", false, "accept every suggestion without prompting")
	return cmd
}

func runIterate(cmd *cobra.Command, env *environment, path string, f iterateFlags) error {
	if f.maxIterations < 1 {
		return errors.New("--max-iterations must be at least 1")
	}
	requested, err := parseTypeFlag(f.artifactType)
	if err != nil {
		return err
	}
	text, err := env.readArtifact(path)
	if err != nil {
		return err
	}
	if path == "-" && (f.save || !f.auto) {
		return errors.New("stdin input requires --auto and cannot be used with --save")
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
	out, progress := cmd.OutOrStdout(), cmd.ErrOrStderr()

	t, det, err := a.detector.Resolve(ctx, text, requested)
	if err != nil {
		return err
	}
	if det != nil {
		fmt.Fprintf(progress, "Detected type: %s (confidence %.2f)\n", det.Type, det.Confidence)
	}

	sess, err := a.newSessions().Create(text, threshold, t)
	if err != nil {
		return err
	}
	a.logger.Info("iteration session started",
		zap.String("session_id", sess.ID),
		zap.String("artifact_type", string(t)),
		zap.Int("max_iterations", f.maxIterations),
	)

	ask := env.opts.prompt
	if ask == nil {
		ask = terminalPrompter{}
		if f.auto {
			ask = autoPrompter{}
		}
	}

	for n := 1; n <= f.maxIterations; n++ {
		rep := newProgressReporter(progress)
		outcome, err := sess.Analyse(analyser.WithProgress(ctx, rep.observe))
		rep.finish()
		if err != nil {
			return fmt.Errorf("iteration %d: %w", n, err)
		}

		printResult(out, outcome.Result, threshold)
		if outcome.Comparison != nil {
			printComparison(out, outcome.Comparison)
		}
		if outcome.Ready {
			fmt.Fprintf(out, "\nArtifact is ready (score %.1f >= %.0f).\n", outcome.Result.OverallScore, threshold)
			break
		}
		if n == f.maxIterations {
			fmt.Fprintf(out, "\nStopped after %d iterations without reaching %.0f.\n", n, threshold)
			break
		}

		suggestions := sess.Suggestions()
		printSuggestions(out, suggestions)

		quit, err := nextStep(cmd, env, sess, ask, suggestions, path, f.save)
		if err != nil {
			return err
		}
		if quit {
			break
		}
	}

	printHistory(out, sess.Snapshot(), a.cfg.Store.Type)
	return nil
}

// nextStep спрашивает пользователя и готовит текст следующей итерации
func nextStep(cmd *cobra.Command, env *environment, sess *session.Session, ask prompter, suggestions []domain.Suggestion, path string, save bool) (bool, error) {
	act, err := ask.Action(suggestions)
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	var ids []string
	switch act {
	case actionQuit:
		return true, nil
	case actionReload:
		text, err := env.readArtifact(path)
		if err != nil {
			return false, err
		}
		return false, sess.UpdateArtifact(text)
	case actionChoose:
		if ids, err = ask.ChooseIDs(suggestions); err != nil {
			return false, err
		}
	default:
		ids = suggestionIDs(suggestions)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Applying %d suggestion(s)...\n", len(ids))
	revised, err := sess.ApplySuggestions(cmd.Context(), ids)
	if err != nil {
		return false, fmt.Errorf("apply suggestions: %w", err)
	}

	if save {
		if err := os.WriteFile(path, []byte(revised+"\n"), 0o644); err != nil {
			return false, fmt.Errorf("save revised artifact: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved revision to %s\n", path)
	}
	return false, nil
}

func printHistory(w io.Writer, snap session.Snapshot, store string) {
	fmt.Fprintf(w, "\nSession %s, %d iteration(s):", snap.ID, snap.Iterations)
	for _, p := range snap.History {
		fmt.Fprintf(w, " %d:%.1f", p.Iteration, p.Score)
	}
	fmt.Fprintln(w)
	if store != config.StoreMemory {
		fmt.Fprintf(w, "Archived in %s: ba-analyser archive %s\n", store, snap.ID)
	}
}
