package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/ba-analyser/internal/config"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/repository"
)

var errMemoryArchive = errors.New("archive needs STORE_TYPE=sqlite or postgres")

func newArchiveCmd(env *environment) *cobra.Command {
	var (
		output string
		purge  bool
	)

	cmd := &cobra.Command{
		Use:   "archive [SESSION_ID]",
		Short: "List archived sessions or show the iterations of one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			a, err := env.setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Store.Type == config.StoreMemory {
				return errMemoryArchive
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if purge {
					return errors.New("--purge needs a SESSION_ID")
				}
				lister, ok := a.repo.(repository.SessionLister)
				if !ok {
					return fmt.Errorf("store %s cannot list sessions", a.cfg.Store.Type)
				}
				ids, err := lister.Sessions(ctx)
				if err != nil {
					return fmt.Errorf("list sessions: %w", err)
				}
				return writeOutput(out, output, ids, func(w io.Writer) {
					for _, id := range ids {
						fmt.Fprintln(w, id)
					}
				})
			}

			id := args[0]
			if purge {
				if err := a.repo.DeleteSession(ctx, id); err != nil {
					return fmt.Errorf("purge session %s: %w", id, err)
				}
				fmt.Fprintf(out, "Session %s purged\n", id)
				return nil
			}

			records, err := a.repo.ListBySession(ctx, id)
			if err != nil {
				return fmt.Errorf("load session %s: %w", id, err)
			}
			if len(records) == 0 {
				return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
			}
			return writeOutput(out, output, records, func(w io.Writer) {
				printArchive(w, records)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format: text, json, yaml")
	cmd.Flags().BoolVar(&purge, "purge", false, "delete the archived iterations of SESSION_ID")
	return cmd
}

func printArchive(w io.Writer, records []domain.IterationRecord) {
	fmt.Fprintf(w, "Session %s\n", records[0].SessionID)
	for _, r := range records {
		score := 0.0
		if r.Result != nil {
			score = r.Result.OverallScore
		}
		fmt.Fprintf(w, "  #%d  %s  %5.1f  %s  %d chars\n",
			r.Iteration, r.CreatedAt.Format("2006-01-02 15:04"), score, scoreBar(score), len([]rune(r.ArtifactText)))
	}
}
