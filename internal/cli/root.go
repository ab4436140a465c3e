package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/ba-analyser/internal/config"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
	"github.com/kitbuilder587/ba-analyser/internal/metrics"
)

// options - точки подмены для тестов
type options struct {
	llm     llm.Client
	metrics *metrics.Metrics
	prompt  prompter
	stdin   io.Reader
}

// environment - общее состояние дерева команд
type environment struct {
	opts    options
	verbose bool
}

func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(options{})
}

func newRootCmd(opts options) *cobra.Command {
	env := &environment{opts: opts}

	root := &cobra.Command{
		Use:   "ba-analyser",
		Short: "LLM-assisted quality analysis for business analysis artifacts",
		Long: `BA Analyser scores requirements documents, business process descriptions
and user stories across quality dimensions, proposes concrete text
improvements and tracks the score across revisions until the artifact
reaches the readiness threshold.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&env.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newAnalyseCmd(env),
		newDetectCmd(env),
		newIterateCmd(env),
		newCompareCmd(env),
		newStoriesCmd(env),
		newServeCmd(env),
		newConfigCmd(env),
		newArchiveCmd(env),
	)
	return root
}

func (e *environment) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if e.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// setup собирает app; вызывающий обязан сделать Close
func (e *environment) setup(cmd *cobra.Command) (*app, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return newApp(cmd.Context(), cfg, logger, e.opts)
}

// readArtifact читает файл или stdin для "-"
func (e *environment) readArtifact(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		in := e.opts.stdin
		if in == nil {
			in = os.Stdin
		}
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}

	text := string(data)
	if err := domain.ValidateArtifact(text); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

func parseTypeFlag(raw string) (domain.ArtifactType, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return domain.ParseArtifactType(raw)
}
