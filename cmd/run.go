// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crucible-dev/crucible-cli/api/schemas"
	"github.com/crucible-dev/crucible-cli/internal/analyzer"
	"github.com/crucible-dev/crucible-cli/internal/audit"
	"github.com/crucible-dev/crucible-cli/internal/config"
	"github.com/crucible-dev/crucible-cli/internal/fixloop"
	"github.com/crucible-dev/crucible-cli/internal/llmclient"
	"github.com/crucible-dev/crucible-cli/internal/mutation"
	"github.com/crucible-dev/crucible-cli/internal/observability"
	"github.com/crucible-dev/crucible-cli/internal/policy"
	"github.com/crucible-dev/crucible-cli/internal/sandbox"
)

type runFlags struct {
	errorFile string
	project   string
	language  string
	buildCmd  string
	lintCmd   string
	testCmd   string
	output    string
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the self-correction loop against a failing project snapshot.",
		Long: `Reads an error signal, analyzes it, and iterates candidate fixes in an
isolated sandbox until one passes the mutation gate or a termination bound
fires. The project snapshot is never modified; the validated fix is
emitted as a unified diff for the caller to apply.

Exits zero only when a fix was found and verified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixLoop(cmd.Context(), cmd.OutOrStdout(), appConfig, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.errorFile, "error-file", "e", "", "file with the raw error output ('-' for stdin)")
	cmd.Flags().StringVarP(&flags.project, "project", "p", "", "path to the project snapshot")
	cmd.Flags().StringVarP(&flags.language, "language", "l", "", "project language (go, python, javascript); inferred when omitted")
	cmd.Flags().StringVar(&flags.buildCmd, "build-cmd", "", "build command (optional)")
	cmd.Flags().StringVar(&flags.lintCmd, "lint-cmd", "", "lint command (optional)")
	cmd.Flags().StringVar(&flags.testCmd, "test-cmd", "", "test command (defaults per language)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("error-file")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

// runFixLoop wires the real components and executes one run. It is kept
// separate from the cobra plumbing so tests can drive it directly.
func runFixLoop(ctx context.Context, out io.Writer, cfg *config.Config, flags runFlags) error {
	logger := observability.GetLogger()

	rawText, err := readErrorInput(flags.errorFile)
	if err != nil {
		return err
	}

	project, err := filepath.Abs(flags.project)
	if err != nil {
		return fmt.Errorf("failed to resolve project path: %w", err)
	}
	if info, err := os.Stat(project); err != nil || !info.IsDir() {
		return fmt.Errorf("project snapshot %s is not a directory", project)
	}

	language := flags.language
	if language == "" {
		language = inferLanguage(project)
		if language == "" {
			return fmt.Errorf("could not infer project language; pass --language")
		}
		logger.Info("Inferred project language.", zap.String("language", language))
	}

	commands, err := buildCommands(language, flags)
	if err != nil {
		return err
	}

	store, err := openAuditStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	recorder := audit.NewRecorder(logger, store)
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Warn("Failed to close audit store.", zap.Error(err))
		}
	}()

	executor := sandbox.NewExecutor(logger, cfg.Sandbox)

	suggesters := []analyzer.HintSuggester{analyzer.NewRuleSuggester()}
	if cfg.Analyzer.LLM.Enabled {
		client, err := llmclient.NewGeminiClient(ctx, cfg.Analyzer.LLM, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM suggester: %w", err)
		}
		suggesters = append(suggesters, analyzer.NewLLMSuggester(logger, client))
	}
	an := analyzer.New(logger, cfg.Analyzer, cfg.FixLoop.MinConfidenceThreshold, suggesters...)

	gate := mutation.NewValidator(logger, cfg.Mutation, executor)
	gatekeeper := policy.NewPathRuleGate(logger, cfg.Policy.DeniedPaths)

	orch := fixloop.NewOrchestrator(logger, cfg.FixLoop, an, executor, gate, gatekeeper, recorder, fixloop.SystemClock())

	report := schemas.ErrorReport{
		RawText:     rawText,
		Language:    language,
		SnapshotDir: project,
	}
	limits := schemas.SandboxLimits{
		StepTimeout:    cfg.Sandbox.StepTimeout,
		MaxMemoryMB:    cfg.Sandbox.MaxMemoryMB,
		MaxCPUSeconds:  cfg.Sandbox.MaxCPUSeconds,
		NetworkEnabled: cfg.Sandbox.NetworkEnabled,
	}

	result, err := orch.Run(ctx, report, commands, limits)
	if err != nil {
		return err
	}

	if err := writeResult(out, flags.output, result); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("fix loop terminated without a verified fix: %s", result.TerminationReason)
	}
	return nil
}

// openAuditStore selects the configured backend. The postgres pool is
// created here because its lifecycle belongs to the command.
func openAuditStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.AuditStore, error) {
	if cfg.Audit.Backend == "postgres" {
		pool, err := pgxpool.New(ctx, cfg.Audit.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store, err := audit.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &pooledStore{PostgresStore: store, pool: pool}, nil
	}
	return audit.OpenStore(cfg.Audit, logger)
}

// pooledStore ties the pgx pool's lifetime to the store handle.
type pooledStore struct {
	*audit.PostgresStore
	pool *pgxpool.Pool
}

func (p *pooledStore) Close() error {
	p.pool.Close()
	return nil
}

func readErrorInput(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read error input: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", fmt.Errorf("error input is empty")
	}
	return string(data), nil
}

// inferLanguage guesses the project language from its manifest files.
func inferLanguage(project string) string {
	checks := []struct {
		marker   string
		language string
	}{
		{"go.mod", "go"},
		{"package.json", "javascript"},
		{"pyproject.toml", "python"},
		{"setup.py", "python"},
		{"requirements.txt", "python"},
	}
	for _, c := range checks {
		if _, err := os.Stat(filepath.Join(project, c.marker)); err == nil {
			return c.language
		}
	}
	return ""
}

// buildCommands assembles the sandbox command set, falling back to
// per-language defaults for the test step.
func buildCommands(language string, flags runFlags) (schemas.SandboxCommands, error) {
	commands := schemas.SandboxCommands{
		Build: splitCommand(flags.buildCmd),
		Lint:  splitCommand(flags.lintCmd),
		Test:  splitCommand(flags.testCmd),
	}
	if len(commands.Test) == 0 {
		switch language {
		case "go":
			commands.Test = []string{"go", "test", "./..."}
		case "python":
			commands.Test = []string{"python", "-m", "pytest", "-q"}
		case "javascript":
			commands.Test = []string{"npm", "test", "--silent"}
		default:
			return commands, fmt.Errorf("no default test command for language %q; pass --test-cmd", language)
		}
	}
	return commands, nil
}

func splitCommand(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
