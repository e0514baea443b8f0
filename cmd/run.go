package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deepsearch-cli/api/schemas"
	"github.com/xkilldash9x/deepsearch-cli/internal/agent"
	"github.com/xkilldash9x/deepsearch-cli/internal/config"
	"github.com/xkilldash9x/deepsearch-cli/internal/model"
	"github.com/xkilldash9x/deepsearch-cli/internal/observability"
	"github.com/xkilldash9x/deepsearch-cli/internal/rerank"
	"github.com/xkilldash9x/deepsearch-cli/internal/store"
	"github.com/xkilldash9x/deepsearch-cli/internal/tools"
	"github.com/xkilldash9x/deepsearch-cli/internal/workspace"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Runs a deep search investigation for the given task",
		Long: `Runs the investigation loop: the reasoning model decides each round
whether to search the web, scrape a page, update its memory, or produce
a final answer. The loop continues until the model reports completion,
the round limit is reached, or --once is set.`,
		Args: cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment.
			if err := viper.BindPFlag("agent.max_rounds", cmd.Flags().Lookup("max-rounds")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			task := strings.TrimSpace(strings.Join(args, " "))
			continueID, _ := cmd.Flags().GetString("continue")
			if task == "" && continueID == "" {
				return fmt.Errorf("a task is required (or --continue with a search id)")
			}

			promptTemplate, err := loadPromptTemplate(cmd)
			if err != nil {
				return err
			}

			modelClient, err := model.New(cfg.Model, logger)
			if err != nil {
				return err
			}
			reranker := rerank.New(cfg.Capabilities, cfg.Segmenter, logger)
			toolset := map[string]schemas.Tool{
				schemas.ToolSearch: tools.NewSearchTool(cfg.Capabilities, logger),
				schemas.ToolScrape: tools.NewScrapeTool(cfg.Capabilities, reranker, logger),
			}

			recordStore, closeStore, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			searchID, task, opts, err := prepareSearch(ctx, recordStore, task, continueID)
			if err != nil {
				return err
			}
			opts = append(opts, agent.WithObserver(store.NewSnapshotObserver(recordStore, searchID)))

			a, err := agent.New(task, modelClient, toolset, promptTemplate, cfg.Agent, logger, opts...)
			if err != nil {
				return err
			}

			once, _ := cmd.Flags().GetBool("once")
			logger.Info("Starting investigation",
				zap.String("search_id", searchID),
				zap.Int("max_rounds", cfg.Agent.MaxRounds),
				zap.Bool("once", once))

			result, err := a.Run(ctx, !once)
			if err != nil {
				return fmt.Errorf("investigation failed after %d rounds: %w", result.Rounds, err)
			}

			printResult(cmd, searchID, result)
			return nil
		},
	}

	runCmd.Flags().Int("max-rounds", 0, "maximum number of rounds (0 = unlimited)")
	runCmd.Flags().Bool("once", false, "run a single round and stop regardless of status")
	runCmd.Flags().String("continue", "", "search id of a persisted run to continue from")
	runCmd.Flags().String("prompt-file", "", "path to a custom prompt template")

	return runCmd
}

// prepareSearch either registers a fresh search record or rehydrates the
// workspace of an existing one for continuation.
func prepareSearch(ctx context.Context, recordStore schemas.RecordStore, task, continueID string) (string, string, []agent.Option, error) {
	if continueID == "" {
		searchID := uuid.NewString()
		now := time.Now().UTC()
		err := recordStore.CreateSearch(ctx, schemas.SearchRecord{
			ID:        searchID,
			Task:      task,
			Status:    schemas.StatusInProgress,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return "", "", nil, fmt.Errorf("registering search: %w", err)
		}
		return searchID, task, nil, nil
	}

	record, err := recordStore.GetSearch(ctx, continueID)
	if err != nil {
		return "", "", nil, fmt.Errorf("loading search %s: %w", continueID, err)
	}
	iterations, err := recordStore.ListIterations(ctx, continueID)
	if err != nil {
		return "", "", nil, fmt.Errorf("loading iterations for %s: %w", continueID, err)
	}

	var opts []agent.Option
	if len(iterations) > 0 {
		last := iterations[len(iterations)-1]
		state, err := workspace.ParseText(last.WorkspaceText)
		if err != nil {
			return "", "", nil, fmt.Errorf("rehydrating workspace from round %d: %w", last.Round, err)
		}
		// The continuation starts a fresh investigation over the carried
		// memory, whatever status the previous run ended with.
		state.Status = schemas.StatusInProgress
		opts = append(opts, agent.WithInitialState(state))
	}

	if err := recordStore.UpdateSearch(ctx, continueID, schemas.StatusInProgress, nil); err != nil {
		return "", "", nil, fmt.Errorf("reopening search %s: %w", continueID, err)
	}
	return continueID, record.Task, opts, nil
}

// openStore selects the persistence backend: PostgreSQL when a database
// URL is configured, an in-process store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.RecordStore, func(), error) {
	if cfg.Database.URL == "" {
		return store.NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	pgStore, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := pgStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgStore, pool.Close, nil
}

func loadPromptTemplate(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("prompt-file")
	if path == "" {
		return "", nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt template: %w", err)
	}
	return string(body), nil
}

func printResult(cmd *cobra.Command, searchID string, result schemas.RunResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Search ID: %s\n", searchID)
	fmt.Fprintf(out, "Stopped:   %s after %d round(s)\n", result.Reason, result.Rounds)
	if result.Answer != nil {
		fmt.Fprintf(out, "\nAnswer:\n%s\n", *result.Answer)
		return
	}
	fmt.Fprintf(out, "\nNo final answer. Last workspace:\n%s", workspaceText(result.Workspace))
}

func workspaceText(state schemas.WorkspaceState) string {
	return workspace.NewFromState(state).ToText()
}
