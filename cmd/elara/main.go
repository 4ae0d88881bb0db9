package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/applymytech/openElara-sub000/internal/config"
	assembly "github.com/applymytech/openElara-sub000/internal/context"
	"github.com/applymytech/openElara-sub000/internal/logging"
	"github.com/applymytech/openElara-sub000/internal/perception"
	"github.com/applymytech/openElara-sub000/internal/pipeline"
	"github.com/applymytech/openElara-sub000/internal/retrieval"
	"github.com/applymytech/openElara-sub000/internal/types"
)

var (
	configPath   string
	provider     string
	modelID      string
	persona      string
	temperature  float64
	historyLimit int
	knowledge    int
	maxTokens    int
	attachPath   string
	showThinking bool
	debug        bool
)

var rootCmd = &cobra.Command{
	Use:   "elara [message]",
	Short: "openElara - context-assembled chat with local and hosted models",
	Long: `openElara assembles a budgeted prompt for each chat turn: it trims the
conversation history, retrieves recent turns, semantic memories, and
knowledge-base passages concurrently, injects them as background context,
and dispatches to the selected model backend.

The message is read from the arguments, or from stdin when none are given.`,
	Args: cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(debug)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "elara.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.Flags().StringVar(&provider, "provider", perception.ProviderOllama, "model provider (Ollama (Local), TogetherAI, or a stored custom provider)")
	rootCmd.Flags().StringVar(&modelID, "model", "llama3", "model identifier")
	rootCmd.Flags().StringVar(&persona, "persona", "", "persona name used for retrieval scoping and the system prompt")
	rootCmd.Flags().Float64Var(&temperature, "temperature", 0.7, "sampling temperature")
	rootCmd.Flags().IntVar(&historyLimit, "history-tokens", 4096, "token budget for conversation history")
	rootCmd.Flags().IntVar(&knowledge, "knowledge-tokens", 2048, "token budget for retrieved knowledge")
	rootCmd.Flags().IntVar(&maxTokens, "max-tokens", 2048, "token reservation for the model's reply")
	rootCmd.Flags().StringVar(&attachPath, "attach", "", "file to attach to the message")
	rootCmd.Flags().BoolVar(&showThinking, "show-thinking", false, "print extracted reasoning before the answer")
}

func runChat(cmd *cobra.Command, args []string) error {
	message, err := readMessage(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("no message given")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Get(logging.CategoryBoot).Infof("loaded configuration from %s", configPath)

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	var attached string
	if attachPath != "" {
		data, err := os.ReadFile(attachPath)
		if err != nil {
			return fmt.Errorf("failed to read attachment: %w", err)
		}
		attached = string(data)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp := engine.GetAIResponse(ctx, pipeline.ChatRequest{
		History: []types.Turn{
			{Role: types.RoleUser, Content: message},
		},
		Model: types.ModelConfig{
			Provider: provider,
			ModelID:  modelID,
		},
		Temperature:         temperature,
		HistoryTokenLimit:   historyLimit,
		KnowledgeTokenLimit: knowledge,
		OutputReservation:   maxTokens,
		RecentTurnsCount:    cfg.Retrieval.RecentTurnsCount,
		Persona:             persona,
		AttachedFileContent: attached,
	})

	if !resp.Success {
		return fmt.Errorf("%s", resp.Error)
	}
	if showThinking && resp.Thinking != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "--- thinking ---\n%s\n--- answer ---\n", resp.Thinking)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
	return nil
}

// buildEngine wires the pipeline from configuration.
func buildEngine(cfg *config.Config) (*pipeline.Engine, error) {
	runner, err := retrieval.NewScriptRunner(cfg.Backend.Interpreter, cfg.Backend.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("retrieval backend unavailable: %w", err)
	}
	client := retrieval.NewBackendClient(runner, cfg.Backend.StoragePath)
	if cfg.Retrieval.TokensPerChunk > 0 {
		client.SetTokensPerChunk(cfg.Retrieval.TokensPerChunk)
	}

	counter := assembly.NewTokenCounter()
	trimmer := assembly.NewHistoryTrimmer(counter)
	if cfg.Retrieval.VerbatimShare > 0 {
		trimmer = assembly.NewHistoryTrimmerWithShare(counter, cfg.Retrieval.VerbatimShare)
	}

	store, err := config.LoadProviderStore(cfg.Providers.StorePath)
	if err != nil {
		return nil, err
	}
	personas, err := config.LoadPersonas(cfg.Providers.PersonasPath)
	if err != nil {
		return nil, err
	}

	router := perception.NewRouter(
		perception.NewOllamaClient(perception.OllamaConfig{BaseURL: cfg.Providers.OllamaBaseURL}),
		perception.NewTogetherClient(perception.TogetherConfig{APIKey: cfg.Providers.TogetherAPIKey}),
		store,
	)

	return pipeline.NewEngine(trimmer, assembly.NewAssembler(client), router, personas), nil
}

func readMessage(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
