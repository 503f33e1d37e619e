package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/common"
	"github.com/forgeml/ragsmith/internal/services/engine"
	"github.com/forgeml/ragsmith/internal/services/llm"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	inputPath    = flag.String("input", "", "Source document to generate from (required)")
	inputPathI   = flag.String("i", "", "Source document (shorthand)")
	outputPath   = flag.String("output", "", "Output CSV path (overrides config)")
	modelName    = flag.String("model", "", "Generation model (overrides config)")
	difficulty   = flag.String("difficulty", "", "Question difficulty: easy, medium or hard (overrides config)")
	maxPairs     = flag.Int("max-pairs", 0, "Maximum accepted pairs for this run (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Ragsmith version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	input := *inputPath
	if *inputPathI != "" {
		input = *inputPathI
	}
	if input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("ragsmith.toml"); err == nil {
			configFiles = append(configFiles, "ragsmith.toml")
		}
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	applyFlagOverrides(config)

	if err := config.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Invalid configuration after flag overrides")
		os.Exit(1)
	}

	logger = common.InitLogger(config)

	common.PrintBanner(common.GetVersion())

	logger.Debug().
		Str("provider", config.LLM.DefaultProvider).
		Str("model", config.Generation.Model).
		Str("difficulty", config.Generation.Difficulty).
		Int("max_pairs", config.Generation.MaxPairs).
		Str("output", config.Output.Path).
		Msg("Resolved configuration")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	document, err := os.ReadFile(input)
	if err != nil {
		logger.Fatal().Err(err).Str("path", input).Msg("Failed to read input document")
		os.Exit(1)
	}

	llmService := llm.NewFactory(config, logger)
	defer llmService.Close()

	// Fail fast on missing credentials or an unreachable local server.
	if err := llmService.HealthCheck(ctx); err != nil {
		logger.Fatal().Err(err).Msg("LLM provider health check failed")
		os.Exit(1)
	}

	pipeline, err := engine.BuildPipeline(config, llmService, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build pipeline")
		os.Exit(1)
	}

	result, err := pipeline.Engine.Run(ctx, string(document), pipeline.Options)
	if err != nil {
		if result != nil {
			logger.Error().
				Str("run_id", result.RunID).
				Int("accepted", result.Accepted).
				Err(err).
				Msg("Run aborted, records accepted before the failure remain on disk")
		} else {
			logger.Error().Err(err).Msg("Run failed")
		}
		os.Exit(1)
	}

	logger.Info().
		Str("run_id", result.RunID).
		Int("accepted", result.Accepted).
		Int("chunks_total", result.ChunksTotal).
		Int("chunks_processed", result.ChunksProcessed).
		Str("csv", pipeline.OutputCSV).
		Str("jsonl", pipeline.OutputJSONL).
		Msg("Dataset generation complete")

	for reason, count := range result.Rejections {
		logger.Info().
			Str("reason", string(reason)).
			Int("count", count).
			Msg("Rejections")
	}
}

// applyFlagOverrides applies command-line overrides on top of file and
// environment configuration.
func applyFlagOverrides(config *common.Config) {
	if *outputPath != "" {
		config.Output.Path = *outputPath
	}
	if *modelName != "" {
		config.Generation.Model = *modelName
	}
	if *difficulty != "" {
		config.Generation.Difficulty = *difficulty
	}
	if *maxPairs > 0 {
		config.Generation.MaxPairs = *maxPairs
	}
}
