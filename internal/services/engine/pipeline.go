package engine

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/forgeml/ragsmith/internal/common"
	"github.com/forgeml/ragsmith/internal/interfaces"
	"github.com/forgeml/ragsmith/internal/models"
	"github.com/forgeml/ragsmith/internal/services/chunker"
	"github.com/forgeml/ragsmith/internal/services/dedup"
	"github.com/forgeml/ragsmith/internal/services/generator"
	"github.com/forgeml/ragsmith/internal/services/sink"
	"github.com/forgeml/ragsmith/internal/services/validator"
)

// Pipeline bundles an engine with the run options derived from
// configuration, so a caller can assemble everything once and run
// documents through it.
type Pipeline struct {
	Engine  *Engine
	Options Options

	OutputCSV   string
	OutputJSONL string
}

// BuildPipeline wires the full generation pipeline from configuration:
// chunker, generator, validator, dedup index seeded from any existing
// output file, and the file sink. The LLM service is passed in so the
// caller owns its lifecycle.
func BuildPipeline(config *common.Config, llm interfaces.LLMService, logger arbor.ILogger) (*Pipeline, error) {
	difficulty, err := models.ParseDifficulty(config.Generation.Difficulty)
	if err != nil {
		return nil, err
	}

	segmenter, err := chunker.NewSegmenter()
	if err != nil {
		return nil, fmt.Errorf("failed to build segmenter: %w", err)
	}
	chunkSvc := chunker.NewService(segmenter, logger)

	genSvc := generator.NewService(llm, config.Generation.Model, config.Generation.Temperature, logger)

	layers := make([]models.Layer, 0, len(config.Validation.Layers))
	for _, name := range config.Validation.Layers {
		layers = append(layers, models.Layer(name))
	}
	valSvc, err := validator.NewService(llm, validator.Config{
		OverlapThreshold:    config.Validation.OverlapThreshold,
		MinAnswerChars:      config.Validation.MinAnswerChars,
		SimilarityThreshold: config.Validation.SimilarityThreshold,
		JudgeModel:          config.Validation.JudgeModel,
		Layers:              layers,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build validator: %w", err)
	}

	dedupIndex := dedup.NewIndex(logger)
	if err := dedupIndex.SeedFromCSV(config.Output.Path); err != nil {
		return nil, fmt.Errorf("failed to seed dedup index: %w", err)
	}

	fileSink := sink.NewFileSink(config.Output.Path, logger)

	return &Pipeline{
		Engine: New(chunkSvc, genSvc, valSvc, dedupIndex, fileSink, logger),
		Options: Options{
			Model:             config.Generation.Model,
			Difficulty:        difficulty,
			MaxPairs:          config.Generation.MaxPairs,
			SentencesPerChunk: config.Chunking.SentencesPerChunk,
			Overlap:           config.Chunking.Overlap,
		},
		OutputCSV:   fileSink.CSVPath(),
		OutputJSONL: fileSink.JSONLPath(),
	}, nil
}

// GenerateRAGDataset builds the pipeline from configuration and runs it
// over one document, returning the run result.
func GenerateRAGDataset(ctx context.Context, config *common.Config, llm interfaces.LLMService, documentText string, logger arbor.ILogger) (*Result, error) {
	pipeline, err := BuildPipeline(config, llm, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.Engine.Run(ctx, documentText, pipeline.Options)
}
