package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/resonance/internal/analyzer"
	"github.com/MikeSquared-Agency/resonance/internal/config"
	"github.com/MikeSquared-Agency/resonance/internal/extractor"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "resonance",
		Short:         "resonance - recover and analyze shared AI conversations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newExtractCmd(), newBatchCmd())
	return root
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// buildExtractor applies the marker, paragraph and vocabulary settings.
func buildExtractor(cfg config.Config, logger *slog.Logger) (*extractor.Extractor, error) {
	unclassified, err := parseUnclassified(cfg.UnclassifiedParagraphs)
	if err != nil {
		return nil, err
	}

	var vocab *analyzer.Vocabulary
	if cfg.VocabularyPath != "" {
		vocab, err = analyzer.LoadVocabularyFile(cfg.VocabularyPath)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary: %w", err)
		}
		logger.Info("vocabulary loaded", "path", cfg.VocabularyPath)
	}

	return extractor.New(extractor.Options{
		Markers: extractor.Markers{
			Field:     cfg.RoleField,
			User:      cfg.UserMarker,
			Assistant: cfg.AssistantMarker,
		},
		Split:      extractor.SplitOptions{Unclassified: unclassified},
		Vocabulary: vocab,
	}, logger), nil
}

func parseUnclassified(v string) (extractor.Role, error) {
	switch v {
	case "", "drop":
		return "", nil
	case "user":
		return extractor.RoleUser, nil
	case "assistant":
		return extractor.RoleAssistant, nil
	default:
		return "", fmt.Errorf("RESONANCE_UNCLASSIFIED_PARAGRAPHS must be drop, user or assistant, got %q", v)
	}
}
