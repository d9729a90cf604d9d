package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/resonance/internal/config"
	"github.com/MikeSquared-Agency/resonance/internal/extractor"
	"github.com/MikeSquared-Agency/resonance/internal/fetch"
	"github.com/MikeSquared-Agency/resonance/internal/processor"
)

type extractFlags struct {
	kind       string
	url        string
	transcript bool
	contextOut bool
}

func newExtractCmd() *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Extract a conversation and its context from a file, stdin or share URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, f)
		},
	}
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "", "Source kind: html, json or text (default from file extension)")
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "Fetch and extract a shared conversation URL")
	cmd.Flags().BoolVarP(&f.transcript, "transcript", "t", false, "Print the recovered turns as a User:/Assistant: transcript")
	cmd.Flags().BoolVar(&f.contextOut, "context-only", false, "Print only the analyzed context")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string, f extractFlags) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	if f.url != "" && len(args) > 0 {
		return errors.New("pass either a file or --url, not both")
	}
	if f.url == "" && len(args) == 0 {
		return errors.New("a file, - for stdin, or --url is required")
	}

	ext, err := buildExtractor(cfg, logger)
	if err != nil {
		return err
	}

	var kind extractor.SourceKind
	if f.kind != "" {
		if kind, err = extractor.ParseSourceKind(f.kind); err != nil {
			return err
		}
	}

	var res *extractor.Result
	switch {
	case f.url != "":
		fetcher, err := fetch.New(fetch.Options{Mode: cfg.FetchMode, Timeout: cfg.FetchTimeout, BrowserURL: cfg.BrowserURL})
		if err != nil {
			return err
		}
		out, err := processor.New(ext, fetcher, nil, nil, logger).Process(cmd.Context(), processor.Request{URL: f.url})
		if err != nil {
			return err
		}
		res = out.Result
	case args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if kind == "" {
			kind = extractor.KindText
		}
		if res, err = ext.Extract(string(data), kind); err != nil {
			return err
		}
	default:
		if res, err = ext.ExtractFile(args[0], kind); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if f.transcript {
		_, err := fmt.Fprintln(w, extractor.FormatTranscript(res.Conversation.Messages))
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if f.contextOut {
		return enc.Encode(res.Context)
	}
	return enc.Encode(res)
}
