// Package batch extracts every supported conversation file under a
// directory, with bounded parallelism and a resumable state file.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/resonance/internal/extractor"
)

// Extensions lists the file types a batch run picks up.
var Extensions = []string{".html", ".htm", ".json", ".txt", ".md"}

// Config holds the batch command configuration.
type Config struct {
	Dir         string
	StatePath   string // resumable progress file (default DefaultStatePath)
	OutDir      string // optional: write one <name>.json result per input
	Concurrency int
	DryRun      bool // extract only, no store writes or output files
}

// ConversationWriter stores extraction results.
type ConversationWriter interface {
	WriteConversation(ctx context.Context, sourceURL string, res *extractor.Result) (uuid.UUID, error)
}

// Runner orchestrates a batch run.
type Runner struct {
	cfg       Config
	store     ConversationWriter
	extractor *extractor.Extractor
	logger    *slog.Logger
}

// NewRunner creates a batch runner. s may be nil to skip persistence.
func NewRunner(cfg Config, s ConversationWriter, ext *extractor.Extractor, logger *slog.Logger) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	return &Runner{
		cfg:       cfg,
		store:     s,
		extractor: ext,
		logger:    logger,
	}
}

// Run extracts every pending file and returns the final state. Per-file
// failures are recorded in the state and do not stop the run; only
// cancellation or an unusable state file does.
func (r *Runner) Run(ctx context.Context) (*State, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	var pending []string
	for _, path := range files {
		if !state.IsProcessed(path) {
			pending = append(pending, path)
		}
	}
	state.setRemaining(len(pending))

	r.logger.Info("files discovered",
		"total", len(files),
		"pending", len(pending),
		"concurrency", r.cfg.Concurrency,
	)

	if r.cfg.OutDir != "" && !r.cfg.DryRun {
		if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, path := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.processFile(gctx, state, path)
			r.saveState(state)
			return nil
		})
	}

	err = g.Wait()
	r.saveState(state)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		r.logger.Info("batch interrupted", "state", r.cfg.StatePath, "dry_run", r.cfg.DryRun)
		return state, err
	}

	r.logger.Info("batch complete",
		"extracted", state.Extracted,
		"errors", len(state.Errors),
		"dry_run", r.cfg.DryRun,
	)
	return state, nil
}

// saveState persists progress. A dry run stores nothing, so its counts live
// only in the returned state and a later real run still sees every file as
// pending.
func (r *Runner) saveState(state *State) {
	if r.cfg.DryRun {
		return
	}
	if err := state.Save(); err != nil {
		r.logger.Warn("failed to save state", "error", err)
	}
}

func (r *Runner) processFile(ctx context.Context, state *State, path string) {
	res, err := r.extractor.ExtractFile(path, "")
	if err != nil {
		r.logger.Error("extraction failed", "path", path, "error", err)
		state.AddError(fmt.Sprintf("extract %s: %v", path, err))
		return
	}

	if !r.cfg.DryRun {
		if err := r.persist(ctx, path, res); err != nil {
			r.logger.Error("persist failed", "path", path, "error", err)
			state.AddError(fmt.Sprintf("persist %s: %v", path, err))
			return
		}
	}

	r.logger.Debug("file processed",
		"path", path,
		"strategy", res.Conversation.Strategy,
		"messages", len(res.Conversation.Messages),
	)
	state.MarkProcessed(path, len(res.Conversation.Messages), res.Context.ProblemDomain)
}

func (r *Runner) persist(ctx context.Context, path string, res *extractor.Result) error {
	if r.store != nil {
		if _, err := r.store.WriteConversation(ctx, "file://"+path, res); err != nil {
			return fmt.Errorf("write conversation: %w", err)
		}
	}
	if r.cfg.OutDir != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		if err := os.WriteFile(r.outputPath(path), data, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	return nil
}

// outputPath names the result file after the input's path relative to the
// batch directory, so same-named files in different folders do not collide.
func (r *Runner) outputPath(path string) string {
	rel, err := filepath.Rel(expandHome(r.cfg.Dir), path)
	if err != nil {
		rel = filepath.Base(path)
	}
	name := strings.ReplaceAll(filepath.ToSlash(rel), "/", "__")
	return filepath.Join(r.cfg.OutDir, name+".json")
}

func (r *Runner) discoverFiles() ([]string, error) {
	dir := expandHome(r.cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Warn("error walking batch dir", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() && supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FormatSummary renders a run's totals with a per-domain breakdown.
func FormatSummary(s *State) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("=== Batch Summary ===\n")
	fmt.Fprintf(&sb, "Files extracted: %d\n", s.Extracted)
	fmt.Fprintf(&sb, "Messages found: %d\n", s.MessagesFound)
	fmt.Fprintf(&sb, "Errors: %d\n", len(s.Errors))

	domains := make([]string, 0, len(s.Domains))
	for d := range s.Domains {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool {
		if s.Domains[domains[i]] != s.Domains[domains[j]] {
			return s.Domains[domains[i]] > s.Domains[domains[j]]
		}
		return domains[i] < domains[j]
	})
	if len(domains) > 0 {
		sb.WriteString("Domains:\n")
		for _, d := range domains {
			fmt.Fprintf(&sb, "  - %s: %d\n", d, s.Domains[d])
		}
	}
	return sb.String()
}
