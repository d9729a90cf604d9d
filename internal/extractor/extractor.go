// Package extractor recovers conversations from shared-chat pages, JSON
// exports and plain transcripts, and hands the separated turns to the
// analyzer.
package extractor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/MikeSquared-Agency/resonance/internal/analyzer"
)

// Options configures an Extractor. The zero value uses the default role
// markers, drops unclassifiable paragraphs and scores with the built-in
// vocabulary.
type Options struct {
	Markers    Markers
	Split      SplitOptions
	Vocabulary *analyzer.Vocabulary
}

// Extractor runs the extraction pipeline. It holds only immutable
// configuration, so one Extractor can serve concurrent calls.
type Extractor struct {
	markers  Markers
	split    SplitOptions
	analyzer *analyzer.Analyzer
	logger   *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{
		markers:  opts.Markers.withDefaults(),
		split:    opts.Split,
		analyzer: analyzer.New(opts.Vocabulary),
		logger:   logger,
	}
}

// Extract runs the default pipeline over source.
func Extract(source string, kind SourceKind) (*Result, error) {
	return New(Options{}, nil).Extract(source, kind)
}

// Extract recovers the conversation in source and analyzes it. Malformed
// input never fails; the only error is an unsupported kind.
func (e *Extractor) Extract(source string, kind SourceKind) (*Result, error) {
	conv, err := e.ExtractConversation(source, kind)
	if err != nil {
		return nil, err
	}
	user, assistant := partition(conv.Messages)
	return &Result{
		Kind:         kind,
		Conversation: *conv,
		Context:      e.analyzer.Analyze(user, assistant),
	}, nil
}

// ExtractFile reads path and extracts it, inferring the kind from the file
// extension when kind is empty.
func (e *Extractor) ExtractFile(path string, kind SourceKind) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if kind == "" {
		kind = KindFromPath(path)
	}
	return e.Extract(string(data), kind)
}

// ExtractConversation runs only the recovery stages, without analysis.
func (e *Extractor) ExtractConversation(source string, kind SourceKind) (*Conversation, error) {
	var conv *Conversation
	switch kind {
	case KindHTML:
		conv = e.fromHTML(source)
	case KindJSON:
		conv = e.fromJSON(source)
	case KindText:
		conv = e.fromText(source)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if conv.Title == "" {
		conv.Title = defaultTitle
	}
	if conv.Messages == nil {
		conv.Messages = []Message{}
	}

	e.logger.Debug("conversation extracted",
		"kind", kind,
		"strategy", conv.Strategy,
		"pattern", conv.Pattern,
		"messages", len(conv.Messages),
		"source_len", len(source),
	)
	return conv, nil
}

func (e *Extractor) fromHTML(doc string) *Conversation {
	if p, ok := Locate(doc); ok {
		if msgs, strategy := e.decode(p); len(msgs) > 0 {
			conv := &Conversation{Strategy: strategy, Pattern: p.Pattern, Messages: msgs}
			applyMetadata(conv, p.Decoded)
			return conv
		}
		e.logger.Debug("payload located but no messages decoded", "pattern", p.Pattern)
	}

	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		e.logger.Debug("html parse failed", "error", err)
		return &Conversation{Strategy: StrategyNone}
	}
	if msgs := domMessages(root); len(msgs) > 0 {
		return &Conversation{Strategy: StrategyDOM, Messages: msgs}
	}
	// The parser has already decoded entities, so only escapes remain.
	msgs, strategy := e.split.turns(normalizeEscapes(nodeText(root)))
	return &Conversation{Strategy: strategy, Messages: msgs}
}

func (e *Extractor) fromJSON(doc string) *Conversation {
	if msgs := decodeSchema(doc); len(msgs) > 0 {
		conv := &Conversation{Strategy: StrategySchema, Pattern: PatternDirectDocument, Messages: msgs}
		applyMetadata(conv, doc)
		return conv
	}
	return e.fromText(doc)
}

func (e *Extractor) fromText(text string) *Conversation {
	msgs, strategy := e.split.Turns(text)
	return &Conversation{Strategy: strategy, Messages: msgs}
}

// decode mirrors Markers.Decode but reports which sub-strategy succeeded.
func (e *Extractor) decode(p *RawPayload) ([]Message, Strategy) {
	if msgs := decodeSchema(p.Decoded); len(msgs) > 0 {
		return msgs, StrategySchema
	}
	if msgs := e.markers.decodeMarkers(p.Decoded); len(msgs) > 0 {
		return msgs, StrategyMarkers
	}
	return nil, StrategyNone
}
