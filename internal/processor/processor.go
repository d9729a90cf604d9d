// Package processor runs resonance's request pipeline: fetch, extract,
// persist and publish.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/resonance/internal/extractor"
	"github.com/MikeSquared-Agency/resonance/internal/fetch"
	"github.com/MikeSquared-Agency/resonance/internal/hermes"
)

var (
	// ErrBadRequest wraps problems with the request itself.
	ErrBadRequest = errors.New("bad request")
	// ErrFetch wraps failures to retrieve a share page.
	ErrFetch = errors.New("fetch failed")
	// ErrPersist wraps failures to store a result.
	ErrPersist = errors.New("persist failed")
)

// handlerTimeout bounds one event-driven extraction, fetch included.
const handlerTimeout = 2 * time.Minute

// ConversationWriter stores extraction results.
type ConversationWriter interface {
	WriteConversation(ctx context.Context, sourceURL string, res *extractor.Result) (uuid.UUID, error)
}

// Publisher sends events to the bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// Request is one extraction to run. Exactly one of URL and Source is set.
type Request struct {
	RequestID string `json:"request_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Source    string `json:"source,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Outcome is the result of a processed request.
type Outcome struct {
	RequestID      string            `json:"request_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	SourceURL      string            `json:"source_url,omitempty"`
	Result         *extractor.Result `json:"result"`
}

// Stats counts processed requests since start.
type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Processor orchestrates the extraction pipeline. Store and publisher are
// optional; a nil value skips that step.
type Processor struct {
	extractor *extractor.Extractor
	fetcher   fetch.Fetcher
	store     ConversationWriter
	publisher Publisher
	logger    *slog.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

func New(ext *extractor.Extractor, f fetch.Fetcher, s ConversationWriter, pub Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		extractor: ext,
		fetcher:   f,
		store:     s,
		publisher: pub,
		logger:    logger,
	}
}

// Process runs one request through the pipeline.
func (p *Processor) Process(ctx context.Context, req Request) (*Outcome, error) {
	out, err := p.process(ctx, req)
	if err != nil {
		p.failed.Add(1)
		return nil, err
	}
	p.processed.Add(1)
	return out, nil
}

func (p *Processor) process(ctx context.Context, req Request) (*Outcome, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	source, kind, sourceURL, err := p.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := p.extractor.Extract(source, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	p.logger.Info("conversation extracted",
		"request_id", req.RequestID,
		"source_url", sourceURL,
		"strategy", res.Conversation.Strategy,
		"messages", len(res.Conversation.Messages),
		"domain", res.Context.ProblemDomain,
		"flow", res.Context.ConversationFlow,
	)

	out := &Outcome{RequestID: req.RequestID, SourceURL: sourceURL, Result: res}

	if p.store != nil {
		id, err := p.store.WriteConversation(ctx, sourceURL, res)
		if err != nil {
			p.logger.Error("persistence failed", "request_id", req.RequestID, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrPersist, err)
		}
		out.ConversationID = id.String()
	}

	if p.publisher != nil {
		evt := hermes.ContextExtracted{
			RequestID:      out.RequestID,
			ConversationID: out.ConversationID,
			SourceURL:      sourceURL,
			Title:          res.Conversation.Title,
			Strategy:       string(res.Conversation.Strategy),
			MessageCount:   len(res.Conversation.Messages),
			Context:        res.Context,
			ExtractedAt:    time.Now().UTC(),
		}
		if err := p.publisher.Publish(hermes.SubjectContextExtracted, evt); err != nil {
			p.logger.Warn("failed to publish extracted context", "request_id", req.RequestID, "error", err)
		}
	}

	return out, nil
}

// resolve turns a request into source text and kind, fetching when needed.
func (p *Processor) resolve(ctx context.Context, req Request) (source string, kind extractor.SourceKind, sourceURL string, err error) {
	switch {
	case req.URL != "" && req.Source != "":
		return "", "", "", fmt.Errorf("%w: url and source are mutually exclusive", ErrBadRequest)
	case req.URL != "":
		sourceURL, err = fetch.ValidateShareURL(req.URL)
		if err != nil {
			return "", "", "", fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		if p.fetcher == nil {
			return "", "", "", fmt.Errorf("%w: no fetcher configured", ErrFetch)
		}
		html, err := p.fetcher.Fetch(ctx, sourceURL)
		if err != nil {
			p.logger.Error("failed to fetch share page", "url", sourceURL, "error", err)
			return "", "", "", fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return html, extractor.KindHTML, sourceURL, nil
	case req.Source != "":
		kind := extractor.KindText
		if req.Kind != "" {
			kind, err = extractor.ParseSourceKind(req.Kind)
			if err != nil {
				return "", "", "", fmt.Errorf("%w: %w", ErrBadRequest, err)
			}
		}
		return req.Source, kind, "", nil
	default:
		return "", "", "", fmt.Errorf("%w: url or source is required", ErrBadRequest)
	}
}

// Stats returns request counters.
func (p *Processor) Stats() Stats {
	return Stats{Processed: p.processed.Load(), Failed: p.failed.Load()}
}

// HandleShareSubmitted is the NATS handler for resonance.share.submitted.
func (p *Processor) HandleShareSubmitted(subject string, data []byte) {
	var evt hermes.ShareSubmitted
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse share event", "subject", subject, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	out, err := p.Process(ctx, Request{
		RequestID: evt.RequestID,
		URL:       evt.URL,
		Source:    evt.Source,
		Kind:      evt.Kind,
	})
	if err != nil {
		p.logger.Error("share processing failed", "request_id", evt.RequestID, "error", err)
		return
	}
	p.logger.Info("share processed", "request_id", out.RequestID, "conversation_id", out.ConversationID)
}
