package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/resonance/internal/analyzer"
	"github.com/MikeSquared-Agency/resonance/internal/extractor"
)

// ConversationRecord is a stored extraction.
type ConversationRecord struct {
	ID         uuid.UUID            `json:"id"`
	SourceURL  string               `json:"source_url,omitempty"`
	Kind       extractor.SourceKind `json:"kind"`
	Title      string               `json:"title"`
	Strategy   extractor.Strategy   `json:"strategy"`
	Pattern    extractor.Pattern    `json:"pattern,omitempty"`
	CreateTime *float64             `json:"create_time,omitempty"`
	UpdateTime *float64             `json:"update_time,omitempty"`
	Messages   []extractor.Message  `json:"messages"`
	Context    analyzer.Context     `json:"context"`
	CreatedAt  time.Time            `json:"created_at"`
}

// WriteConversation stores an extraction result across the conversations,
// conversation_messages and conversation_topics tables.
func (s *Store) WriteConversation(ctx context.Context, sourceURL string, res *extractor.Result) (uuid.UUID, error) {
	contextJSON, err := json.Marshal(res.Context)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal context: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	conv := res.Conversation
	id := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, source_url, kind, title, strategy, pattern, create_time, update_time, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, sourceURL, string(res.Kind), conv.Title, string(conv.Strategy), string(conv.Pattern),
		conv.CreateTime, conv.UpdateTime, contextJSON,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert conversation: %w", err)
	}

	for i, m := range conv.Messages {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_messages (id, conversation_id, position, role, content, ts)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), id, i, string(m.Role), m.Content, m.Timestamp,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert message: %w", err)
		}
	}

	for _, topic := range res.Context.TopicsOfInterest {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_topics (id, conversation_id, topic)
			VALUES ($1, $2, $3)`,
			uuid.New(), id, topic,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert topic: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetConversation loads a stored extraction with its messages in order.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*ConversationRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, source_url, kind, title, strategy, pattern, create_time, update_time, context, created_at
		FROM conversations WHERE id = $1`, id)

	var (
		rec         ConversationRecord
		contextJSON []byte
	)
	err := row.Scan(&rec.ID, &rec.SourceURL, &rec.Kind, &rec.Title, &rec.Strategy, &rec.Pattern,
		&rec.CreateTime, &rec.UpdateTime, &contextJSON, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if err := json.Unmarshal(contextJSON, &rec.Context); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT role, content, ts
		FROM conversation_messages WHERE conversation_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	rec.Messages = []extractor.Message{}
	for rows.Next() {
		var m extractor.Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		rec.Messages = append(rec.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return &rec, nil
}

// ConversationsByTopic lists the ids of stored conversations tagged with
// topic, newest first.
func (s *Store) ConversationsByTopic(ctx context.Context, topic string, limit int) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id
		FROM conversations c
		JOIN conversation_topics t ON t.conversation_id = c.id
		WHERE t.topic = $1
		ORDER BY c.created_at DESC
		LIMIT $2`, topic, limit)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
