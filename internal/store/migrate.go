package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id          UUID PRIMARY KEY,
		source_url  TEXT NOT NULL DEFAULT '',
		kind        TEXT NOT NULL,
		title       TEXT NOT NULL,
		strategy    TEXT NOT NULL,
		pattern     TEXT NOT NULL DEFAULT '',
		create_time DOUBLE PRECISION,
		update_time DOUBLE PRECISION,
		context     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_messages (
		id              UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		position        INT NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		ts              DOUBLE PRECISION,
		UNIQUE (conversation_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_topics (
		id              UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		topic           TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS conversation_topics_topic_idx ON conversation_topics (topic)`,
	`CREATE INDEX IF NOT EXISTS conversations_source_url_idx ON conversations (source_url)`,
}

// Migrate creates the tables resonance writes to if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
