package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wayfare-ai/wayfare/pkg/models"
)

// CreateSession starts a new chat session.
func (s *Store) CreateSession(ctx context.Context, ipHash string) (models.Session, error) {
	sess := models.Session{
		ID:        uuid.NewString(),
		IPHash:    ipHash,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO sessions (id, ip_hash, created_at) VALUES (:id, :ip_hash, :created_at)`, sess)
	if err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// GetSession returns the session with id or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (models.Session, error) {
	var sess models.Session
	err := s.db.GetContext(ctx, &sess, `SELECT id, ip_hash, created_at FROM sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// AddMessage stores a message, assigning its ID and timestamp.
func (s *Store) AddMessage(ctx context.Context, m models.Message) (models.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, tokens_in, tokens_out, cost_usd, created_at)
		 VALUES (:id, :session_id, :role, :content, :tokens_in, :tokens_out, :cost_usd, :created_at)`, m)
	if err != nil {
		return models.Message{}, fmt.Errorf("add message: %w", err)
	}
	return m, nil
}

const messageColumns = `id, session_id, role, content, tokens_in, tokens_out, cost_usd, created_at`

// RecentMessages returns up to limit messages of a session, newest first.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return msgs, nil
}

// Messages returns every message of a session in chronological order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// CountMessages returns the number of messages stored for a session.
func (s *Store) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
