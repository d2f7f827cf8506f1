package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"RagChat/internal/session"
)

// MemoryDSN keeps the sqlite database inside the process
const MemoryDSN = ":memory:"

const (
	scopeBare   = "bare"
	scopeScoped = "scoped"
)

// SQLiteBackend stores conversations in a sqlite database. With MemoryDSN the
// data lives only as long as the process.
type SQLiteBackend struct {
	db *sql.DB
}

var _ Backend = (*SQLiteBackend)(nil)

// NewSQLiteBackend opens the database at dsn and creates the schema
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every new connection to :memory: would get its own empty database
	db.SetMaxOpenConns(1)

	createConversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		renamed INTEGER NOT NULL DEFAULT 0,
		scope TEXT NOT NULL,
		tenant TEXT,
		entity TEXT,
		last_message TEXT,
		timestamp DATETIME,
		created_at DATETIME
	);`

	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		role TEXT,
		kind TEXT,
		content TEXT,
		timestamp DATETIME,
		FOREIGN KEY(conversation_id) REFERENCES conversations(id)
	);`

	createMessagesIndex := `
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);`

	for _, stmt := range []string{createConversationsTable, createMessagesTable, createMessagesIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Insert(conv *session.Conversation) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// re-inserting moves the conversation to the front
	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM conversations WHERE id = ?", conv.ID); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}

	kind, tenant, entity := scopeColumns(conv.Scope)
	_, err = tx.Exec(
		`INSERT INTO conversations (id, title, renamed, scope, tenant, entity, last_message, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.Renamed, kind, tenant, entity, conv.LastMessage, conv.Timestamp, conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	for _, msg := range conv.Messages {
		if err := insertMessage(tx, conv.ID, msg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Get(id string) (*session.Conversation, error) {
	row := b.db.QueryRow(
		`SELECT id, title, renamed, scope, tenant, entity, last_message, timestamp, created_at
		FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	rows, err := b.db.Query(
		"SELECT conversation_id, id, role, kind, content, timestamp FROM messages WHERE conversation_id = ? ORDER BY seq",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	byConv := map[string]*session.Conversation{conv.ID: conv}
	if err := scanMessages(rows, byConv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (b *SQLiteBackend) List() ([]*session.Conversation, error) {
	rows, err := b.db.Query(
		`SELECT id, title, renamed, scope, tenant, entity, last_message, timestamp, created_at
		FROM conversations ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	convs := []*session.Conversation{}
	byConv := map[string]*session.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
		byConv[conv.ID] = conv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	msgRows, err := b.db.Query("SELECT conversation_id, id, role, kind, content, timestamp FROM messages ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer msgRows.Close()
	if err := scanMessages(msgRows, byConv); err != nil {
		return nil, err
	}
	return convs, nil
}

func (b *SQLiteBackend) Delete(id string) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) UpdateHeader(conv *session.Conversation) error {
	res, err := b.db.Exec(
		"UPDATE conversations SET title = ?, renamed = ?, last_message = ?, timestamp = ? WHERE id = ?",
		conv.Title, conv.Renamed, conv.LastMessage, conv.Timestamp, conv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *SQLiteBackend) AppendMessage(id string, msg session.Message) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(1) FROM conversations WHERE id = ?", id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up conversation: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	if err := insertMessage(tx, id, msg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func insertMessage(tx *sql.Tx, convID string, msg session.Message) error {
	_, err := tx.Exec(
		"INSERT INTO messages (id, conversation_id, role, kind, content, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		msg.ID, convID, string(msg.Role), string(msg.Kind), msg.Content, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func scopeColumns(scope session.Scope) (kind string, tenant, entity sql.NullString) {
	if s, ok := scope.(session.Scoped); ok {
		return scopeScoped,
			sql.NullString{String: s.Tenant, Valid: true},
			sql.NullString{String: s.Entity, Valid: true}
	}
	return scopeBare, sql.NullString{}, sql.NullString{}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*session.Conversation, error) {
	var (
		conv                   session.Conversation
		kind                   string
		tenant, entity, last   sql.NullString
		timestamp, createdTime time.Time
	)
	if err := row.Scan(&conv.ID, &conv.Title, &conv.Renamed, &kind, &tenant, &entity, &last, &timestamp, &createdTime); err != nil {
		return nil, err
	}
	if kind == scopeScoped {
		conv.Scope = session.Scoped{Tenant: tenant.String, Entity: entity.String}
	} else {
		conv.Scope = session.Bare{}
	}
	conv.LastMessage = last.String
	conv.Timestamp = timestamp
	conv.CreatedAt = createdTime
	conv.Messages = []session.Message{}
	return &conv, nil
}

func scanMessages(rows *sql.Rows, byConv map[string]*session.Conversation) error {
	for rows.Next() {
		var (
			convID, role, kind string
			msg                session.Message
		)
		if err := rows.Scan(&convID, &msg.ID, &role, &kind, &msg.Content, &msg.Timestamp); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = session.Role(role)
		msg.Kind = session.Kind(kind)
		if conv, ok := byConv[convID]; ok {
			conv.Messages = append(conv.Messages, msg)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	return nil
}
