package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcwarden-project/mcwarden/internal/events"
)

// AuditStore persists dispatched commands and observed chat lines. It
// fills from the event bus, so no producer ever blocks on a disk write.
type AuditStore struct {
	db *Database
}

// CommandRecord is one audited command dispatch.
type CommandRecord struct {
	ID          int64     `json:"id"`
	Origin      string    `json:"origin"`
	Sender      string    `json:"sender"`
	Action      string    `json:"action"`
	CommandLine string    `json:"command_line"`
	Response    string    `json:"response"`
	Err         string    `json:"error,omitempty"`
	Rejected    bool      `json:"rejected"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatRecord is one audited chat line.
type ChatRecord struct {
	ID         int64     `json:"id"`
	PlayerName string    `json:"player_name"`
	Message    string    `json:"message"`
	Forwarded  bool      `json:"forwarded"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAuditStore opens the audit database and creates its schema.
func NewAuditStore(dbPath string) (*AuditStore, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	store := &AuditStore{db: database}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}
	return store, nil
}

func (s *AuditStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS command_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			origin TEXT NOT NULL,
			sender TEXT NOT NULL,
			action TEXT NOT NULL,
			command_line TEXT NOT NULL DEFAULT '',
			response TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			rejected INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS chat_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_name TEXT NOT NULL,
			message TEXT NOT NULL,
			forwarded INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_command_log_created ON command_log(created_at);
		CREATE INDEX IF NOT EXISTS idx_command_log_sender ON command_log(sender);
		CREATE INDEX IF NOT EXISTS idx_chat_log_created ON chat_log(created_at);
		CREATE INDEX IF NOT EXISTS idx_chat_log_player ON chat_log(player_name);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	log.Debug().Msg("audit database schema migrated")
	return nil
}

// Close closes the underlying database.
func (s *AuditStore) Close() error {
	return s.db.Close()
}

// Attach subscribes the store to the event bus so dispatches and chat
// lines are recorded as they happen.
func (s *AuditStore) Attach(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventCommandDispatched, "audit_store", s.handleCommand(false))
	eventBus.Subscribe(events.EventCommandRejected, "audit_store", s.handleCommand(true))
	eventBus.Subscribe(events.EventChatMessage, "audit_store", s.handleChat)
}

func (s *AuditStore) handleCommand(rejected bool) events.HandlerFunc {
	return func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.CommandDispatchedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for %s", event.Payload, event.Type)
		}
		return s.RecordCommand(CommandRecord{
			Origin:      payload.Origin,
			Sender:      payload.Sender,
			Action:      payload.Action,
			CommandLine: payload.CommandLine,
			Response:    payload.Response,
			Err:         payload.Err,
			Rejected:    rejected,
			CreatedAt:   payload.Timestamp,
		})
	}
}

func (s *AuditStore) handleChat(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ChatMessagePayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", event.Payload, event.Type)
	}
	return s.RecordChat(ChatRecord{
		PlayerName: payload.PlayerName,
		Message:    payload.Message,
		Forwarded:  payload.Forwarded,
		CreatedAt:  payload.Timestamp,
	})
}

// RecordCommand inserts one command dispatch record.
func (s *AuditStore) RecordCommand(rec CommandRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO command_log (origin, sender, action, command_line, response, error, rejected, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Origin, rec.Sender, rec.Action, rec.CommandLine, rec.Response, rec.Err,
		boolToInt(rec.Rejected), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// RecordChat inserts one chat record.
func (s *AuditStore) RecordChat(rec ChatRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO chat_log (player_name, message, forwarded, created_at) VALUES (?, ?, ?, ?)`,
		rec.PlayerName, rec.Message, boolToInt(rec.Forwarded), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record chat: %w", err)
	}
	return nil
}

// RecentCommands returns the newest command records, newest first.
func (s *AuditStore) RecentCommands(limit int) ([]CommandRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, origin, sender, action, command_line, response, error, rejected, created_at
		 FROM command_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query command log: %w", err)
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var rec CommandRecord
		var rejected int
		if err := rows.Scan(&rec.ID, &rec.Origin, &rec.Sender, &rec.Action,
			&rec.CommandLine, &rec.Response, &rec.Err, &rejected, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan command record: %w", err)
		}
		rec.Rejected = rejected != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentChat returns the newest chat records, newest first.
func (s *AuditStore) RecentChat(limit int) ([]ChatRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, player_name, message, forwarded, created_at
		 FROM chat_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat log: %w", err)
	}
	defer rows.Close()

	var out []ChatRecord
	for rows.Next() {
		var rec ChatRecord
		var forwarded int
		if err := rows.Scan(&rec.ID, &rec.PlayerName, &rec.Message, &forwarded, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat record: %w", err)
		}
		rec.Forwarded = forwarded != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Purge deletes records older than the retention window. Returns the
// number of rows removed.
func (s *AuditStore) Purge(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var total int64
	for _, table := range []string{"command_log", "chat_log"} {
		res, err := s.db.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", table), cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to purge %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if total > 0 {
		log.Info().Int64("rows", total).Int("retention_days", retentionDays).Msg("purged expired audit records")
	}
	return total, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
