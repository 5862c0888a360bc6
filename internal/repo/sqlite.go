package repo

import (
	"database/sql"
	"fmt"
	"time"

	"pymata-gateway/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(dbPath string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The journal is written from connection goroutines; one writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteRepo{db: db}
	if err := repo.init(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepo) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		peer TEXT NOT NULL,
		opened_at INTEGER NOT NULL,
		closed_at INTEGER,
		close_reason TEXT NOT NULL DEFAULT '',
		commands INTEGER NOT NULL DEFAULT 0,
		replies INTEGER NOT NULL DEFAULT 0,
		notifications INTEGER NOT NULL DEFAULT 0,
		dropped INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_opened_at ON sessions (opened_at);
	`
	_, err := r.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) OpenSession(id, peer string, openedAt time.Time) error {
	query := `INSERT INTO sessions (id, peer, opened_at) VALUES (?, ?, ?)`
	_, err := r.db.Exec(query, id, peer, openedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) CloseSession(id string, closedAt time.Time, reason string, stats model.SessionStats) error {
	query := `
	UPDATE sessions
	SET closed_at = ?, close_reason = ?, commands = ?, replies = ?, notifications = ?, dropped = ?
	WHERE id = ?`
	res, err := r.db.Exec(query, closedAt.UnixNano(), reason,
		stats.Commands, stats.Replies, stats.Notifications, stats.Dropped, id)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to close session: %s not found", id)
	}
	return nil
}

func (r *SQLiteRepo) ListSessions(limit int) ([]model.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, peer, opened_at, closed_at, close_reason, commands, replies, notifications, dropped
	FROM sessions
	ORDER BY opened_at DESC
	LIMIT ?`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.SessionRecord
	for rows.Next() {
		var (
			s        model.SessionRecord
			openedAt int64
			closedAt sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Peer, &openedAt, &closedAt, &s.CloseReason,
			&s.Commands, &s.Replies, &s.Notifications, &s.Dropped); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.OpenedAt = time.Unix(0, openedAt)
		if closedAt.Valid {
			t := time.Unix(0, closedAt.Int64)
			s.ClosedAt = &t
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}
