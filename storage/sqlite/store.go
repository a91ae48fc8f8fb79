// Package sqlite provides a SQLite implementation of eventlog.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	stdSync "sync"
	"time"

	"github.com/c0deZ3R0/go-playlist-kit/cursor"
	playlistErrors "github.com/c0deZ3R0/go-playlist-kit/errors"
	"github.com/c0deZ3R0/go-playlist-kit/eventlog"
	"github.com/c0deZ3R0/go-playlist-kit/logging"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const component = "storage/sqlite"

// ErrStoreClosed is returned by every operation after Close.
var ErrStoreClosed = errors.New("store is closed")

// Config holds configuration options for the Store.
//
// DefaultConfig enables WAL mode and a small connection pool. An in-memory
// database (":memory:") is pinned to a single connection, since every SQLite
// connection would otherwise open its own empty database.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:events.db?_journal_mode=WAL"
	DataSourceName string

	// EnableWAL appends _journal_mode=WAL to DataSourceName.
	EnableWAL bool

	// Logger receives internal logs. Defaults to logging.Discard().
	Logger *logging.Logger

	// TableName is the name of the events table. Defaults to "playlist_events".
	TableName string

	// Connection pool settings.
	// Defaults: MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// setDefaults applies default values to the config
func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "playlist_events"
	}
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.DataSourceName == ":memory:" {
		c.MaxOpenConns = 1
		c.MaxIdleConns = 1
		c.ConnMaxLifetime = 0
		c.ConnMaxIdleTime = 0
		c.EnableWAL = false
	}
	if c.EnableWAL && !strings.Contains(c.DataSourceName, "_journal_mode=") {
		sep := "?"
		if strings.Contains(c.DataSourceName, "?") {
			sep = "&"
		}
		c.DataSourceName += sep + "_journal_mode=WAL"
	}
}

// DefaultConfig returns a Config with WAL enabled.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// NewWithDataSource is a convenience constructor
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

// Store implements eventlog.Store on SQLite. Rows carry an AUTOINCREMENT
// sequence that never reuses values, so a rewritten log is always sequenced
// after everything previously stored.
type Store struct {
	db     *sql.DB
	mu     stdSync.RWMutex
	closed bool
	logger *logging.Logger
	table  string
}

var _ eventlog.Store = (*Store)(nil)

// New opens the database and creates the schema if needed.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()
	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	logger := config.Logger.WithComponent(logging.Component(component))
	logger.Info("Opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &Store{db: db, logger: logger, table: config.TableName}
	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	logger.Debug("SQLite store initialized", slog.String("table_name", config.TableName))
	return store, nil
}

func (s *Store) setupSchema() error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %[1]s (
        seq             INTEGER PRIMARY KEY AUTOINCREMENT,
        op_id           TEXT NOT NULL,
        playlist_id     TEXT NOT NULL,
        user_id         TEXT NOT NULL,
        ts              INTEGER NOT NULL,
        operation       TEXT NOT NULL,
        item_id         TEXT NOT NULL,
        position        INTEGER,
        metadata        TEXT,
        created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (playlist_id, op_id)
    );
    CREATE INDEX IF NOT EXISTS idx_%[1]s_playlist ON %[1]s (playlist_id, seq);
    CREATE INDEX IF NOT EXISTS idx_%[1]s_user ON %[1]s (user_id);
    `, s.table)
	_, err := s.db.Exec(query)
	return err
}

func (s *Store) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Append inserts ev at the end of its playlist.
func (s *Store) Append(ctx context.Context, ev eventlog.EditEvent) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if err := ev.Validate(); err != nil {
		return playlistErrors.NewValidationError(playlistErrors.OpStore, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return playlistErrors.WrapOpComponent(err, playlistErrors.OpStore, component)
	}
	defer tx.Rollback()

	if err := s.insert(ctx, tx, ev); err != nil {
		return playlistErrors.WrapOpComponent(err, playlistErrors.OpStore, component)
	}
	return playlistErrors.WrapOpComponent(tx.Commit(), playlistErrors.OpStore, component)
}

// Replace deletes the playlist's rows and inserts events in one transaction.
func (s *Store) Replace(ctx context.Context, playlistID string, events []eventlog.EditEvent) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return playlistErrors.NewValidationError(playlistErrors.OpStore, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return playlistErrors.WrapOpComponent(err, playlistErrors.OpStore, component)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE playlist_id = ?`, s.table), playlistID); err != nil {
		return playlistErrors.WrapOpComponent(err, playlistErrors.OpStore, component)
	}
	for _, ev := range events {
		ev.PlaylistID = playlistID
		if err := s.insert(ctx, tx, ev); err != nil {
			return playlistErrors.WrapOpComponent(err, playlistErrors.OpStore, component)
		}
	}
	if err := tx.Commit(); err != nil {
		return playlistErrors.WrapOpComponent(err, playlistErrors.OpStore, component)
	}
	s.logger.Debug("replaced playlist log",
		slog.String("playlist_id", playlistID),
		slog.Int("events", len(events)),
	)
	return nil
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, ev eventlog.EditEvent) error {
	var metadata sql.NullString
	if len(ev.Metadata) > 0 {
		data, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal event metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}
	var position sql.NullInt64
	if ev.Position != nil {
		position = sql.NullInt64{Int64: int64(*ev.Position), Valid: true}
	}

	query := fmt.Sprintf(`INSERT INTO %s (op_id, playlist_id, user_id, ts, operation, item_id, position, metadata)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := tx.ExecContext(ctx, query,
		ev.OpID, ev.PlaylistID, ev.UserID, ev.Timestamp, string(ev.Operation), ev.ItemID, position, metadata)
	return err
}

// Load returns the playlist's events stored after since.
func (s *Store) Load(ctx context.Context, playlistID string, since cursor.IntegerCursor) ([]eventlog.EditEvent, cursor.IntegerCursor, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, since, err
	}

	query := fmt.Sprintf(`SELECT seq, op_id, playlist_id, user_id, ts, operation, item_id, position, metadata
        FROM %s WHERE playlist_id = ? AND seq > ? ORDER BY seq ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, query, playlistID, int64(since.Seq))
	if err != nil {
		return nil, since, playlistErrors.WrapOpComponent(err, playlistErrors.OpLoad, component)
	}
	defer rows.Close()

	events, last, err := scanEvents(rows)
	if err != nil {
		return nil, since, playlistErrors.WrapOpComponent(err, playlistErrors.OpLoad, component)
	}
	if last.Seq < since.Seq {
		last = since
	}
	return events, last, nil
}

// DeleteUser removes every event authored by userID.
func (s *Store) DeleteUser(ctx context.Context, userID string) (int, error) {
	return s.delete(ctx, "user_id", userID)
}

// DeletePlaylist removes every event of the playlist.
func (s *Store) DeletePlaylist(ctx context.Context, playlistID string) (int, error) {
	return s.delete(ctx, "playlist_id", playlistID)
}

func (s *Store) delete(ctx context.Context, column, value string) (int, error) {
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, s.table, column), value)
	if err != nil {
		return 0, playlistErrors.WrapOpComponent(err, playlistErrors.OpStore, component)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, playlistErrors.WrapOpComponent(err, playlistErrors.OpStore, component)
	}
	return int(n), nil
}

// Stats returns database statistics for monitoring
func (s *Store) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sql.DBStats{}
	}
	return s.db.Stats()
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// scanEvents is a helper to scan rows into events and the cursor of the last row.
func scanEvents(rows *sql.Rows) ([]eventlog.EditEvent, cursor.IntegerCursor, error) {
	var (
		events []eventlog.EditEvent
		last   cursor.IntegerCursor
	)
	for rows.Next() {
		var (
			seq       int64
			ev        eventlog.EditEvent
			operation string
			position  sql.NullInt64
			metadata  sql.NullString
		)
		if err := rows.Scan(&seq, &ev.OpID, &ev.PlaylistID, &ev.UserID, &ev.Timestamp,
			&operation, &ev.ItemID, &position, &metadata); err != nil {
			return nil, last, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.Operation = eventlog.Operation(operation)
		if position.Valid {
			ev.Position = eventlog.At(int(position.Int64))
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &ev.Metadata); err != nil {
				return nil, last, fmt.Errorf("failed to unmarshal metadata of %s: %w", ev.OpID, err)
			}
		}
		events = append(events, ev)
		last = cursor.IntegerCursor{Seq: uint64(seq)}
	}
	if err := rows.Err(); err != nil {
		return nil, last, fmt.Errorf("error during row iteration: %w", err)
	}
	return events, last, nil
}
