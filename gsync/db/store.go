package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

// DriverName is the database/sql driver registered by go-libsql.
const DriverName = "libsql"

// ConnectToDB opens and pings the libsql database at dsn, e.g.
// "file:/path/to/gacha.db".
func ConnectToDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// LibSQLStore is a RecordStore on top of libsql.
type LibSQLStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewLibSQLStore connects to dsn and creates the schema if needed.
func NewLibSQLStore(ctx context.Context, logger zerolog.Logger, dsn string) (*LibSQLStore, error) {
	db, err := ConnectToDB(dsn)
	if err != nil {
		return nil, err
	}
	store := &LibSQLStore{db: db, logger: logger}
	if err := store.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// InitSchema creates the records table and its account index.
func (s *LibSQLStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS gacha_records (
		facet TEXT NOT NULL,
		uid TEXT NOT NULL,
		id TEXT NOT NULL,
		gacha_type TEXT NOT NULL,
		time TEXT NOT NULL,
		item_id TEXT,
		name TEXT,
		cursor TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (facet, uid, gacha_type, id)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create gacha_records table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_gacha_records_account
		ON gacha_records (facet, uid, gacha_type, cursor)`)
	if err != nil {
		return fmt.Errorf("failed to create gacha_records index: %w", err)
	}
	return nil
}

func (s *LibSQLStore) SaveRecords(ctx context.Context, records []types.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be a no-op if transaction is committed

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO gacha_records
		(facet, uid, id, gacha_type, time, item_id, name, cursor, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, record := range records {
		meta := record.Meta()
		payload, err := json.Marshal(record)
		if err != nil {
			return 0, fmt.Errorf("failed to encode record %s: %w", meta.ID, err)
		}
		itemID, name := itemOf(record)

		result, err := stmt.ExecContext(ctx,
			string(meta.Facet), meta.UID, meta.ID, meta.GachaType, meta.Time,
			itemID, name, CursorOf(record), payload)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record %s: %w", meta.ID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += rowsAffected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Int("records", len(records)).Int64("inserted", inserted).Msg("saved gacha records")
	return inserted, nil
}

func (s *LibSQLStore) FindRecords(ctx context.Context, facet types.Facet, uid string, filter Filter) ([]types.Record, error) {
	query := strings.Builder{}
	query.WriteString("SELECT payload FROM gacha_records WHERE facet = ? AND uid = ?")
	args := []any{string(facet), uid}

	if len(filter.GachaTypes) > 0 {
		query.WriteString(" AND gacha_type IN (?" + strings.Repeat(", ?", len(filter.GachaTypes)-1) + ")")
		for _, gachaType := range filter.GachaTypes {
			args = append(args, gachaType)
		}
	}
	if filter.Since != "" {
		query.WriteString(" AND time >= ?")
		args = append(args, filter.Since)
	}
	query.WriteString(" ORDER BY time DESC, id DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gacha records: %w", err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan gacha record: %w", err)
		}
		record, err := types.NewRecord(facet)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, record); err != nil {
			return nil, fmt.Errorf("failed to decode gacha record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gacha records: %w", err)
	}
	return records, nil
}

func (s *LibSQLStore) LastCursors(ctx context.Context, facet types.Facet, uid string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT gacha_type, MAX(cursor) FROM gacha_records WHERE facet = ? AND uid = ? GROUP BY gacha_type",
		string(facet), uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query last cursors: %w", err)
	}
	defer rows.Close()

	cursors := make(map[string]string)
	for rows.Next() {
		var gachaType string
		var raw any
		if err := rows.Scan(&gachaType, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan last cursor: %w", err)
		}
		mergeCursor(cursors, facet, gachaType, cursorText(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate last cursors: %w", err)
	}
	return cursors, nil
}

// cursorText undoes the driver's coercion of time-like TEXT values so the
// cursor reads back exactly as CursorOf wrote it.
func cursorText(raw any) string {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC().Format(types.RecordTimeLayout)
	case []byte:
		return cursorText(string(v))
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC().Format(types.RecordTimeLayout)
		}
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (s *LibSQLStore) Close() error {
	return s.db.Close()
}
