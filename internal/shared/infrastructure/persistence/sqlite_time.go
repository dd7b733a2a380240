package persistence

import (
	"database/sql"
	"time"
)

// SQLiteTimeLayout is the fixed-width UTC layout used for SQLite timestamps.
// Fixed width keeps lexical order equal to chronological order.
const SQLiteTimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatSQLiteTime formats t for storage in a SQLite TEXT column.
func FormatSQLiteTime(t time.Time) string {
	return t.UTC().Format(SQLiteTimeLayout)
}

// ParseSQLiteTime parses a SQLite timestamp written by FormatSQLiteTime.
// RFC3339 values are accepted as well.
func ParseSQLiteTime(s string) (time.Time, error) {
	if t, err := time.Parse(SQLiteTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// NullSQLiteTime formats an optional timestamp.
func NullSQLiteTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatSQLiteTime(*t), Valid: true}
}

// ParseNullSQLiteTime parses an optional timestamp.
func ParseNullSQLiteTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := ParseSQLiteTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
