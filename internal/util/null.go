package util

import "database/sql"

// NullString converts a string to sql.NullString.
// Empty strings are treated as invalid (null).
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// BoolToInt64 converts a bool to int64 (true=1, false=0) for SQLite
// integer flag columns.
func BoolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
