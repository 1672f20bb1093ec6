package repository

import "time"

// KVEntry represents a kv_entries row.
type KVEntry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
