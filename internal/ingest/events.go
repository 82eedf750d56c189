package ingest

import "time"

// DocumentStoredEvent is emitted when a submitted document passes validation
// and is persisted.
type DocumentStoredEvent struct {
	OriginalName string    `json:"original_name"`
	StorageName  string    `json:"stored_name"`
	SizeBytes    int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type"`
	StoredAt     time.Time `json:"stored_at"`
}
