package model

import "time"

// TrashEntry is a verbatim snapshot of a record at the moment it was
// removed from its live collection, plus deletion provenance. Entries
// are created once, mutated once by Restore, and never deleted except
// through an explicit admin purge.
type TrashEntry struct {
	ID               string         `json:"id"`
	Collection       string         `json:"collection"`
	RecordID         string         `json:"record_id"`
	ShopID           string         `json:"shop_id,omitempty"`
	Snapshot         map[string]any `json:"snapshot"`
	DeletedAt        time.Time      `json:"deleted_at"`
	DeletedBy        string         `json:"deleted_by"`
	DeletionReason   string         `json:"deletion_reason,omitempty"`
	Restored         bool           `json:"restored"`
	RestoredAt       *time.Time     `json:"restored_at,omitempty"`
	RestoredBy       string         `json:"restored_by,omitempty"`
	RestoredRecordID string         `json:"restored_record_id,omitempty"`
}
