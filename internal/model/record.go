package model

import "time"

// SyncState classifies where a record sits in its lifecycle. Live and
// tombstoned records still have a row in the records table; trashed
// records only exist as a snapshot in trash_entries.
type SyncState string

const (
	StateLive       SyncState = "live"
	StateTombstoned SyncState = "tombstoned"
	StateTrashed    SyncState = "trashed"
)

// Record is the engine's unit of synchronization: a fixed set of
// engine-owned fields plus an opaque bag of business fields. The engine
// never interprets Fields beyond extracting a collection's natural key.
type Record struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	ShopID     string         `json:"shop_id,omitempty"`
	Fields     map[string]any `json:"fields"`
	NaturalKey string         `json:"-"`
	ModifiedAt time.Time      `json:"modified_at"`
	ModifiedBy string         `json:"modified_by"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty"`
	Synced     bool           `json:"synced"`
	SyncedAt   *time.Time     `json:"synced_at,omitempty"`
}

// State derives the record's lifecycle state from its engine fields.
// Trashed records never reach this method: their row is gone.
func (r *Record) State() SyncState {
	if r.DeletedAt != nil {
		return StateTombstoned
	}
	return StateLive
}

func (r *Record) IsDeleted() bool {
	return r.DeletedAt != nil
}

// ActorScope identifies the caller of an engine operation and the data
// partition it may see. Admins see every shop; agents only their own.
type ActorScope struct {
	Actor  string
	Role   string
	ShopID string
}

const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

func (s ActorScope) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// CanSee reports whether a record is inside the caller's partition.
func (s ActorScope) CanSee(r *Record) bool {
	if s.IsAdmin() {
		return true
	}
	return r.ShopID != "" && r.ShopID == s.ShopID
}
