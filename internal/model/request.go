package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	ShopID   string `json:"shop_id"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SyncEntity is the wire shape of one record in a push batch or a pull
// page. On push, ModifiedAt carries the client's last-write timestamp
// and is only used for conflict resolution; the stored modified_at is
// always server-assigned. On pull, Deleted marks tombstones.
type SyncEntity struct {
	ID         string         `json:"id,omitempty"`
	ShopID     string         `json:"shop_id,omitempty"`
	Fields     map[string]any `json:"fields"`
	ModifiedAt string         `json:"modified_at,omitempty"`
	SyncedAt   string         `json:"synced_at,omitempty"`
	Deleted    bool           `json:"_deleted,omitempty"`
}

type PushRequest struct {
	Entities []SyncEntity `json:"entities"`
}

type TombstoneRequest struct {
	IDs []string `json:"ids"`
}

type CreateDeletionRequest struct {
	Reference  string `json:"reference"`
	Collection string `json:"collection"`
	RecordID   string `json:"record_id"`
	Reason     string `json:"reason"`
}

type DecideDeletionRequest struct {
	Approve bool `json:"approve"`
}
