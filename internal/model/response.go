package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type PullResponse struct {
	Entities   []SyncEntity `json:"entities"`
	Count      int          `json:"count"`
	NextCursor string       `json:"next_cursor"`
}

// PushItemError carries one failed batch item; its siblings are
// unaffected by the failure.
type PushItemError struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

type PushResponse struct {
	Applied int             `json:"applied"`
	Skipped int             `json:"skipped"`
	Errors  []PushItemError `json:"errors,omitempty"`
}

type TombstoneResponse struct {
	DeletedIDs []string `json:"deleted_ids"`
}

type RestoreResponse struct {
	NewRecordID string `json:"new_record_id"`
}
