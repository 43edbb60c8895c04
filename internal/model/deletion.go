package model

import "time"

// DeletionStatus is the state of a deletion request in the two-party
// approval flow. Requested and admin-validated are non-terminal; the
// agent decision states are terminal and immutable.
type DeletionStatus string

const (
	DeletionRequested      DeletionStatus = "requested"
	DeletionAdminValidated DeletionStatus = "admin_validated"
	DeletionAgentApproved  DeletionStatus = "agent_approved"
	DeletionAgentRejected  DeletionStatus = "agent_rejected"
)

func (s DeletionStatus) Terminal() bool {
	return s == DeletionAgentApproved || s == DeletionAgentRejected
}

// DeletionRequest gates the removal of a record from a protected
// collection: an admin requests, an admin validates, the owning field
// agent decides. Only agent approval moves the record to the trash.
// Requests are keyed by a caller-supplied reference so that a retried
// creation never spawns a second state machine for the same operation.
type DeletionRequest struct {
	ID               string         `json:"id"`
	Reference        string         `json:"reference"`
	Collection       string         `json:"collection"`
	RecordID         string         `json:"record_id"`
	ShopID           string         `json:"shop_id,omitempty"`
	Reason           string         `json:"reason"`
	Status           DeletionStatus `json:"status"`
	RequestedBy      string         `json:"requested_by"`
	RequestedAt      time.Time      `json:"requested_at"`
	AdminValidatedBy string         `json:"admin_validated_by,omitempty"`
	AdminValidatedAt *time.Time     `json:"admin_validated_at,omitempty"`
	AgentDecisionBy  string         `json:"agent_decision_by,omitempty"`
	AgentDecisionAt  *time.Time     `json:"agent_decision_at,omitempty"`
	TrashEntryID     string         `json:"trash_entry_id,omitempty"`
}
