package event

type Type string

const (
	TypeRecordApplied     Type = "record.applied"
	TypeRecordSkipped     Type = "record.skipped"
	TypeRecordTombstoned  Type = "record.tombstoned"
	TypeTrashCreated      Type = "trash.created"
	TypeTrashRestored     Type = "trash.restored"
	TypeTrashPurged       Type = "trash.purged"
	TypeDeletionRequested Type = "deletion.requested"
	TypeDeletionValidated Type = "deletion.validated"
	TypeDeletionApproved  Type = "deletion.approved"
	TypeDeletionRejected  Type = "deletion.rejected"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
