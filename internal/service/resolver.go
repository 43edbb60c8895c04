package service

import "shopsync/internal/model"

// ConflictResolver decides which of two versions of a record survives.
type ConflictResolver interface {
	Resolve(existing *model.Record, incoming *model.Record) *model.Record
}

// LastWriteWins keeps the record with the strictly later modified_at,
// in full: the loser's business fields are discarded, never merged.
// Two clients editing different fields of the same record concurrently
// will have one edit silently lost; that is the accepted trade-off.
//
// A tie goes to the existing record so that re-delivery of an already
// applied write is a no-op instead of a flip-flop.
type LastWriteWins struct{}

func (LastWriteWins) Resolve(existing *model.Record, incoming *model.Record) *model.Record {
	if existing == nil {
		return incoming
	}
	if incoming.ModifiedAt.After(existing.ModifiedAt) {
		return incoming
	}
	return existing
}
