package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"shopsync/internal/model"
)

func TestLastWriteWins(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	resolver := LastWriteWins{}

	existing := &model.Record{ID: "r1", ModifiedAt: base}

	t.Run("no existing record means the incoming one wins", func(t *testing.T) {
		incoming := &model.Record{ID: "r1", ModifiedAt: base}
		assert.Same(t, incoming, resolver.Resolve(nil, incoming))
	})

	t.Run("strictly later incoming wins", func(t *testing.T) {
		incoming := &model.Record{ID: "r1", ModifiedAt: base.Add(time.Nanosecond)}
		assert.Same(t, incoming, resolver.Resolve(existing, incoming))
	})

	t.Run("earlier incoming loses", func(t *testing.T) {
		incoming := &model.Record{ID: "r1", ModifiedAt: base.Add(-time.Second)}
		assert.Same(t, existing, resolver.Resolve(existing, incoming))
	})

	t.Run("a tie keeps the existing record", func(t *testing.T) {
		incoming := &model.Record{ID: "r1", ModifiedAt: base}
		assert.Same(t, existing, resolver.Resolve(existing, incoming))
	})
}
