package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "grc/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Append(ctx, audit.Event{Action: string(audit.EventObjectCreated), ObjectID: 1}))
	require.NoError(t, s.Append(ctx, audit.Event{Action: string(audit.EventObjectsExported)}))
	require.NoError(t, s.Append(ctx, audit.Event{Action: string(audit.EventObjectCreated), ObjectID: 2}))

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(2), recent[0].ObjectID)
	assert.NotEmpty(t, recent[0].ID)
	assert.Equal(t, audit.CategoryOperations, recent[1].Category)

	created := s.ListByAction(ctx, audit.EventObjectCreated)
	require.Len(t, created, 2)
	assert.Equal(t, int64(1), created[0].ObjectID)

	s.Clear()
	all, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}
