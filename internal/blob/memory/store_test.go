package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grc/internal/blob/core"
	"grc/pkg/platform/sentinel"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	info, err := s.Put(ctx, "exports/a.csv", strings.NewReader("Object type\n"), core.PutOptions{ContentType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size)
	assert.NotEmpty(t, info.ETag)

	_, err = s.Put(ctx, "exports/a.csv", strings.NewReader("again"), core.PutOptions{})
	assert.True(t, errors.Is(err, sentinel.ErrConflict))

	_, err = s.Put(ctx, "other/b.csv", strings.NewReader("b"), core.PutOptions{})
	require.NoError(t, err)

	got, rc, err := s.Get(ctx, "exports/a.csv")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, "Object type\n", string(body))
	assert.Equal(t, "text/csv", got.ContentType)

	list, err := s.List(ctx, "exports/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "exports/a.csv", list[0].Key)

	_, err = s.PresignURL(ctx, "exports/a.csv", core.SignedURLOptions{})
	assert.ErrorIs(t, err, core.ErrUnsupported)

	deleted, err := s.Delete(ctx, "exports/a.csv")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = s.Head(ctx, "exports/a.csv")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	deleted, err = s.Delete(ctx, "exports/a.csv")
	require.NoError(t, err)
	assert.False(t, deleted)
}
