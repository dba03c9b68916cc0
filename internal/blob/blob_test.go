package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grc/internal/blob/core"
	"grc/internal/platform/config"
)

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.BlobConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, core.DriverMemory, s.Driver())

	_, err = Open(context.Background(), config.BlobConfig{Driver: "gcs"})
	assert.Error(t, err)
}
