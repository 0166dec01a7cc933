package app

import (
	"context"
	"testing"

	"github.com/spacesedan/reelscore/config"
	"github.com/spacesedan/reelscore/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFileStore(t *testing.T) {
	cfg := config.Config{
		ScoringBackend: config.BackendHugot,
		ModelDir:       t.TempDir(),
		StoreBackend:   config.StoreFile,
		DataDir:        t.TempDir(),
	}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &db.FileStore{}, a.Store)
	assert.Nil(t, a.CacheHealthy)
	assert.False(t, a.Engine.Loaded())

	score, err := a.Engine.Score(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, 0.5, score)
	assert.False(t, a.Engine.Loaded())
}

func TestNewStoreRejectsUnknownBackend(t *testing.T) {
	_, err := NewStore(context.Background(), config.Config{StoreBackend: "postgres"})
	assert.Error(t, err)
}
