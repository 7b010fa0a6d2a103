package challenge

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronostamp/internal/auth/models"
	"chronostamp/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemory()
	store.now = func() time.Time { return now }
	addr := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	t.Run("take is single use", func(t *testing.T) {
		c := models.NewChallenge(addr, now, time.Minute)
		require.NoError(t, store.Save(ctx, c))

		got, err := store.Take(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.Message, got.Message)

		_, err = store.Take(ctx, c.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired challenge is gone", func(t *testing.T) {
		c := models.NewChallenge(addr, now.Add(-2*time.Minute), time.Minute)
		require.NoError(t, store.Save(ctx, c))
		_, err := store.Take(ctx, c.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Take(ctx, uuid.New())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
