package filters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveAndRestore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.Load(ctx, "u-1", "contracts")
	require.NoError(t, err)
	assert.Empty(t, got)

	saved := Filters{"status": "active", "customer": "Harbour"}
	require.NoError(t, s.Save(ctx, "u-1", "contracts", saved))
	saved["status"] = "mutated"

	got, err = s.Load(ctx, "u-1", "contracts")
	require.NoError(t, err)
	assert.Equal(t, Filters{"status": "active", "customer": "Harbour"}, got)

	other, err := s.Load(ctx, "u-2", "contracts")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.Save(ctx, "u-1", "contracts", nil))
	got, err = s.Load(ctx, "u-1", "contracts")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScreenValidation(t *testing.T) {
	s := NewMemoryStore()
	assert.ErrorIs(t, s.Save(context.Background(), "u-1", "../etc", Filters{"a": "b"}), ErrInvalidScreen)
	_, err := s.Load(context.Background(), "u-1", "")
	assert.ErrorIs(t, err, ErrInvalidScreen)
	assert.NoError(t, ValidScreen("service-requests"))
}
