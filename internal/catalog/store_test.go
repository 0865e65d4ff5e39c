package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestValidIDsDropsMalformed(t *testing.T) {
	known := uuid.NewString()
	got := validIDs([]string{known, "not-a-uuid", "", "12345"})
	require.Equal(t, []string{known}, got)
}

func TestValidIDsEmptyWhenNothingParses(t *testing.T) {
	require.Empty(t, validIDs([]string{"abc", "p1"}))
}

func TestGetMalformedIDResolvesToNotFound(t *testing.T) {
	store := &Store{}
	_, err := store.Get(context.Background(), "p1")
	require.ErrorIs(t, err, ErrNotFound)
}
