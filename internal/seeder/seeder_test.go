package seeder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxid/internal/identity/store"
	"voxid/pkg/platform/sentinel"
	"voxid/pkg/testutil"
)

func TestParseEntry(t *testing.T) {
	email, first, last, err := ParseEntry(" alice@example.com:Alice van Dyke ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
	assert.Equal(t, "Alice", first)
	assert.Equal(t, "van Dyke", last)

	email, first, last, err = ParseEntry("bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", email)
	assert.Empty(t, first)
	assert.Empty(t, last)

	_, _, _, err = ParseEntry("not-an-email:Nobody")
	assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
}

func TestSeedIdentitiesIsRepeatable(t *testing.T) {
	ctx := context.Background()
	identities := store.New()
	seeder := New(identities, testutil.DiscardLogger())

	first, err := seeder.SeedIdentities(ctx, []string{"alice@example.com:Alice A", "bob@example.com:Bob B"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := seeder.SeedIdentities(ctx, []string{"ALICE@example.com:Alice A"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)

	got, err := identities.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bob B", got.DisplayName())
}

func TestSeedIDIsStablePerEmail(t *testing.T) {
	ctx := context.Background()
	seeded, err := New(store.New(), testutil.DiscardLogger()).SeedIdentities(ctx, []string{"carol@example.com:Carol C"})
	require.NoError(t, err)
	require.Len(t, seeded, 1)

	assert.Equal(t, SeedID("carol@example.com"), seeded[0].ID)
	assert.Equal(t, SeedID("carol@example.com"), SeedID("Carol@Example.com"))
	assert.NotEqual(t, SeedID("carol@example.com"), SeedID("dave@example.com"))
}
