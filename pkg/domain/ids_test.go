package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "voxid/pkg/domain-errors"
)

func TestParseIdentityID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseIdentityID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseIdentityID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseIdentityID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round trips", func(t *testing.T) {
		raw := uuid.New()
		id, err := ParseIdentityID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, IdentityID(raw), id)
		assert.Equal(t, raw.String(), id.String())
		assert.False(t, id.IsNil())
	})
}

func TestIdentityIDStrings(t *testing.T) {
	a, b := NewIdentityID(), NewIdentityID()
	assert.Equal(t, []string{a.String(), b.String()}, IdentityIDStrings([]IdentityID{a, b}))
	assert.Empty(t, IdentityIDStrings(nil))
}

func TestIdentityIDJSON(t *testing.T) {
	idv := NewIdentityID()
	b, err := json.Marshal(struct {
		ID IdentityID `json:"id"`
	}{idv})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+idv.String()+`"}`, string(b))

	var back struct {
		ID IdentityID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, idv, back.ID)
}
