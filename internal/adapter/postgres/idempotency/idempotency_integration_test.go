//go:build integration

package idempotency_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgidem "github.com/alanyang/lead-pipeline/internal/adapter/postgres/idempotency"
	"github.com/alanyang/lead-pipeline/internal/testutil"
)

func TestIdempotency_CheckAndSave(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := pgidem.New(pool)
	tenantID := uuid.New()
	key := uuid.New().String()

	_, found, err := repo.Check(ctx, tenantID, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Save(ctx, tenantID, key, "move_lead", []byte(`{"status":200}`)))
	require.NoError(t, repo.Save(ctx, tenantID, key, "move_lead", []byte(`{"status":500}`)))

	result, found, err := repo.Check(ctx, tenantID, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"status":200}`, string(result), "first save wins")

	_, found, err = repo.Check(ctx, uuid.New(), key)
	require.NoError(t, err)
	assert.False(t, found, "keys are tenant scoped")
}
