package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsSeedAndDecode(t *testing.T) {
	svc := NewSettingsService(storetest.New())
	ctx := context.Background()

	_, err := svc.Set(ctx, "max_level", "100", "int")
	require.NoError(t, err)
	require.NoError(t, svc.Seed(ctx, config.DefaultGame()))

	_, err = svc.Set(ctx, "maintenance", "true", "bool")
	require.NoError(t, err)
	_, err = svc.Set(ctx, "banner", `{"text":"Welcome"}`, "json")
	require.NoError(t, err)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, all["max_level"])
	assert.Equal(t, 1000, all["level_up_experience_base"])
	assert.Equal(t, 9.99, all["premium_price"])
	assert.Equal(t, true, all["maintenance"])
	assert.Equal(t, map[string]any{"text": "Welcome"}, all["banner"])
}

func TestSettingsValidation(t *testing.T) {
	svc := NewSettingsService(storetest.New())
	ctx := context.Background()

	_, err := svc.Set(ctx, "maintenance", "maybe", "bool")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Set(ctx, "", "x", "string")
	assert.ErrorIs(t, err, ErrValidation)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), ErrSettingNotFound)
}
