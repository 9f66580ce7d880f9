package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForExperience(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		exp  int64
		want int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{3999, 2},
		{4000, 3},
		{8999, 3},
		{9000, 4},
		{1 << 40, 250},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, env.economy.LevelForExperience(tt.exp), "exp=%d", tt.exp)
	}
}

func TestLevelIsMonotonic(t *testing.T) {
	env := newTestEnv(t)
	prev := 0
	for exp := int64(0); exp < 200000; exp += 137 {
		level := env.economy.LevelForExperience(exp)
		require.GreaterOrEqual(t, level, prev)
		prev = level
	}
}

func TestAddExperienceZeroIsNoop(t *testing.T) {
	env := newTestEnv(t)
	u := models.NewUser("uid", "name", decimal.Zero, t0)

	assert.False(t, env.economy.AddExperience(u, 0))
	assert.Equal(t, int64(0), u.Experience)
	assert.Equal(t, 1, u.Level)
}

func TestAddExperienceLevelUpGrantsStats(t *testing.T) {
	env := newTestEnv(t)
	u := models.NewUser("uid", "name", decimal.Zero, t0)
	u.Health = 40
	u.Mana = 3

	assert.True(t, env.economy.AddExperience(u, 4000))
	assert.Equal(t, 3, u.Level)
	assert.Equal(t, 120, u.MaxHealth)
	assert.Equal(t, 60, u.MaxMana)
	assert.Equal(t, u.MaxHealth, u.Health)
	assert.Equal(t, u.MaxMana, u.Mana)
}

func TestAddExperienceNeverLowersLevel(t *testing.T) {
	env := newTestEnv(t)
	u := models.NewUser("uid", "name", decimal.Zero, t0)
	u.Level = 5

	assert.False(t, env.economy.AddExperience(u, 10))
	assert.Equal(t, 5, u.Level)
	assert.Equal(t, int64(10), u.Experience)
}

func TestExperienceToNextLevel(t *testing.T) {
	env := newTestEnv(t)
	u := models.NewUser("uid", "name", decimal.Zero, t0)
	u.Experience = 250
	assert.Equal(t, int64(750), env.economy.ExperienceToNextLevel(u))

	u.Level = env.game.MaxLevel
	assert.Equal(t, int64(0), env.economy.ExperienceToNextLevel(u))
}

func TestDebitInsufficientFundsLeavesBalance(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "3")

	_, err := env.economy.Debit(context.Background(), u.ID, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "3.00", env.balance(t, u.ID))
}

func TestCreditRequiresPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "3")

	_, err := env.economy.Credit(context.Background(), u.ID, decimal.Zero)
	assert.ErrorIs(t, err, ErrValidation)

	got, err := env.economy.Credit(context.Background(), u.ID, decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "4.50", got.Balance.StringFixed(2))
}

func TestDebitUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.economy.Debit(context.Background(), uuid.New(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "5")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.economy.Debit(context.Background(), u.ID, decimal.NewFromInt(1))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, "0.00", env.balance(t, u.ID))
}
