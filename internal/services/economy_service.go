package services

import (
	"context"
	"errors"
	"math"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EconomyService owns balance and experience arithmetic. The Apply* and
// AddExperience methods mutate a user that the caller has already locked
// inside an Atomic block; Debit and Credit run their own block.
type EconomyService struct {
	store store.Store
	game  config.Game
}

func NewEconomyService(st store.Store, game config.Game) *EconomyService {
	return &EconomyService{store: st, game: game}
}

func (s *EconomyService) CanAfford(u *models.User, amount decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(amount)
}

func (s *EconomyService) ApplyDebit(u *models.User, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("debit amount must be positive")
	}
	if !s.CanAfford(u, amount) {
		return ErrInsufficientFunds
	}
	u.Balance = u.Balance.Sub(amount)
	return nil
}

func (s *EconomyService) ApplyCredit(u *models.User, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("credit amount must be positive")
	}
	u.Balance = u.Balance.Add(amount)
	return nil
}

func (s *EconomyService) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.User, error) {
	return s.mutate(ctx, userID, func(u *models.User) error { return s.ApplyDebit(u, amount) })
}

func (s *EconomyService) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.User, error) {
	return s.mutate(ctx, userID, func(u *models.User) error { return s.ApplyCredit(u, amount) })
}

func (s *EconomyService) mutate(ctx context.Context, userID uuid.UUID, fn func(*models.User) error) (*models.User, error) {
	var out *models.User
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	return out, err
}

// AddExperience adds amount to the user's experience and applies any level
// gained. It reports whether the level went up. Level never decreases.
func (s *EconomyService) AddExperience(u *models.User, amount int64) bool {
	if amount <= 0 {
		return false
	}
	u.Experience += amount

	newLevel := s.LevelForExperience(u.Experience)
	if newLevel <= u.Level {
		return false
	}

	delta := newLevel - u.Level
	u.Level = newLevel
	u.MaxHealth += delta * s.game.HealthPerLevel
	u.MaxMana += delta * s.game.ManaPerLevel
	u.Health = u.MaxHealth
	u.Mana = u.MaxMana
	return true
}

// LevelForExperience is min(floor(sqrt(exp/base))+1, MaxLevel).
func (s *EconomyService) LevelForExperience(exp int64) int {
	if exp < 0 {
		exp = 0
	}
	level := isqrt(exp/s.game.LevelUpExperienceBase) + 1
	if level > int64(s.game.MaxLevel) {
		return s.game.MaxLevel
	}
	return int(level)
}

// ExperienceToNextLevel is zero at the level cap.
func (s *EconomyService) ExperienceToNextLevel(u *models.User) int64 {
	if u.Level >= s.game.MaxLevel {
		return 0
	}
	threshold := int64(u.Level) * int64(u.Level) * s.game.LevelUpExperienceBase
	if need := threshold - u.Experience; need > 0 {
		return need
	}
	return 0
}

func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

func lockUser(ctx context.Context, tx store.Tx, id uuid.UUID) (*models.User, error) {
	u, err := tx.LockUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func getUser(ctx context.Context, r store.Reader, id uuid.UUID) (*models.User, error) {
	u, err := r.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}
