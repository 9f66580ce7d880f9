package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type UserService struct {
	store   store.Store
	economy *EconomyService
	game    config.Game
	now     func() time.Time
}

func NewUserService(st store.Store, economy *EconomyService, game config.Game) *UserService {
	return &UserService{store: st, economy: economy, game: game, now: time.Now}
}

// ProfileUpdate carries optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	Username       *string
	Email          *string
	AvatarURL      *string
	AvatarUpgrades map[string]any
}

type UserStats struct {
	Level                 int             `json:"level"`
	MaxLevel              int             `json:"max_level"`
	Experience            int64           `json:"experience"`
	ExperienceToNextLevel int64           `json:"experience_to_next_level"`
	Balance               decimal.Decimal `json:"pi_balance"`
	CompletedQuests       int64           `json:"completed_quests"`
	TotalQuestEarnings    decimal.Decimal `json:"total_quest_earnings"`
	IsPremium             bool            `json:"is_premium"`
	PremiumExpiresAt      *time.Time      `json:"premium_expires_at"`
	AccountAgeDays        int             `json:"account_age_days"`
	LastActive            time.Time       `json:"last_active"`
}

type LeaderboardPage struct {
	Users []models.User
	Total int64
}

type SubscriptionResult struct {
	User        *models.User
	Transaction *models.Transaction
}

func (s *UserService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	user.IsPremium = user.PremiumActive(s.now())
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	var out *models.User
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		if upd.Username != nil && *upd.Username != user.Username {
			other, err := tx.GetUserByUsername(ctx, *upd.Username)
			if err == nil && other.ID != user.ID {
				return ErrUsernameTaken
			}
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			user.Username = *upd.Username
		}
		if upd.Email != nil {
			user.Email = upd.Email
		}
		if upd.AvatarURL != nil {
			user.AvatarURL = upd.AvatarURL
		}
		if upd.AvatarUpgrades != nil {
			if user.AvatarUpgrades == nil {
				user.AvatarUpgrades = datatypes.JSONMap{}
			}
			for k, v := range upd.AvatarUpgrades {
				user.AvatarUpgrades[k] = v
			}
		}

		if err := tx.SaveUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrUsernameTaken
			}
			return err
		}
		out = user
		return nil
	})
	return out, err
}

func (s *UserService) Stats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	user, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	// Each claim leaves a quest_reward row, which outlives the reset of a
	// re-accepted repeatable quest.
	earned, claimed, err := s.store.SumTransactions(ctx, userID, []models.TransactionType{models.TxQuestReward}, models.TxCompleted)
	if err != nil {
		return nil, err
	}
	uqs, err := s.store.ListUserQuests(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed := claimed
	for _, uq := range uqs {
		if uq.Status == models.UserQuestCompleted && !uq.RewardsClaimed {
			completed++
		}
	}

	now := s.now()
	return &UserStats{
		Level:                 user.Level,
		MaxLevel:              s.game.MaxLevel,
		Experience:            user.Experience,
		ExperienceToNextLevel: s.economy.ExperienceToNextLevel(user),
		Balance:               user.Balance,
		CompletedQuests:       completed,
		TotalQuestEarnings:    earned,
		IsPremium:             user.PremiumActive(now),
		PremiumExpiresAt:      user.PremiumExpiresAt,
		AccountAgeDays:        int(now.Sub(user.CreatedAt).Hours() / 24),
		LastActive:            user.LastActive,
	}, nil
}

func (s *UserService) Leaderboard(ctx context.Context, sort store.LeaderboardSort, page, perPage int) (*LeaderboardPage, error) {
	users, total, err := s.store.Leaderboard(ctx, sort, page, perPage)
	if err != nil {
		return nil, err
	}
	return &LeaderboardPage{Users: users, Total: total}, nil
}

// SubscribePremium charges the premium price and extends premium by the
// configured duration, starting from the current expiry if still active.
func (s *UserService) SubscribePremium(ctx context.Context, userID uuid.UUID) (*SubscriptionResult, error) {
	now := s.now()
	var res SubscriptionResult

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := s.economy.ApplyDebit(user, s.game.PremiumPrice); err != nil {
			return err
		}

		start := now
		if user.PremiumActive(now) && user.PremiumExpiresAt != nil {
			start = *user.PremiumExpiresAt
		}
		expires := start.Add(s.game.PremiumDuration)
		user.IsPremium = true
		user.PremiumExpiresAt = &expires
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}

		txn := &models.Transaction{
			ID:          uuid.New(),
			UserID:      userID,
			Type:        models.TxPremiumSubscription,
			Amount:      s.game.PremiumPrice,
			Currency:    "PI",
			Status:      models.TxCompleted,
			Metadata:    datatypes.JSONMap{"premium_expires_at": expires.Format(time.RFC3339)},
			Description: "Premium membership",
			CreatedAt:   now,
			CompletedAt: &now,
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		res = SubscriptionResult{User: user, Transaction: txn}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("premium subscribed", "user_id", userID.String(), "expires_at", res.User.PremiumExpiresAt.Format(time.RFC3339))
	return &res, nil
}
