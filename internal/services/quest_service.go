package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const maxProcessedEvents = 100

type QuestService struct {
	store   store.Store
	economy *EconomyService
	game    config.Game
	now     func() time.Time
}

func NewQuestService(st store.Store, economy *EconomyService, game config.Game) *QuestService {
	return &QuestService{store: st, economy: economy, game: game, now: time.Now}
}

// QuestView is a quest annotated with the caller's standing on it.
type QuestView struct {
	models.Quest
	UserStatus     *models.UserQuestStatus `json:"user_status"`
	RewardsClaimed bool                    `json:"rewards_claimed"`
	CanAccept      bool                    `json:"can_accept"`
	CooldownEndsAt *time.Time              `json:"cooldown_ends_at,omitempty"`
}

// MyQuest is one of the user's own quest rows, whatever the quest's
// current visibility.
type MyQuest struct {
	Quest     models.Quest          `json:"quest"`
	UserQuest models.UserQuest      `json:"user_quest"`
	Progress  *models.QuestProgress `json:"progress,omitempty"`
	CanClaim  bool                  `json:"can_claim_rewards"`
}

type ProgressInput struct {
	Increment      int
	CompletionData map[string]any
	EventID        string
}

type ProgressResult struct {
	Progress    *models.QuestProgress
	UserQuest   *models.UserQuest
	MaxProgress int
	Completed   bool // completed by this update
	Duplicate   bool // event id already applied
}

type ClaimResult struct {
	UserQuest        *models.UserQuest
	User             *models.User
	Transaction      *models.Transaction
	PiReward         decimal.Decimal
	ExperienceReward int64
	LeveledUp        bool
}

type ProgressView struct {
	Quest     *models.Quest
	UserQuest *models.UserQuest
	Progress  *models.QuestProgress
}

func (s *QuestService) ListAvailable(ctx context.Context, userID uuid.UUID) ([]QuestView, error) {
	user, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	quests, err := s.store.ListActiveQuests(ctx, user.Level)
	if err != nil {
		return nil, err
	}
	uqs, err := s.store.ListUserQuests(ctx, userID)
	if err != nil {
		return nil, err
	}
	byQuest := make(map[uuid.UUID]models.UserQuest, len(uqs))
	for _, uq := range uqs {
		byQuest[uq.QuestID] = uq
	}

	now := s.now()
	views := make([]QuestView, 0, len(quests))
	for _, q := range quests {
		v := QuestView{Quest: q, CanAccept: true}
		if uq, ok := byQuest[q.ID]; ok {
			status := uq.Status
			v.UserStatus = &status
			v.RewardsClaimed = uq.RewardsClaimed
			v.CanAccept = checkReaccept(&uq, &q, now) == nil
			if q.IsRepeatable && uq.LastCompletedAt != nil && q.CooldownHours > 0 {
				ends := uq.LastCompletedAt.Add(q.Cooldown())
				if now.Before(ends) {
					v.CooldownEndsAt = &ends
				}
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// ListMine returns the user's quest rows, most recently accepted first. An
// empty status returns every row.
func (s *QuestService) ListMine(ctx context.Context, userID uuid.UUID, status models.UserQuestStatus) ([]MyQuest, error) {
	if _, err := getUser(ctx, s.store, userID); err != nil {
		return nil, err
	}
	uqs, err := s.store.ListUserQuests(ctx, userID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(uqs, func(a, b models.UserQuest) int {
		return b.AcceptedAt.Compare(a.AcceptedAt)
	})

	now := s.now()
	out := make([]MyQuest, 0, len(uqs))
	for _, uq := range uqs {
		if status != "" && uq.Status != status {
			continue
		}
		quest, err := getQuest(ctx, s.store, uq.QuestID)
		if err != nil {
			return nil, err
		}
		mq := MyQuest{Quest: *quest, UserQuest: uq, CanClaim: uq.CanClaim(now)}
		p, err := s.store.GetQuestProgress(ctx, userID, uq.QuestID)
		switch {
		case err == nil:
			mq.Progress = p
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
		out = append(out, mq)
	}
	return out, nil
}

// Accept starts (or restarts) a quest for the user. A previous row for the
// same pair is reused, since user_quests and quest_progress hold one row per
// (user, quest).
func (s *QuestService) Accept(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error) {
	now := s.now()
	var out *models.UserQuest

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		quest, err := getQuest(ctx, tx, questID)
		if err != nil {
			return err
		}
		if !quest.IsActive {
			return ErrQuestInactive
		}
		if user.Level < quest.LevelRequirement {
			return ErrLevelTooLow
		}

		uq, err := tx.LockUserQuest(ctx, userID, questID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		isNew := uq == nil
		if !isNew {
			if err := checkReaccept(uq, quest, now); err != nil {
				return err
			}
			if uq.IsOpen() {
				slog.Info("expired quest acceptance failed", "user_id", userID.String(), "quest_id", questID.String())
			}
		} else {
			uq = &models.UserQuest{ID: uuid.New(), UserID: userID, QuestID: questID}
		}

		expires := now.Add(s.game.QuestExpiry)
		uq.Status = models.UserQuestAccepted
		uq.AcceptedAt = now
		uq.CompletedAt = nil
		uq.ExpiresAt = &expires
		uq.RewardsClaimed = false
		uq.PiRewardAmount = quest.PiReward
		uq.ExperienceRewardAmount = quest.ExperienceReward

		if isNew {
			err = tx.CreateUserQuest(ctx, uq)
		} else {
			err = tx.SaveUserQuest(ctx, uq)
		}
		if err != nil {
			return err
		}

		if err := s.resetProgress(ctx, tx, userID, questID, now); err != nil {
			return err
		}
		out = uq
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("quest accepted", "user_id", userID.String(), "quest_id", questID.String())
	return out, nil
}

func (s *QuestService) resetProgress(ctx context.Context, tx store.Tx, userID, questID uuid.UUID, now time.Time) error {
	p, err := tx.LockQuestProgress(ctx, userID, questID)
	if errors.Is(err, store.ErrNotFound) {
		return tx.CreateQuestProgress(ctx, &models.QuestProgress{
			ID:             uuid.New(),
			UserID:         userID,
			QuestID:        questID,
			CompletionData: datatypes.JSONMap{},
			StartedAt:      now,
		})
	}
	if err != nil {
		return err
	}

	p.CurrentProgress = 0
	p.IsCompleted = false
	p.CompletionData = datatypes.JSONMap{}
	p.ProcessedEvents = nil
	p.StartedAt = now
	p.CompletedAt = nil
	return tx.SaveQuestProgress(ctx, p)
}

// checkReaccept decides whether an existing acceptance row may be restarted.
func checkReaccept(uq *models.UserQuest, quest *models.Quest, now time.Time) error {
	switch {
	case uq.IsOpen() && !uq.IsExpired(now):
		return ErrQuestActive
	case uq.Status == models.UserQuestCompleted:
		if !quest.IsRepeatable {
			return ErrQuestAlreadyCompleted
		}
		if uq.LastCompletedAt != nil && now.Before(uq.LastCompletedAt.Add(quest.Cooldown())) {
			return ErrQuestCooldown
		}
		if !uq.RewardsClaimed && !uq.IsExpired(now) {
			return ErrRewardsUnclaimed
		}
	}
	return nil
}

// UpdateProgress adds in.Increment to the pair's progress. An update with an
// event id that was already applied changes nothing.
func (s *QuestService) UpdateProgress(ctx context.Context, userID, questID uuid.UUID, in ProgressInput) (*ProgressResult, error) {
	if in.Increment <= 0 {
		return nil, invalid("progress increment must be positive")
	}

	now := s.now()
	var res ProgressResult
	expired := false

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		uq, err := tx.LockUserQuest(ctx, userID, questID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrQuestNotAccepted
		}
		if err != nil {
			return err
		}
		quest, err := getQuest(ctx, tx, questID)
		if err != nil {
			return err
		}
		p, err := tx.LockQuestProgress(ctx, userID, questID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrQuestNotAccepted
		}
		if err != nil {
			return err
		}

		res.MaxProgress = quest.MaxProgress
		res.UserQuest = uq
		res.Progress = p

		if in.EventID != "" && p.HasProcessed(in.EventID) {
			res.Duplicate = true
			return nil
		}
		if uq.Status == models.UserQuestCompleted {
			return ErrQuestAlreadyCompleted
		}
		if !uq.IsOpen() {
			return ErrInvalidState
		}
		if uq.IsExpired(now) {
			uq.Status = models.UserQuestFailed
			expired = true
			return tx.SaveUserQuest(ctx, uq)
		}

		p.CurrentProgress += in.Increment
		if len(in.CompletionData) > 0 {
			if p.CompletionData == nil {
				p.CompletionData = datatypes.JSONMap{}
			}
			for k, v := range in.CompletionData {
				p.CompletionData[k] = v
			}
		}
		if in.EventID != "" {
			p.ProcessedEvents = append(p.ProcessedEvents, in.EventID)
			if n := len(p.ProcessedEvents); n > maxProcessedEvents {
				p.ProcessedEvents = p.ProcessedEvents[n-maxProcessedEvents:]
			}
		}

		if p.CurrentProgress >= quest.MaxProgress && !p.IsCompleted {
			p.IsCompleted = true
			p.CompletedAt = &now
			uq.Status = models.UserQuestCompleted
			uq.CompletedAt = &now
			uq.LastCompletedAt = &now
			res.Completed = true
		} else if uq.Status == models.UserQuestAccepted {
			uq.Status = models.UserQuestInProgress
		}

		if err := tx.SaveQuestProgress(ctx, p); err != nil {
			return err
		}
		return tx.SaveUserQuest(ctx, uq)
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrQuestExpired
	}

	if res.Completed {
		slog.Info("quest completed", "user_id", userID.String(), "quest_id", questID.String())
	}
	return &res, nil
}

// ClaimRewards pays out a completed quest at most once.
func (s *QuestService) ClaimRewards(ctx context.Context, userID, questID uuid.UUID) (*ClaimResult, error) {
	now := s.now()
	var res ClaimResult

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		uq, err := tx.LockUserQuest(ctx, userID, questID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrQuestNotAccepted
		}
		if err != nil {
			return err
		}

		switch {
		case uq.RewardsClaimed:
			return ErrAlreadyClaimed
		case uq.Status != models.UserQuestCompleted:
			return ErrNotCompleted
		case uq.IsExpired(now):
			return ErrQuestExpired
		}

		quest, err := getQuest(ctx, tx, questID)
		if err != nil {
			return err
		}

		if uq.PiRewardAmount.IsPositive() {
			if err := s.economy.ApplyCredit(user, uq.PiRewardAmount); err != nil {
				return err
			}
		}
		leveledUp := s.economy.AddExperience(user, uq.ExperienceRewardAmount)
		uq.RewardsClaimed = true

		if err := tx.SaveUserQuest(ctx, uq); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}

		txn := &models.Transaction{
			ID:             uuid.New(),
			UserID:         userID,
			Type:           models.TxQuestReward,
			Amount:         uq.PiRewardAmount,
			Currency:       "PI",
			Status:         models.TxCompleted,
			RelatedQuestID: &questID,
			Metadata: datatypes.JSONMap{
				"experience_reward": uq.ExperienceRewardAmount,
				"leveled_up":        leveledUp,
				"new_level":         user.Level,
			},
			Description: "Quest reward: " + quest.Title,
			CreatedAt:   now,
			CompletedAt: &now,
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		res = ClaimResult{
			UserQuest:        uq,
			User:             user,
			Transaction:      txn,
			PiReward:         uq.PiRewardAmount,
			ExperienceReward: uq.ExperienceRewardAmount,
			LeveledUp:        leveledUp,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("quest rewards claimed",
		"user_id", userID.String(),
		"quest_id", questID.String(),
		"pi_reward", res.PiReward.String(),
		"experience", res.ExperienceReward,
		"leveled_up", res.LeveledUp,
	)
	return &res, nil
}

func (s *QuestService) Abandon(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error) {
	var out *models.UserQuest
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		uq, err := tx.LockUserQuest(ctx, userID, questID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrQuestNotAccepted
		}
		if err != nil {
			return err
		}
		if !uq.IsOpen() {
			return ErrInvalidState
		}
		uq.Status = models.UserQuestAbandoned
		if err := tx.SaveUserQuest(ctx, uq); err != nil {
			return err
		}
		out = uq
		return nil
	})
	return out, err
}

func (s *QuestService) GetProgress(ctx context.Context, userID, questID uuid.UUID) (*ProgressView, error) {
	quest, err := getQuest(ctx, s.store, questID)
	if err != nil {
		return nil, err
	}
	uq, err := s.store.GetUserQuest(ctx, userID, questID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrQuestNotAccepted
	}
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetQuestProgress(ctx, userID, questID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrQuestNotAccepted
	}
	if err != nil {
		return nil, err
	}
	return &ProgressView{Quest: quest, UserQuest: uq, Progress: p}, nil
}

func (s *QuestService) CreateQuest(ctx context.Context, q *models.Quest) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return s.store.CreateQuest(ctx, q)
}

func (s *QuestService) SetActive(ctx context.Context, questID uuid.UUID, active bool) error {
	err := s.store.SetQuestActive(ctx, questID, active)
	if errors.Is(err, store.ErrNotFound) {
		return ErrQuestNotFound
	}
	return err
}

func getQuest(ctx context.Context, r store.Reader, id uuid.UUID) (*models.Quest, error) {
	q, err := r.GetQuest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrQuestNotFound
	}
	return q, err
}
