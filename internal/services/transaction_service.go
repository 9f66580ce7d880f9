package services

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	earningTypes  = []models.TransactionType{models.TxQuestReward, models.TxPiDeposit}
	spendingTypes = []models.TransactionType{models.TxItemPurchase, models.TxPremiumSubscription}
)

type TransactionService struct {
	store store.Store
	now   func() time.Time
}

func NewTransactionService(st store.Store) *TransactionService {
	return &TransactionService{store: st, now: time.Now}
}

type HistoryQuery struct {
	Type    models.TransactionType
	Status  models.TransactionStatus
	Days    int
	Page    int
	PerPage int
}

type HistoryPage struct {
	Transactions []models.Transaction
	Total        int64
}

type Summary struct {
	Balance        decimal.Decimal      `json:"pi_balance"`
	TotalEarned    decimal.Decimal      `json:"total_earned"`
	TotalSpent     decimal.Decimal      `json:"total_spent"`
	EarningCount   int64                `json:"earning_count"`
	SpendingCount  int64                `json:"spending_count"`
	RecentActivity []models.Transaction `json:"recent_activity"`
}

type TransactionDetail struct {
	Transaction *models.Transaction
	Quest       *models.Quest
	Item        *models.Item
}

func (s *TransactionService) History(ctx context.Context, userID uuid.UUID, q HistoryQuery) (*HistoryPage, error) {
	filter := store.TransactionFilter{
		UserID:  userID,
		Type:    q.Type,
		Status:  q.Status,
		Page:    q.Page,
		PerPage: q.PerPage,
	}
	if q.Days > 0 {
		since := s.now().AddDate(0, 0, -q.Days)
		filter.Since = &since
	}
	txs, total, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Transactions: txs, Total: total}, nil
}

func (s *TransactionService) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	user, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	earned, earnCount, err := s.store.SumTransactions(ctx, userID, earningTypes, models.TxCompleted)
	if err != nil {
		return nil, err
	}
	spent, spendCount, err := s.store.SumTransactions(ctx, userID, spendingTypes, models.TxCompleted)
	if err != nil {
		return nil, err
	}

	since := s.now().AddDate(0, 0, -7)
	recent, _, err := s.store.ListTransactions(ctx, store.TransactionFilter{
		UserID:  userID,
		Since:   &since,
		Page:    1,
		PerPage: 10,
	})
	if err != nil {
		return nil, err
	}

	return &Summary{
		Balance:        user.Balance,
		TotalEarned:    earned,
		TotalSpent:     spent,
		EarningCount:   earnCount,
		SpendingCount:  spendCount,
		RecentActivity: recent,
	}, nil
}

func (s *TransactionService) Detail(ctx context.Context, userID, id uuid.UUID) (*TransactionDetail, error) {
	txn, err := s.store.GetTransaction(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := &TransactionDetail{Transaction: txn}
	if txn.RelatedQuestID != nil {
		if q, err := s.store.GetQuest(ctx, *txn.RelatedQuestID); err == nil {
			detail.Quest = q
		}
	}
	if txn.RelatedItemID != nil {
		if i, err := s.store.GetItem(ctx, *txn.RelatedItemID); err == nil {
			detail.Item = i
		}
	}
	return detail, nil
}
