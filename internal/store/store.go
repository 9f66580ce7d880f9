// Package store is the ledger store: the single source of truth for users,
// quests, items and transactions. Every read-modify-write of a user, user
// quest or transaction row runs inside Atomic with the row locked first.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type ItemFilter struct {
	ItemType       string
	Rarity         string
	MinLevel       int
	MaxLevel       int
	IncludePremium bool
	SortBy         string // name, pi_price, level_requirement, created_at
	Page           int
	PerPage        int
}

type TransactionFilter struct {
	UserID  uuid.UUID
	Type    models.TransactionType
	Status  models.TransactionStatus
	Since   *time.Time
	Page    int
	PerPage int
}

type LeaderboardSort string

const (
	SortByLevel      LeaderboardSort = "level"
	SortByExperience LeaderboardSort = "experience"
	SortByBalance    LeaderboardSort = "pi_balance"
)

// Reader holds the lookups that need no lock.
type Reader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByPiUID(ctx context.Context, piUID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	Leaderboard(ctx context.Context, sort LeaderboardSort, page, perPage int) ([]models.User, int64, error)

	GetQuest(ctx context.Context, id uuid.UUID) (*models.Quest, error)
	ListActiveQuests(ctx context.Context, maxLevel int) ([]models.Quest, error)
	GetUserQuest(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error)
	ListUserQuests(ctx context.Context, userID uuid.UUID) ([]models.UserQuest, error)
	GetQuestProgress(ctx context.Context, userID, questID uuid.UUID) (*models.QuestProgress, error)

	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]models.Item, int64, error)
	ListItemsByRarity(ctx context.Context, rarities []string, orderBy string, limit int) ([]models.Item, error)
	ItemCategories(ctx context.Context) (itemTypes []string, rarities []string, err error)
	ListInventory(ctx context.Context, userID uuid.UUID) ([]models.InventoryItem, error)

	GetTransaction(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error)
	GetTransactionByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error)
	SumTransactions(ctx context.Context, userID uuid.UUID, types []models.TransactionType, status models.TransactionStatus) (decimal.Decimal, int64, error)
	ListPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error)

	GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	ListGameSettings(ctx context.Context) ([]models.GameSetting, error)
}

// Tx is the view of the store handed to an Atomic block. The Lock* methods
// take a row lock held until the block returns.
type Tx interface {
	Reader

	LockUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	LockUserQuest(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error)
	LockQuestProgress(ctx context.Context, userID, questID uuid.UUID) (*models.QuestProgress, error)
	LockTransactionByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error)

	CreateUser(ctx context.Context, u *models.User) error
	SaveUser(ctx context.Context, u *models.User) error
	CreateQuest(ctx context.Context, q *models.Quest) error
	SetQuestActive(ctx context.Context, id uuid.UUID, active bool) error
	CreateUserQuest(ctx context.Context, uq *models.UserQuest) error
	SaveUserQuest(ctx context.Context, uq *models.UserQuest) error
	CreateQuestProgress(ctx context.Context, p *models.QuestProgress) error
	SaveQuestProgress(ctx context.Context, p *models.QuestProgress) error
	CreateItem(ctx context.Context, i *models.Item) error
	SetItemAvailable(ctx context.Context, id uuid.UUID, available bool) error
	AddInventoryItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) error
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	SaveTransaction(ctx context.Context, t *models.Transaction) error

	CreateRefreshToken(ctx context.Context, rt *models.RefreshToken) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	UpsertGameSetting(ctx context.Context, gs *models.GameSetting) error
	DeleteGameSetting(ctx context.Context, key string) error
}

// Store is a Tx whose writes auto-commit, plus the ability to group writes.
type Store interface {
	Tx
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}
