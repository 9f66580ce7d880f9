package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolation = "23505"

// GormStore implements Store on postgres through gorm. Row locks are
// SELECT ... FOR UPDATE inside the surrounding gorm transaction.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func (s *GormStore) q(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) locked(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func paginate(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return perPage, (page - 1) * perPage
}

// --- users ---

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.q(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByPiUID(ctx context.Context, piUID string) (*models.User, error) {
	var u models.User
	if err := s.q(ctx).Where("pi_user_id = ?", piUID).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.q(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) LockUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.locked(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.q(ctx).Create(u).Error)
}

func (s *GormStore) SaveUser(ctx context.Context, u *models.User) error {
	return translate(s.q(ctx).Save(u).Error)
}

func (s *GormStore) Leaderboard(ctx context.Context, sort LeaderboardSort, page, perPage int) ([]models.User, int64, error) {
	var total int64
	if err := s.q(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "level DESC, experience DESC"
	switch sort {
	case SortByExperience:
		order = "experience DESC"
	case SortByBalance:
		order = "pi_balance DESC"
	}

	limit, offset := paginate(page, perPage)
	var users []models.User
	err := s.q(ctx).Order(order).Order("created_at").Limit(limit).Offset(offset).Find(&users).Error
	return users, total, err
}

// --- quests ---

func (s *GormStore) GetQuest(ctx context.Context, id uuid.UUID) (*models.Quest, error) {
	var q models.Quest
	if err := s.q(ctx).First(&q, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &q, nil
}

func (s *GormStore) ListActiveQuests(ctx context.Context, maxLevel int) ([]models.Quest, error) {
	var quests []models.Quest
	err := s.q(ctx).
		Where("is_active = ? AND level_requirement <= ?", true, maxLevel).
		Order("level_requirement, created_at").
		Find(&quests).Error
	return quests, err
}

func (s *GormStore) CreateQuest(ctx context.Context, q *models.Quest) error {
	return translate(s.q(ctx).Create(q).Error)
}

func (s *GormStore) SetQuestActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := s.q(ctx).Model(&models.Quest{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetUserQuest(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error) {
	var uq models.UserQuest
	if err := s.q(ctx).Where("user_id = ? AND quest_id = ?", userID, questID).First(&uq).Error; err != nil {
		return nil, translate(err)
	}
	return &uq, nil
}

func (s *GormStore) LockUserQuest(ctx context.Context, userID, questID uuid.UUID) (*models.UserQuest, error) {
	var uq models.UserQuest
	if err := s.locked(ctx).Where("user_id = ? AND quest_id = ?", userID, questID).First(&uq).Error; err != nil {
		return nil, translate(err)
	}
	return &uq, nil
}

func (s *GormStore) ListUserQuests(ctx context.Context, userID uuid.UUID) ([]models.UserQuest, error) {
	var uqs []models.UserQuest
	err := s.q(ctx).Where("user_id = ?", userID).Order("accepted_at DESC").Find(&uqs).Error
	return uqs, err
}

func (s *GormStore) CreateUserQuest(ctx context.Context, uq *models.UserQuest) error {
	return translate(s.q(ctx).Omit(clause.Associations).Create(uq).Error)
}

func (s *GormStore) SaveUserQuest(ctx context.Context, uq *models.UserQuest) error {
	return translate(s.q(ctx).Omit(clause.Associations).Save(uq).Error)
}

func (s *GormStore) GetQuestProgress(ctx context.Context, userID, questID uuid.UUID) (*models.QuestProgress, error) {
	var p models.QuestProgress
	if err := s.q(ctx).Where("user_id = ? AND quest_id = ?", userID, questID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) LockQuestProgress(ctx context.Context, userID, questID uuid.UUID) (*models.QuestProgress, error) {
	var p models.QuestProgress
	if err := s.locked(ctx).Where("user_id = ? AND quest_id = ?", userID, questID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) CreateQuestProgress(ctx context.Context, p *models.QuestProgress) error {
	return translate(s.q(ctx).Omit(clause.Associations).Create(p).Error)
}

func (s *GormStore) SaveQuestProgress(ctx context.Context, p *models.QuestProgress) error {
	return translate(s.q(ctx).Omit(clause.Associations).Save(p).Error)
}

// --- items ---

func (s *GormStore) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var i models.Item
	if err := s.q(ctx).First(&i, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &i, nil
}

func (s *GormStore) ListItems(ctx context.Context, f ItemFilter) ([]models.Item, int64, error) {
	query := s.q(ctx).Model(&models.Item{}).Where("is_available = ?", true)
	if f.ItemType != "" {
		query = query.Where("item_type = ?", f.ItemType)
	}
	if f.Rarity != "" {
		query = query.Where("rarity = ?", f.Rarity)
	}
	if f.MinLevel > 0 {
		query = query.Where("level_requirement >= ?", f.MinLevel)
	}
	if f.MaxLevel > 0 {
		query = query.Where("level_requirement <= ?", f.MaxLevel)
	}
	if !f.IncludePremium {
		query = query.Where("is_premium_only = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch f.SortBy {
	case "name":
		query = query.Order("name")
	case "pi_price":
		query = query.Order("pi_price")
	case "level_requirement":
		query = query.Order("level_requirement")
	default:
		query = query.Order("created_at DESC")
	}

	limit, offset := paginate(f.Page, f.PerPage)
	var items []models.Item
	err := query.Limit(limit).Offset(offset).Find(&items).Error
	return items, total, err
}

func (s *GormStore) ListItemsByRarity(ctx context.Context, rarities []string, orderBy string, limit int) ([]models.Item, error) {
	query := s.q(ctx).Where("is_available = ?", true)
	if len(rarities) > 0 {
		query = query.Where("rarity IN ?", rarities)
	}
	var items []models.Item
	err := query.Order(orderBy).Limit(limit).Find(&items).Error
	return items, err
}

func (s *GormStore) ItemCategories(ctx context.Context) ([]string, []string, error) {
	var itemTypes, rarities []string
	if err := s.q(ctx).Model(&models.Item{}).Distinct("item_type").Pluck("item_type", &itemTypes).Error; err != nil {
		return nil, nil, err
	}
	if err := s.q(ctx).Model(&models.Item{}).Distinct("rarity").Pluck("rarity", &rarities).Error; err != nil {
		return nil, nil, err
	}
	return itemTypes, rarities, nil
}

func (s *GormStore) CreateItem(ctx context.Context, i *models.Item) error {
	return translate(s.q(ctx).Create(i).Error)
}

func (s *GormStore) SetItemAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	res := s.q(ctx).Model(&models.Item{}).Where("id = ?", id).Update("is_available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AddInventoryItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	now := time.Now()
	inv := models.InventoryItem{
		ID:         uuid.New(),
		UserID:     userID,
		ItemID:     itemID,
		Quantity:   quantity,
		AcquiredAt: now,
		UpdatedAt:  now,
	}
	return translate(s.q(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("inventory_items.quantity + ?", quantity),
			"updated_at": now,
		}),
	}).Create(&inv).Error)
}

func (s *GormStore) ListInventory(ctx context.Context, userID uuid.UUID) ([]models.InventoryItem, error) {
	var inv []models.InventoryItem
	err := s.q(ctx).Where("user_id = ?", userID).Order("acquired_at").Find(&inv).Error
	return inv, err
}

// --- transactions ---

func (s *GormStore) GetTransaction(ctx context.Context, userID, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.q(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) GetTransactionByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.q(ctx).Where("pi_payment_id = ?", paymentID).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) LockTransactionByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.locked(ctx).Where("pi_payment_id = ?", paymentID).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, int64, error) {
	query := s.q(ctx).Model(&models.Transaction{}).Where("user_id = ?", f.UserID)
	if f.Type != "" {
		query = query.Where("transaction_type = ?", f.Type)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Since != nil {
		query = query.Where("created_at >= ?", *f.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := paginate(f.Page, f.PerPage)
	var txs []models.Transaction
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&txs).Error
	return txs, total, err
}

func (s *GormStore) SumTransactions(ctx context.Context, userID uuid.UUID, types []models.TransactionType, status models.TransactionStatus) (decimal.Decimal, int64, error) {
	var row struct {
		Total decimal.Decimal
		Count int64
	}
	err := s.q(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("user_id = ? AND transaction_type IN ? AND status = ?", userID, types, status).
		Scan(&row).Error
	return row.Total, row.Count, err
}

func (s *GormStore) ListPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.q(ctx).
		Where("status = ? AND pi_payment_id IS NOT NULL AND created_at < ?", models.TxPending, createdBefore).
		Order("created_at").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

func (s *GormStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return translate(s.q(ctx).Omit(clause.Associations).Create(t).Error)
}

func (s *GormStore) SaveTransaction(ctx context.Context, t *models.Transaction) error {
	return translate(s.q(ctx).Omit(clause.Associations).Save(t).Error)
}

// --- auth & settings ---

func (s *GormStore) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := s.q(ctx).Where("token_hash = ?", tokenHash).First(&rt).Error; err != nil {
		return nil, translate(err)
	}
	return &rt, nil
}

func (s *GormStore) CreateRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	return translate(s.q(ctx).Omit(clause.Associations).Create(rt).Error)
}

func (s *GormStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return s.q(ctx).Model(&models.RefreshToken{}).Where("token_hash = ?", tokenHash).Update("revoked", true).Error
}

func (s *GormStore) ListGameSettings(ctx context.Context) ([]models.GameSetting, error) {
	var settings []models.GameSetting
	err := s.q(ctx).Order("key").Find(&settings).Error
	return settings, err
}

func (s *GormStore) UpsertGameSetting(ctx context.Context, gs *models.GameSetting) error {
	return s.q(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(gs).Error
}

func (s *GormStore) DeleteGameSetting(ctx context.Context, key string) error {
	res := s.q(ctx).Where("key = ?", key).Delete(&models.GameSetting{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*GormStore)(nil)
