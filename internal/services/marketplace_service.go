package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var featuredRarities = []string{"Rare", "Epic", "Legendary"}

const featuredLimit = 10

type MarketplaceService struct {
	store   store.Store
	economy *EconomyService
	now     func() time.Time
}

func NewMarketplaceService(st store.Store, economy *EconomyService) *MarketplaceService {
	return &MarketplaceService{store: st, economy: economy, now: time.Now}
}

// ItemView is a catalogue entry annotated for one buyer.
type ItemView struct {
	models.Item
	MarketValue           decimal.Decimal `json:"market_value"`
	CanAfford             bool            `json:"can_afford"`
	MeetsLevelRequirement bool            `json:"meets_level_requirement"`
	CanPurchase           bool            `json:"can_purchase"`
}

type ItemPage struct {
	Items []ItemView
	Total int64
}

type PurchaseResult struct {
	Item        *models.Item
	Transaction *models.Transaction
	NewBalance  decimal.Decimal
}

type Categories struct {
	ItemTypes []string `json:"item_types"`
	Rarities  []string `json:"rarities"`
}

func (s *MarketplaceService) ListItems(ctx context.Context, userID uuid.UUID, filter store.ItemFilter) (*ItemPage, error) {
	user, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	premium := user.PremiumActive(s.now())
	filter.IncludePremium = premium

	items, total, err := s.store.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		v := ItemView{
			Item:                  item,
			MarketValue:           item.MarketValue(),
			CanAfford:             s.economy.CanAfford(user, item.PiPrice),
			MeetsLevelRequirement: user.Level >= item.LevelRequirement,
		}
		v.CanPurchase = v.CanAfford && v.MeetsLevelRequirement && (!item.IsPremiumOnly || premium)
		views = append(views, v)
	}
	return &ItemPage{Items: views, Total: total}, nil
}

// PurchaseItem checks and debits under the user's row lock, so two
// concurrent purchases cannot overdraw the balance.
func (s *MarketplaceService) PurchaseItem(ctx context.Context, userID, itemID uuid.UUID) (*PurchaseResult, error) {
	now := s.now()
	var res PurchaseResult

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, itemID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}

		switch {
		case !item.IsAvailable:
			return ErrItemUnavailable
		case user.Level < item.LevelRequirement:
			return ErrLevelTooLow
		case item.IsPremiumOnly && !user.PremiumActive(now):
			return ErrPremiumRequired
		case !s.economy.CanAfford(user, item.PiPrice):
			return ErrInsufficientFunds
		}

		if item.PiPrice.IsPositive() {
			if err := s.economy.ApplyDebit(user, item.PiPrice); err != nil {
				return err
			}
			if err := tx.SaveUser(ctx, user); err != nil {
				return err
			}
		}
		if err := tx.AddInventoryItem(ctx, userID, itemID, 1); err != nil {
			return err
		}

		txn := &models.Transaction{
			ID:            uuid.New(),
			UserID:        userID,
			Type:          models.TxItemPurchase,
			Amount:        item.PiPrice,
			Currency:      "PI",
			Status:        models.TxCompleted,
			RelatedItemID: &itemID,
			Metadata: datatypes.JSONMap{
				"item_name": item.Name,
				"rarity":    item.Rarity,
			},
			Description: "Purchased " + item.Name,
			CreatedAt:   now,
			CompletedAt: &now,
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		res = PurchaseResult{Item: item, Transaction: txn, NewBalance: user.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("item purchased",
		"user_id", userID.String(),
		"item_id", itemID.String(),
		"price", res.Item.PiPrice.String(),
	)
	return &res, nil
}

func (s *MarketplaceService) Categories(ctx context.Context) (*Categories, error) {
	types, rarities, err := s.store.ItemCategories(ctx)
	if err != nil {
		return nil, err
	}
	return &Categories{ItemTypes: types, Rarities: rarities}, nil
}

// Featured returns the priciest available high-rarity items.
func (s *MarketplaceService) Featured(ctx context.Context) ([]models.Item, error) {
	return s.store.ListItemsByRarity(ctx, featuredRarities, "pi_price DESC", featuredLimit)
}

func (s *MarketplaceService) Inventory(ctx context.Context, userID uuid.UUID) ([]models.InventoryItem, error) {
	return s.store.ListInventory(ctx, userID)
}

func (s *MarketplaceService) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return s.store.CreateItem(ctx, item)
}

func (s *MarketplaceService) SetAvailability(ctx context.Context, itemID uuid.UUID, available bool) error {
	err := s.store.SetItemAvailable(ctx, itemID, available)
	if errors.Is(err, store.ErrNotFound) {
		return ErrItemNotFound
	}
	return err
}
