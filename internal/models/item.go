package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var ItemTypes = []string{"weapon", "armor", "consumable", "material", "cosmetic"}

var ItemRarities = []string{"Common", "Uncommon", "Rare", "Epic", "Legendary"}

var rarityMultipliers = map[string]float64{
	"Common":    1.0,
	"Uncommon":  1.5,
	"Rare":      2.5,
	"Epic":      4.0,
	"Legendary": 8.0,
}

// Item is marketplace reference data.
type Item struct {
	ID               uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name             string            `gorm:"size:100;not null" json:"name"`
	Description      string            `gorm:"type:text;not null" json:"description"`
	ItemType         string            `gorm:"size:20;not null;index" json:"item_type"`
	Rarity           string            `gorm:"size:20;not null;default:'Common';index" json:"rarity"`
	Stats            datatypes.JSONMap `gorm:"type:jsonb;default:'{}'" json:"stats"`
	PiPrice          decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"pi_price"`
	IsTradeable      bool              `gorm:"not null" json:"is_tradeable"`
	IsStackable      bool              `gorm:"not null;default:false" json:"is_stackable"`
	MaxStackSize     int               `gorm:"not null;default:1" json:"max_stack_size"`
	LevelRequirement int               `gorm:"not null;default:1" json:"level_requirement"`
	ImageURL         *string           `gorm:"size:255" json:"image_url"`
	IsAvailable      bool              `gorm:"not null;index" json:"is_available"`
	IsPremiumOnly    bool              `gorm:"not null;default:false" json:"is_premium_only"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// MarketValue scales the list price by rarity.
func (i *Item) MarketValue() decimal.Decimal {
	m, ok := rarityMultipliers[i.Rarity]
	if !ok {
		m = 1.0
	}
	return i.PiPrice.Mul(decimal.NewFromFloat(m)).Round(2)
}

// InventoryItem is a stack of one item owned by a user.
type InventoryItem struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_user_item,priority:1" json:"user_id"`
	ItemID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_user_item,priority:2" json:"item_id"`
	Quantity   int       `gorm:"not null;default:1" json:"quantity"`
	AcquiredAt time.Time `json:"acquired_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	User       User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Item       Item      `gorm:"foreignKey:ItemID" json:"-"`
}
