package dto

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var itemSorts = []string{"name", "pi_price", "level_requirement", "created_at"}

type ItemQuery struct {
	Type     string `query:"type"`
	Rarity   string `query:"rarity"`
	MinLevel int    `query:"min_level"`
	MaxLevel int    `query:"max_level"`
	SortBy   string `query:"sort_by"`
	Page     int    `query:"page"`
	PerPage  int    `query:"per_page"`
}

func (q *ItemQuery) Validate() error {
	var v ValidationErrors
	if q.Type != "" && !oneOf(q.Type, models.ItemTypes) {
		v.Add("type must be one of " + strings.Join(models.ItemTypes, ", "))
	}
	if q.Rarity != "" && !oneOf(q.Rarity, models.ItemRarities) {
		v.Add("rarity must be one of " + strings.Join(models.ItemRarities, ", "))
	}
	if q.MinLevel < 0 || q.MaxLevel < 0 {
		v.Add("level filters must not be negative")
	}
	if q.MaxLevel > 0 && q.MinLevel > q.MaxLevel {
		v.Add("min_level must not exceed max_level")
	}
	if q.SortBy != "" && !oneOf(q.SortBy, itemSorts) {
		v.Add("sort_by must be one of " + strings.Join(itemSorts, ", "))
	}
	checkPage(&v, q.Page, q.PerPage)
	return v.Err()
}

type CreateItemRequest struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	ItemType         string          `json:"item_type"`
	Rarity           string          `json:"rarity"`
	Stats            map[string]any  `json:"stats"`
	PiPrice          decimal.Decimal `json:"pi_price"`
	IsTradeable      *bool           `json:"is_tradeable"`
	IsStackable      bool            `json:"is_stackable"`
	MaxStackSize     int             `json:"max_stack_size"`
	LevelRequirement int             `json:"level_requirement"`
	ImageURL         *string         `json:"image_url"`
	IsPremiumOnly    bool            `json:"is_premium_only"`
}

func (r *CreateItemRequest) Validate() error {
	var v ValidationErrors
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || len(r.Name) > 100 {
		v.Add("name is required and must be at most 100 characters")
	}
	if strings.TrimSpace(r.Description) == "" {
		v.Add("description is required")
	}
	if !oneOf(r.ItemType, models.ItemTypes) {
		v.Add("item_type must be one of " + strings.Join(models.ItemTypes, ", "))
	}
	if r.Rarity == "" {
		r.Rarity = "Common"
	}
	if !oneOf(r.Rarity, models.ItemRarities) {
		v.Add("rarity must be one of " + strings.Join(models.ItemRarities, ", "))
	}
	if r.PiPrice.IsNegative() {
		v.Add("pi_price must not be negative")
	}
	if !r.PiPrice.Equal(r.PiPrice.Round(2)) {
		v.Add("pi_price must have at most 2 decimal places")
	}
	if r.MaxStackSize == 0 {
		r.MaxStackSize = 1
	}
	if r.MaxStackSize < 1 {
		v.Add("max_stack_size must be at least 1")
	}
	if r.LevelRequirement == 0 {
		r.LevelRequirement = 1
	}
	if r.LevelRequirement < 1 {
		v.Add("level_requirement must be at least 1")
	}
	if r.ImageURL != nil && !validURL(*r.ImageURL) {
		v.Add("image_url must be an http(s) URL")
	}
	return v.Err()
}

func (r *CreateItemRequest) ToModel() *models.Item {
	tradeable := true
	if r.IsTradeable != nil {
		tradeable = *r.IsTradeable
	}
	stats := datatypes.JSONMap(r.Stats)
	if stats == nil {
		stats = datatypes.JSONMap{}
	}
	return &models.Item{
		Name:             r.Name,
		Description:      r.Description,
		ItemType:         r.ItemType,
		Rarity:           r.Rarity,
		Stats:            stats,
		PiPrice:          r.PiPrice,
		IsTradeable:      tradeable,
		IsStackable:      r.IsStackable,
		MaxStackSize:     r.MaxStackSize,
		LevelRequirement: r.LevelRequirement,
		ImageURL:         r.ImageURL,
		IsAvailable:      true,
		IsPremiumOnly:    r.IsPremiumOnly,
	}
}

type AvailabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
}

func (r *AvailabilityRequest) Validate() error {
	var v ValidationErrors
	if r.IsAvailable == nil {
		v.Add("is_available is required")
	}
	return v.Err()
}
