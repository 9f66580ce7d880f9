package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

// User is a Palace of Quests player, identified by their Pi Network uid.
// Rows are soft-deleted only.
type User struct {
	ID               uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PiUserID         string            `gorm:"size:100;not null;uniqueIndex" json:"-"`
	Username         string            `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email            *string           `gorm:"size:120" json:"email,omitempty"`
	Role             string            `gorm:"size:20;default:'player'" json:"role"`
	Level            int               `gorm:"not null;default:1;check:chk_users_level,level >= 1" json:"level"`
	Experience       int64             `gorm:"not null;default:0;check:chk_users_experience,experience >= 0" json:"experience"`
	Balance          decimal.Decimal   `gorm:"column:pi_balance;type:numeric(12,2);not null;default:0;check:chk_users_balance,pi_balance >= 0" json:"pi_balance"`
	Health           int               `gorm:"not null" json:"health"`
	MaxHealth        int               `gorm:"not null;default:100" json:"max_health"`
	Mana             int               `gorm:"not null" json:"mana"`
	MaxMana          int               `gorm:"not null;default:50" json:"max_mana"`
	Attack           int               `gorm:"not null;default:10" json:"attack"`
	Defense          int               `gorm:"not null;default:5" json:"defense"`
	IsPremium        bool              `gorm:"not null;default:false" json:"is_premium"`
	PremiumExpiresAt *time.Time        `json:"premium_expires_at"`
	AvatarURL        *string           `gorm:"size:255" json:"avatar_url"`
	AvatarUpgrades   datatypes.JSONMap `gorm:"type:jsonb;default:'{}'" json:"avatar_upgrades"`
	LastActive       time.Time         `json:"last_active"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	DeletedAt        gorm.DeletedAt    `gorm:"index" json:"-"`
}

// NewUser returns a level 1 player with the default stat block.
func NewUser(piUserID, username string, balance decimal.Decimal, now time.Time) *User {
	return &User{
		ID:             uuid.New(),
		PiUserID:       piUserID,
		Username:       username,
		Role:           RolePlayer,
		Level:          1,
		Balance:        balance,
		Health:         100,
		MaxHealth:      100,
		Mana:           50,
		MaxMana:        50,
		Attack:         10,
		Defense:        5,
		AvatarUpgrades: datatypes.JSONMap{},
		LastActive:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// PremiumActive reports whether the premium flag is set and not yet expired.
func (u *User) PremiumActive(now time.Time) bool {
	if !u.IsPremium {
		return false
	}
	return u.PremiumExpiresAt == nil || now.Before(*u.PremiumExpiresAt)
}
