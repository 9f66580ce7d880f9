package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PiLoginRequest struct {
	AccessToken string `json:"access_token"`
}

func (r *PiLoginRequest) Validate() error {
	var v ValidationErrors
	if r.AccessToken == "" {
		v.Add("access_token is required")
	}
	return v.Err()
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r *RefreshRequest) Validate() error {
	var v ValidationErrors
	if r.RefreshToken == "" {
		v.Add("refresh_token is required")
	}
	return v.Err()
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r *LogoutRequest) Validate() error {
	var v ValidationErrors
	if r.RefreshToken == "" {
		v.Add("refresh_token is required")
	}
	return v.Err()
}

type AuthResponse struct {
	Success      bool         `json:"success"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	IsNewUser    bool         `json:"is_new_user"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID               uuid.UUID       `json:"id"`
	Username         string          `json:"username"`
	Email            *string         `json:"email,omitempty"`
	Role             string          `json:"role"`
	Level            int             `json:"level"`
	Experience       int64           `json:"experience"`
	Balance          decimal.Decimal `json:"pi_balance"`
	Health           int             `json:"health"`
	MaxHealth        int             `json:"max_health"`
	Mana             int             `json:"mana"`
	MaxMana          int             `json:"max_mana"`
	Attack           int             `json:"attack"`
	Defense          int             `json:"defense"`
	IsPremium        bool            `json:"is_premium"`
	PremiumExpiresAt *time.Time      `json:"premium_expires_at"`
	AvatarURL        *string         `json:"avatar_url"`
	AvatarUpgrades   map[string]any  `json:"avatar_upgrades"`
	LastActive       time.Time       `json:"last_active"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewUserResponse renders a user with premium evaluated at now.
func NewUserResponse(u *models.User, now time.Time) UserResponse {
	upgrades := map[string]any(u.AvatarUpgrades)
	if upgrades == nil {
		upgrades = map[string]any{}
	}
	return UserResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Role:             u.Role,
		Level:            u.Level,
		Experience:       u.Experience,
		Balance:          u.Balance,
		Health:           u.Health,
		MaxHealth:        u.MaxHealth,
		Mana:             u.Mana,
		MaxMana:          u.MaxMana,
		Attack:           u.Attack,
		Defense:          u.Defense,
		IsPremium:        u.PremiumActive(now),
		PremiumExpiresAt: u.PremiumExpiresAt,
		AvatarURL:        u.AvatarURL,
		AvatarUpgrades:   upgrades,
		LastActive:       u.LastActive,
		CreatedAt:        u.CreatedAt,
	}
}

// ErrorResponse is the error envelope. Error is a message or, for
// validation failures, a list of messages.
type ErrorResponse struct {
	Error any `json:"error"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
