package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrUserNotFound        = errors.New("user not found")
	ErrQuestNotFound       = errors.New("quest not found")
	ErrQuestNotAccepted    = errors.New("quest not accepted")
	ErrItemNotFound        = errors.New("item not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrSettingNotFound     = errors.New("setting not found")

	ErrInsufficientFunds = errors.New("insufficient Pi balance")
	ErrLevelTooLow       = errors.New("level requirement not met")
	ErrPremiumRequired   = errors.New("premium membership required")
	ErrItemUnavailable   = errors.New("item is not available")
	ErrQuestInactive     = errors.New("quest is not active")
	ErrUsernameTaken     = errors.New("username already taken")

	ErrAlreadyClaimed        = errors.New("rewards already claimed")
	ErrNotCompleted          = errors.New("quest not completed")
	ErrQuestExpired          = errors.New("quest has expired")
	ErrQuestActive           = errors.New("quest already accepted")
	ErrQuestCooldown         = errors.New("quest is on cooldown")
	ErrQuestAlreadyCompleted = errors.New("quest already completed")
	ErrRewardsUnclaimed      = errors.New("claim the previous rewards first")
	ErrInvalidState          = errors.New("invalid state for this operation")
	ErrDuplicatePayment      = errors.New("payment already recorded")

	ErrAuthentication = errors.New("authentication failed")
	ErrInvalidToken   = errors.New("invalid or expired refresh token")

	ErrUpstream = errors.New("payment provider unavailable")
)

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
