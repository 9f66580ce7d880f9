package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	TxQuestReward         TransactionType = "quest_reward"
	TxItemPurchase        TransactionType = "item_purchase"
	TxPremiumSubscription TransactionType = "premium_subscription"
	TxPiDeposit           TransactionType = "pi_deposit"
	TxMarketplaceSale     TransactionType = "marketplace_sale"
	TxMarketplacePurchase TransactionType = "marketplace_purchase"
)

var TransactionTypes = []TransactionType{
	TxQuestReward, TxItemPurchase, TxPremiumSubscription,
	TxPiDeposit, TxMarketplaceSale, TxMarketplacePurchase,
}

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

// Transaction is an append-only ledger entry. A pending row moves to exactly
// one terminal status and is never edited afterwards.
type Transaction struct {
	ID             uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID         uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Type           TransactionType   `gorm:"column:transaction_type;size:30;not null;index" json:"transaction_type"`
	PiPaymentID    *string           `gorm:"size:100;uniqueIndex" json:"pi_payment_id"`
	PiTxID         *string           `gorm:"column:pi_transaction_hash;size:255" json:"pi_transaction_hash"`
	Amount         decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency       string            `gorm:"size:10;not null;default:'PI'" json:"currency"`
	Status         TransactionStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	RelatedQuestID *uuid.UUID        `gorm:"type:uuid" json:"related_quest_id"`
	RelatedItemID  *uuid.UUID        `gorm:"type:uuid" json:"related_item_id"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	Description    string            `gorm:"size:255" json:"description"`
	CreatedAt      time.Time         `gorm:"index" json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	User           User              `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (t *Transaction) IsTerminal() bool {
	return t.Status != TxPending
}
