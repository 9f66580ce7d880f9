package dto

import "github.com/shopspring/decimal"

var maxPaymentAmount = decimal.NewFromInt(10000)

type CreatePaymentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Memo     string          `json:"memo"`
	Metadata map[string]any  `json:"metadata"`
}

func (r *CreatePaymentRequest) Validate() error {
	var v ValidationErrors
	if !r.Amount.IsPositive() {
		v.Add("amount must be greater than 0")
	}
	if r.Amount.GreaterThan(maxPaymentAmount) {
		v.Add("amount must not exceed 10000")
	}
	if !r.Amount.Equal(r.Amount.Round(2)) {
		v.Add("amount must have at most 2 decimal places")
	}
	if r.Memo == "" {
		r.Memo = "Palace of Quests deposit"
	}
	if len(r.Memo) > 255 {
		v.Add("memo must be at most 255 characters")
	}
	return v.Err()
}

type CompletePaymentRequest struct {
	TxID string `json:"txid"`
}

func (r *CompletePaymentRequest) Validate() error {
	var v ValidationErrors
	if r.TxID == "" {
		v.Add("txid is required")
	}
	if len(r.TxID) > 255 {
		v.Add("txid must be at most 255 characters")
	}
	return v.Err()
}
