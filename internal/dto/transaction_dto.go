package dto

import "github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"

type HistoryQuery struct {
	Type    string `query:"type"`
	Status  string `query:"status"`
	Days    int    `query:"days"`
	Page    int    `query:"page"`
	PerPage int    `query:"per_page"`
}

func (q *HistoryQuery) Validate() error {
	var v ValidationErrors
	if q.Type != "" {
		valid := false
		for _, t := range models.TransactionTypes {
			if string(t) == q.Type {
				valid = true
			}
		}
		if !valid {
			v.Add("type is not a known transaction type")
		}
	}
	switch models.TransactionStatus(q.Status) {
	case "", models.TxPending, models.TxCompleted, models.TxFailed, models.TxCancelled:
	default:
		v.Add("status must be one of pending, completed, failed, cancelled")
	}
	if q.Days < 0 || q.Days > 365 {
		v.Add("days must be between 0 and 365")
	}
	checkPage(&v, q.Page, q.PerPage)
	return v.Err()
}
