package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/pi"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const reconcileBatch = 100

// PiGateway is the subset of the Pi platform API the payment flow needs.
type PiGateway interface {
	CreatePayment(ctx context.Context, args pi.PaymentArgs) (*pi.Payment, error)
	ApprovePayment(ctx context.Context, paymentID string) (*pi.Payment, error)
	CompletePayment(ctx context.Context, paymentID, txid string) (*pi.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*pi.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*pi.Payment, error)
	IncompleteServerPayments(ctx context.Context) ([]pi.Payment, error)
}

// PaymentService drives the Pi payment lifecycle against the ledger. Provider
// calls are made outside any store transaction; the local mutation is applied
// afterwards, keyed by the payment id.
type PaymentService struct {
	store   store.Store
	economy *EconomyService
	pi      PiGateway
	now     func() time.Time
}

func NewPaymentService(st store.Store, economy *EconomyService, gateway PiGateway) *PaymentService {
	return &PaymentService{store: st, economy: economy, pi: gateway, now: time.Now}
}

type CreatePaymentInput struct {
	Amount   decimal.Decimal
	Memo     string
	Metadata map[string]any
}

type CompletionResult struct {
	Transaction *models.Transaction
	User        *models.User
	Cached      bool
}

type PaymentView struct {
	Transaction *models.Transaction
	Provider    *pi.Payment
}

type ReconcileReport struct {
	Checked   int
	Completed int
	Cancelled int
	Errors    int
}

func (s *PaymentService) CreatePayment(ctx context.Context, userID uuid.UUID, in CreatePaymentInput) (*models.Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, invalid("amount must be positive")
	}
	user, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	ref := uuid.NewString()
	meta := make(map[string]any, len(in.Metadata)+2)
	for k, v := range in.Metadata {
		meta[k] = v
	}
	meta["ref"] = ref
	meta["user_id"] = userID.String()

	payment, err := s.pi.CreatePayment(ctx, pi.PaymentArgs{
		Amount:   json.Number(in.Amount.String()),
		Memo:     in.Memo,
		Metadata: meta,
		UID:      user.PiUserID,
	})
	if err != nil {
		var upErr *pi.UpstreamError
		if errors.As(err, &upErr) && upErr.Ambiguous() {
			payment = s.findByRef(ctx, ref)
		}
		if payment == nil {
			return nil, s.upstreamFailure(ctx, "create_payment", "", userID, err)
		}
		slog.Warn("recovered payment after ambiguous create", "payment_id", payment.Identifier, "user_id", userID.String())
	}

	paymentID := payment.Identifier
	txn := &models.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        models.TxPiDeposit,
		PiPaymentID: &paymentID,
		Amount:      in.Amount,
		Currency:    "PI",
		Status:      models.TxPending,
		Metadata:    datatypes.JSONMap(meta),
		Description: in.Memo,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicatePayment
		}
		return nil, err
	}

	slog.Info("payment created", "payment_id", paymentID, "user_id", userID.String(), "amount", in.Amount.String())
	return txn, nil
}

// findByRef looks for a payment we may have created before losing the
// response.
func (s *PaymentService) findByRef(ctx context.Context, ref string) *pi.Payment {
	payments, err := s.pi.IncompleteServerPayments(ctx)
	if err != nil {
		slog.Warn("incomplete payment lookup failed", "error", err.Error())
		return nil
	}
	for i := range payments {
		if r, _ := payments[i].Metadata["ref"].(string); r == ref {
			return &payments[i]
		}
	}
	return nil
}

func (s *PaymentService) ApprovePayment(ctx context.Context, userID uuid.UUID, paymentID string) (*models.Transaction, error) {
	txn, err := s.ownedPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if txn.Status != models.TxPending {
		return nil, ErrInvalidState
	}
	if _, err := s.pi.ApprovePayment(ctx, paymentID); err != nil {
		return nil, s.upstreamFailure(ctx, "approve_payment", paymentID, userID, err)
	}

	slog.Info("payment approved", "payment_id", paymentID, "user_id", userID.String())
	return txn, nil
}

// CompletePayment credits the user exactly once per payment id. A replay for
// a completed payment returns the stored result with Cached set. A zero
// userID skips the ownership check, for the reconciler.
func (s *PaymentService) CompletePayment(ctx context.Context, userID uuid.UUID, paymentID, txid string) (*CompletionResult, error) {
	if txid == "" {
		return nil, invalid("txid is required")
	}
	txn, err := s.ownedPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	switch txn.Status {
	case models.TxCompleted:
		return s.cached(ctx, txn)
	case models.TxPending:
	default:
		return nil, ErrInvalidState
	}

	if _, err := s.pi.CompletePayment(ctx, paymentID, txid); err != nil {
		confirmed, verr := s.pi.GetPayment(ctx, paymentID)
		switch {
		case verr == nil && confirmed.Status.DeveloperCompleted:
			slog.Warn("complete call failed but payment is completed upstream", "payment_id", paymentID, "error", err.Error())
		case verr == nil && confirmed.Cancelled():
			return nil, ErrInvalidState
		default:
			return nil, s.upstreamFailure(ctx, "complete_payment", paymentID, txn.UserID, err)
		}
	}

	return s.finalize(ctx, txn.UserID, paymentID, txid)
}

func (s *PaymentService) finalize(ctx context.Context, userID uuid.UUID, paymentID, txid string) (*CompletionResult, error) {
	now := s.now()
	var res CompletionResult

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		txn, err := tx.LockTransactionByPaymentID(ctx, paymentID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return err
		}

		switch txn.Status {
		case models.TxCompleted:
			res = CompletionResult{Transaction: txn, User: user, Cached: true}
			return nil
		case models.TxPending:
		default:
			return ErrInvalidState
		}

		if err := s.economy.ApplyCredit(user, txn.Amount); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}

		txn.Status = models.TxCompleted
		txn.PiTxID = &txid
		txn.CompletedAt = &now
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		res = CompletionResult{Transaction: txn, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.Cached {
		slog.Info("payment completed",
			"payment_id", paymentID,
			"user_id", userID.String(),
			"amount", res.Transaction.Amount.String(),
			"new_balance", res.User.Balance.String(),
		)
	}
	return &res, nil
}

func (s *PaymentService) cached(ctx context.Context, txn *models.Transaction) (*CompletionResult, error) {
	user, err := getUser(ctx, s.store, txn.UserID)
	if err != nil {
		return nil, err
	}
	return &CompletionResult{Transaction: txn, User: user, Cached: true}, nil
}

func (s *PaymentService) CancelPayment(ctx context.Context, userID uuid.UUID, paymentID string) (*models.Transaction, error) {
	txn, err := s.ownedPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if txn.Status != models.TxPending {
		return nil, ErrInvalidState
	}

	if _, err := s.pi.CancelPayment(ctx, paymentID); err != nil {
		confirmed, verr := s.pi.GetPayment(ctx, paymentID)
		if verr != nil || !confirmed.Cancelled() {
			return nil, s.upstreamFailure(ctx, "cancel_payment", paymentID, txn.UserID, err)
		}
	}

	out, err := s.markCancelled(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	slog.Info("payment cancelled", "payment_id", paymentID, "user_id", txn.UserID.String())
	return out, nil
}

func (s *PaymentService) markCancelled(ctx context.Context, paymentID string) (*models.Transaction, error) {
	now := s.now()
	var out *models.Transaction
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		txn, err := tx.LockTransactionByPaymentID(ctx, paymentID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return err
		}
		if txn.Status != models.TxPending {
			return ErrInvalidState
		}
		txn.Status = models.TxCancelled
		txn.CompletedAt = &now
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			return err
		}
		out = txn
		return nil
	})
	return out, err
}

// GetPayment returns the local row and, when reachable, the provider's view.
func (s *PaymentService) GetPayment(ctx context.Context, userID uuid.UUID, paymentID string) (*PaymentView, error) {
	txn, err := s.ownedPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	view := &PaymentView{Transaction: txn}
	if p, err := s.pi.GetPayment(ctx, paymentID); err != nil {
		slog.Warn("provider payment lookup failed", "payment_id", paymentID, "error", err.Error())
	} else {
		view.Provider = p
	}
	return view, nil
}

// ReconcilePending settles pending payments older than olderThan from the
// provider's record. Per-payment failures are counted and left for the next
// run.
func (s *PaymentService) ReconcilePending(ctx context.Context, olderThan time.Duration) (ReconcileReport, error) {
	var report ReconcileReport
	pending, err := s.store.ListPendingPayments(ctx, s.now().Add(-olderThan), reconcileBatch)
	if err != nil {
		return report, err
	}

	for _, txn := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++
		paymentID := *txn.PiPaymentID

		p, err := s.pi.GetPayment(ctx, paymentID)
		if err != nil {
			report.Errors++
			slog.Warn("reconcile lookup failed", "payment_id", paymentID, "error", err.Error())
			continue
		}

		switch {
		case p.Cancelled():
			if _, err := s.markCancelled(ctx, paymentID); err != nil {
				report.Errors++
				slog.Error("reconcile cancel failed", "payment_id", paymentID, "error", err.Error())
				continue
			}
			report.Cancelled++
		case p.Status.DeveloperCompleted && p.TxID() != "":
			if _, err := s.finalize(ctx, txn.UserID, paymentID, p.TxID()); err != nil {
				report.Errors++
				slog.Error("reconcile finalize failed", "payment_id", paymentID, "error", err.Error())
				continue
			}
			report.Completed++
		case p.Status.TransactionVerified && p.TxID() != "":
			if _, err := s.CompletePayment(ctx, uuid.Nil, paymentID, p.TxID()); err != nil {
				report.Errors++
				slog.Error("reconcile complete failed", "payment_id", paymentID, "error", err.Error())
				continue
			}
			report.Completed++
		}
	}
	return report, nil
}

func (s *PaymentService) ownedPayment(ctx context.Context, userID uuid.UUID, paymentID string) (*models.Transaction, error) {
	txn, err := s.store.GetTransactionByPaymentID(ctx, paymentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if userID != uuid.Nil && txn.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return txn, nil
}

func (s *PaymentService) upstreamFailure(ctx context.Context, op, paymentID string, userID uuid.UUID, err error) error {
	slog.Error("pi api call failed",
		"action", op,
		"payment_id", paymentID,
		"user_id", userID.String(),
		"error", err.Error(),
	)
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("action", op)
		if paymentID != "" {
			scope.SetTag("payment_id", paymentID)
		}
		hub.CaptureException(err)
	})
	return upstream(op, err)
}
