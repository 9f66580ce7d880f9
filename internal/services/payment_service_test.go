package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/pi"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPayment(t *testing.T, env *testEnv, u *models.User, amount string) *models.Transaction {
	t.Helper()
	txn, err := env.payments.CreatePayment(context.Background(), u.ID, CreatePaymentInput{
		Amount: decimal.RequireFromString(amount),
		Memo:   "Deposit",
	})
	require.NoError(t, err)
	return txn
}

func TestCreatePaymentRecordsPending(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "0")

	txn := createPayment(t, env, u, "3.14")
	require.NotNil(t, txn.PiPaymentID)
	assert.Equal(t, "pay_1", *txn.PiPaymentID)
	assert.Equal(t, models.TxPending, txn.Status)
	assert.Equal(t, models.TxPiDeposit, txn.Type)
	assert.NotEmpty(t, txn.Metadata["ref"])
	assert.Equal(t, "0.00", env.balance(t, u.ID))
}

func TestCreatePaymentValidatesAmount(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "0")

	_, err := env.payments.CreatePayment(context.Background(), u.ID, CreatePaymentInput{Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreatePaymentUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "0")
	env.pi.createErr = &pi.UpstreamError{Op: "create_payment", StatusCode: http.StatusBadRequest, Body: "bad"}

	_, err := env.payments.CreatePayment(context.Background(), u.ID, CreatePaymentInput{Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrUpstream)

	var upErr *pi.UpstreamError
	assert.True(t, errors.As(err, &upErr))
}

func TestCreatePaymentRecoversLostResponse(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "0")
	env.pi.createLost = true

	txn := createPayment(t, env, u, "2")
	assert.Equal(t, "pay_1", *txn.PiPaymentID)
}

func TestCreatePaymentRecoversUndecodableResponse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "0")
	env.pi.createBadBody = true

	txn := createPayment(t, env, u, "3")
	assert.Equal(t, "pay_1", *txn.PiPaymentID)

	stored, err := env.store.GetTransactionByPaymentID(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, stored.Status)
	assert.Equal(t, u.ID, stored.UserID)
}

func TestCompletePaymentCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "1")
	txn := createPayment(t, env, u, "5")

	_, err := env.payments.ApprovePayment(ctx, u.ID, *txn.PiPaymentID)
	require.NoError(t, err)

	res, err := env.payments.CompletePayment(ctx, u.ID, *txn.PiPaymentID, "tx_abc")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, models.TxCompleted, res.Transaction.Status)
	assert.Equal(t, "tx_abc", *res.Transaction.PiTxID)
	assert.Equal(t, "6.00", res.User.Balance.StringFixed(2))

	again, err := env.payments.CompletePayment(ctx, u.ID, *txn.PiPaymentID, "tx_abc")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, models.TxCompleted, again.Transaction.Status)
	assert.Equal(t, "6.00", env.balance(t, u.ID))
	assert.Equal(t, 1, env.pi.completeCalls)
}

func TestCompletePaymentVerifiesAfterUpstreamError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "0")
	txn := createPayment(t, env, u, "2")

	env.pi.setPayment(*txn.PiPaymentID, func(p *pi.Payment) {
		p.Status.DeveloperCompleted = true
		p.Transaction = &pi.PaymentTransaction{TxID: "tx_1"}
	})
	env.pi.completeErr = &pi.UpstreamError{Op: "complete_payment", Err: errors.New("timeout")}

	res, err := env.payments.CompletePayment(ctx, u.ID, *txn.PiPaymentID, "tx_1")
	require.NoError(t, err)
	assert.Equal(t, "2.00", res.User.Balance.StringFixed(2))
}

func TestCompletePaymentUpstreamFailureLeavesPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "0")
	txn := createPayment(t, env, u, "2")
	env.pi.completeErr = &pi.UpstreamError{Op: "complete_payment", StatusCode: http.StatusBadGateway}

	_, err := env.payments.CompletePayment(ctx, u.ID, *txn.PiPaymentID, "tx_1")
	assert.ErrorIs(t, err, ErrUpstream)

	got, err := env.store.GetTransactionByPaymentID(ctx, *txn.PiPaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, got.Status)
	assert.Equal(t, "0.00", env.balance(t, u.ID))
}

func TestCompletePaymentErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "0")
	other := env.seedUser(t, "0")
	txn := createPayment(t, env, u, "2")

	_, err := env.payments.CompletePayment(ctx, u.ID, "pay_missing", "tx")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = env.payments.CompletePayment(ctx, other.ID, *txn.PiPaymentID, "tx")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = env.payments.CompletePayment(ctx, u.ID, *txn.PiPaymentID, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCancelPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "0")
	txn := createPayment(t, env, u, "2")

	cancelled, err := env.payments.CancelPayment(ctx, u.ID, *txn.PiPaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.TxCancelled, cancelled.Status)

	_, err = env.payments.CancelPayment(ctx, u.ID, *txn.PiPaymentID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = env.payments.CompletePayment(ctx, u.ID, *txn.PiPaymentID, "tx")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "0.00", env.balance(t, u.ID))
}

func TestCancelCompletedPaymentFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "0")
	txn := createPayment(t, env, u, "2")
	_, err := env.payments.CompletePayment(ctx, u.ID, *txn.PiPaymentID, "tx")
	require.NoError(t, err)

	_, err = env.payments.CancelPayment(ctx, u.ID, *txn.PiPaymentID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "2.00", env.balance(t, u.ID))
}

func TestApproveRequiresPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "0")
	txn := createPayment(t, env, u, "2")
	_, err := env.payments.CancelPayment(ctx, u.ID, *txn.PiPaymentID)
	require.NoError(t, err)

	_, err = env.payments.ApprovePayment(ctx, u.ID, *txn.PiPaymentID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGetPaymentIncludesProviderView(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "0")
	txn := createPayment(t, env, u, "2")

	view, err := env.payments.GetPayment(ctx, u.ID, *txn.PiPaymentID)
	require.NoError(t, err)
	require.NotNil(t, view.Provider)
	assert.Equal(t, *txn.PiPaymentID, view.Provider.Identifier)

	env.pi.getErr = &pi.UpstreamError{Op: "get_payment", StatusCode: http.StatusServiceUnavailable}
	view, err = env.payments.GetPayment(ctx, u.ID, *txn.PiPaymentID)
	require.NoError(t, err)
	assert.Nil(t, view.Provider)
}

func TestReconcilePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "0")
	done := createPayment(t, env, u, "3")
	gone := createPayment(t, env, u, "4")
	verified := createPayment(t, env, u, "1")
	waiting := createPayment(t, env, u, "7")

	env.pi.setPayment(*done.PiPaymentID, func(p *pi.Payment) {
		p.Status.DeveloperCompleted = true
		p.Transaction = &pi.PaymentTransaction{TxID: "tx_done"}
	})
	env.pi.setPayment(*gone.PiPaymentID, func(p *pi.Payment) { p.Status.UserCancelled = true })
	env.pi.setPayment(*verified.PiPaymentID, func(p *pi.Payment) {
		p.Status.TransactionVerified = true
		p.Transaction = &pi.PaymentTransaction{TxID: "tx_verified"}
	})

	report, err := env.payments.ReconcilePending(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)

	env.clock.Set(t0.Add(time.Hour))
	report, err = env.payments.ReconcilePending(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 4, Completed: 2, Cancelled: 1}, report)
	assert.Equal(t, "4.00", env.balance(t, u.ID))

	got, err := env.store.GetTransactionByPaymentID(ctx, *waiting.PiPaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, got.Status)
	got, err = env.store.GetTransactionByPaymentID(ctx, *gone.PiPaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.TxCancelled, got.Status)
}

func TestCreatePaymentUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.payments.CreatePayment(context.Background(), uuid.New(), CreatePaymentInput{Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
