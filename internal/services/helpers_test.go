package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/pi"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store/storetest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type testEnv struct {
	store    *storetest.Store
	game     config.Game
	clock    *clock
	pi       *fakePi
	economy  *EconomyService
	quests   *QuestService
	payments *PaymentService
	market   *MarketplaceService
	users    *UserService
	txs      *TransactionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := storetest.New()
	game := config.DefaultGame()
	clk := &clock{now: t0}
	fp := newFakePi()

	economy := NewEconomyService(st, game)
	env := &testEnv{
		store:    st,
		game:     game,
		clock:    clk,
		pi:       fp,
		economy:  economy,
		quests:   NewQuestService(st, economy, game),
		payments: NewPaymentService(st, economy, fp),
		market:   NewMarketplaceService(st, economy),
		users:    NewUserService(st, economy, game),
		txs:      NewTransactionService(st),
	}
	env.quests.now = clk.Now
	env.payments.now = clk.Now
	env.market.now = clk.Now
	env.users.now = clk.Now
	env.txs.now = clk.Now
	return env
}

func (e *testEnv) seedUser(t *testing.T, balance string) *models.User {
	t.Helper()
	id := uuid.New()
	u := models.NewUser("pi-"+id.String(), "user_"+id.String()[:8], decimal.RequireFromString(balance), e.clock.Now())
	u.ID = id
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) seedQuest(t *testing.T, mutate func(q *models.Quest)) *models.Quest {
	t.Helper()
	q := &models.Quest{
		ID:               uuid.New(),
		Title:            "Slay the rats",
		Description:      "Clear the cellar",
		Difficulty:       "Easy",
		QuestType:        "combat",
		LevelRequirement: 1,
		PiReward:         decimal.RequireFromString("2.5"),
		ExperienceReward: 1000,
		Objectives:       datatypes.JSONSlice[string]{"kill 3 rats"},
		MaxProgress:      3,
		IsActive:         true,
	}
	if mutate != nil {
		mutate(q)
	}
	require.NoError(t, e.store.CreateQuest(context.Background(), q))
	return q
}

func (e *testEnv) seedItem(t *testing.T, mutate func(i *models.Item)) *models.Item {
	t.Helper()
	i := &models.Item{
		ID:               uuid.New(),
		Name:             "Iron Sword",
		Description:      "Sharp",
		ItemType:         "weapon",
		Rarity:           "Common",
		Stats:            datatypes.JSONMap{"attack": 5},
		PiPrice:          decimal.NewFromInt(5),
		MaxStackSize:     1,
		LevelRequirement: 1,
		IsAvailable:      true,
	}
	if mutate != nil {
		mutate(i)
	}
	require.NoError(t, e.store.CreateItem(context.Background(), i))
	return i
}

func (e *testEnv) balance(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance.StringFixed(2)
}

// fakePi is an in-memory Pi platform.
type fakePi struct {
	mu       sync.Mutex
	seq      int
	payments map[string]*pi.Payment
	users    map[string]*pi.UserInfo

	createErr     error
	createLost    bool
	createBadBody bool
	completeErr   error
	cancelErr     error
	getErr        error

	meCalls       int
	completeCalls int
}

func newFakePi() *fakePi {
	return &fakePi{payments: map[string]*pi.Payment{}, users: map[string]*pi.UserInfo{}}
}

func (f *fakePi) CreatePayment(ctx context.Context, args pi.PaymentArgs) (*pi.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	p := &pi.Payment{
		Identifier: fmt.Sprintf("pay_%d", f.seq),
		UserUID:    args.UID,
		Amount:     args.Amount,
		Memo:       args.Memo,
		Metadata:   args.Metadata,
	}
	f.payments[p.Identifier] = p
	if f.createLost {
		return nil, &pi.UpstreamError{Op: "create_payment", Err: errors.New("connection reset by peer")}
	}
	if f.createBadBody {
		return nil, &pi.UpstreamError{Op: "create_payment", StatusCode: http.StatusOK, Body: "<html>", Err: errors.New("decode: invalid character '<'")}
	}
	cp := *p
	return &cp, nil
}

func (f *fakePi) ApprovePayment(ctx context.Context, id string) (*pi.Payment, error) {
	return f.mutate(id, nil, func(p *pi.Payment) { p.Status.DeveloperApproved = true })
}

func (f *fakePi) CompletePayment(ctx context.Context, id, txid string) (*pi.Payment, error) {
	f.mu.Lock()
	f.completeCalls++
	err := f.completeErr
	f.mu.Unlock()
	return f.mutate(id, err, func(p *pi.Payment) {
		p.Status.DeveloperCompleted = true
		p.Transaction = &pi.PaymentTransaction{TxID: txid, Verified: true}
	})
}

func (f *fakePi) CancelPayment(ctx context.Context, id string) (*pi.Payment, error) {
	return f.mutate(id, f.cancelErr, func(p *pi.Payment) { p.Status.Cancelled = true })
}

func (f *fakePi) GetPayment(ctx context.Context, id string) (*pi.Payment, error) {
	return f.mutate(id, f.getErr, func(*pi.Payment) {})
}

func (f *fakePi) IncompleteServerPayments(ctx context.Context) ([]pi.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pi.Payment
	for _, p := range f.payments {
		if !p.Status.DeveloperCompleted && !p.Cancelled() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePi) Me(ctx context.Context, token string) (*pi.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	info, ok := f.users[token]
	if !ok {
		return nil, &pi.UpstreamError{Op: "me", StatusCode: http.StatusUnauthorized}
	}
	cp := *info
	return &cp, nil
}

func (f *fakePi) mutate(id string, failWith error, fn func(*pi.Payment)) (*pi.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if failWith != nil {
		return nil, failWith
	}
	p, ok := f.payments[id]
	if !ok {
		return nil, &pi.UpstreamError{Op: "payment", StatusCode: http.StatusNotFound}
	}
	fn(p)
	cp := *p
	return &cp, nil
}

// setPayment lets a test change what Pi reports for a payment.
func (f *fakePi) setPayment(id string, fn func(*pi.Payment)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.payments[id])
}
