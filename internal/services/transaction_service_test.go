package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "10")
	q := env.seedQuest(t, nil)
	item := env.seedItem(t, nil)

	completeQuest(t, env, u, q)
	_, err := env.quests.ClaimRewards(ctx, u.ID, q.ID)
	require.NoError(t, err)
	_, err = env.market.PurchaseItem(ctx, u.ID, item.ID)
	require.NoError(t, err)
	createPayment(t, env, u, "1")

	sum, err := env.txs.Summary(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "7.50", sum.Balance.StringFixed(2))
	assert.Equal(t, "2.5", sum.TotalEarned.String())
	assert.Equal(t, "5", sum.TotalSpent.String())
	assert.Equal(t, int64(1), sum.EarningCount)
	assert.Equal(t, int64(1), sum.SpendingCount)
	assert.Len(t, sum.RecentActivity, 3)

	page, err := env.txs.History(ctx, u.ID, HistoryQuery{Status: models.TxPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, models.TxPiDeposit, page.Transactions[0].Type)
}

func TestDetailIsScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "10")
	other := env.seedUser(t, "0")
	item := env.seedItem(t, nil)

	res, err := env.market.PurchaseItem(ctx, u.ID, item.ID)
	require.NoError(t, err)

	detail, err := env.txs.Detail(ctx, u.ID, res.Transaction.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Item)
	assert.Equal(t, item.Name, detail.Item.Name)
	assert.Nil(t, detail.Quest)

	_, err = env.txs.Detail(ctx, other.ID, res.Transaction.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
