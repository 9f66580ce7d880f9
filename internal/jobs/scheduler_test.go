package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	calls     int
	olderThan time.Duration
	err       error
}

func (f *fakeReconciler) ReconcilePending(ctx context.Context, olderThan time.Duration) (services.ReconcileReport, error) {
	f.calls++
	f.olderThan = olderThan
	return services.ReconcileReport{Checked: 1, Completed: 1}, f.err
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler(Options{ReconcileSchedule: "every now and then"}, &fakeReconciler{}, nil)
	assert.Error(t, err)
}

func TestReconcileUsesConfiguredAge(t *testing.T) {
	rec := &fakeReconciler{}
	s, err := NewScheduler(Options{ReconcileSchedule: "@every 10m", ReconcileAfter: 15 * time.Minute}, rec, nil)
	require.NoError(t, err)

	s.reconcile()
	rec.err = errors.New("db down")
	s.reconcile()

	assert.Equal(t, 2, rec.calls)
	assert.Equal(t, 15*time.Minute, rec.olderThan)
}

func TestPurgeLogsCutoff(t *testing.T) {
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	var got time.Time
	purge := func(ctx context.Context, cutoff time.Time) (int64, error) {
		got = cutoff
		return 4, nil
	}

	s, err := NewScheduler(Options{ReconcileSchedule: "@every 10m", LogRetentionDays: 30}, &fakeReconciler{}, purge)
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	s.purgeLogs()
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(Options{ReconcileSchedule: "@every 1h"}, &fakeReconciler{}, nil)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
