package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	rows []models.SystemLog
}

func (r *recorder) write(batch []models.SystemLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, batch...)
	return nil
}

func (r *recorder) snapshot() []models.SystemLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SystemLog(nil), r.rows...)
}

func TestPGHandlerLiftsKnownAttrs(t *testing.T) {
	rec := &recorder{}
	h := newPGHandler(rec.write, time.Hour)
	logger := slog.New(h).With("request_id", "req-1")

	logger.Info("not persisted")
	logger.Error("payment completion failed",
		"user_id", "u-1",
		"payment_id", "pay_9",
		"action", "complete_payment",
		"error", "timeout",
		"attempt", 3,
	)
	h.Stop()

	rows := rec.snapshot()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "ERROR", row.Level)
	assert.Equal(t, "payment completion failed", row.Message)
	assert.Equal(t, "req-1", row.RequestID)
	assert.Equal(t, "u-1", *row.UserID)
	assert.Equal(t, "pay_9", *row.PaymentID)
	assert.Equal(t, "complete_payment", row.Action)
	assert.Equal(t, "timeout", row.Error)

	var extra map[string]any
	require.NoError(t, json.Unmarshal(row.Extra, &extra))
	assert.Equal(t, float64(3), extra["attempt"])
}

func TestPGHandlerFlushesFullBatch(t *testing.T) {
	rec := &recorder{}
	h := newPGHandler(rec.write, time.Hour)
	logger := slog.New(h)

	for i := 0; i < batchSize; i++ {
		logger.Error("boom")
	}
	assert.Eventually(t, func() bool { return len(rec.snapshot()) == batchSize }, time.Second, 10*time.Millisecond)
	h.Stop()
}

func TestMultiHandlerFansOut(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{}
	pg := newPGHandler(rec.write, time.Hour)
	logger := slog.New(NewMultiHandler(NewJSONHandler(&buf), pg))

	logger.Info("hello")
	logger.Error("bad", "user_id", "u-2")
	pg.Stop()

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"msg":"bad"`)
	rows := rec.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "u-2", *rows[0].UserID)
}
