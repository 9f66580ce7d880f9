package pi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}, nil)
}

func TestMeSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/me", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"uid":"uid-123","username":"pioneer","credentials":{"scopes":["username","payments"]}}`))
	})

	info, err := c.Me(context.Background(), "user-token")
	require.NoError(t, err)
	assert.Equal(t, "uid-123", info.UID)
	assert.Equal(t, "pioneer", info.Username)
	assert.Equal(t, []string{"username", "payments"}, info.Credentials.Scopes)
}

func TestGetPaymentRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"identifier":"pay_1","amount":3.5,"status":{"developer_completed":true},"transaction":{"txid":"tx_abc","verified":true}}`))
	})

	p, err := c.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "pay_1", p.Identifier)
	assert.Equal(t, "3.5", p.Amount.String())
	assert.True(t, p.Status.DeveloperCompleted)
	assert.Equal(t, "tx_abc", p.TxID())
}

func TestGetPaymentGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GetPayment(context.Background(), "pay_1")
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"payment_not_found"}`))
	})

	_, err := c.GetPayment(context.Background(), "missing")
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
	assert.Contains(t, upErr.Body, "payment_not_found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMutationsAreSentOnce(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.CompletePayment(context.Background(), "pay_1", "tx_abc")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreatePaymentBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/payments", r.URL.Path)

		var body struct {
			Payment map[string]any `json:"payment"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 1.25, body.Payment["amount"])
		assert.Equal(t, "Deposit", body.Payment["memo"])
		assert.Equal(t, "uid-123", body.Payment["uid"])

		w.Write([]byte(`{"identifier":"pay_new","amount":1.25,"memo":"Deposit","status":{}}`))
	})

	p, err := c.CreatePayment(context.Background(), PaymentArgs{
		Amount:   json.Number("1.25"),
		Memo:     "Deposit",
		Metadata: map[string]any{"ref": "r1"},
		UID:      "uid-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_new", p.Identifier)
}

func TestCompleteSendsTxID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/payments/pay_1/complete", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tx_abc", body["txid"])
		w.Write([]byte(`{"identifier":"pay_1","status":{"developer_completed":true}}`))
	})

	p, err := c.CompletePayment(context.Background(), "pay_1", "tx_abc")
	require.NoError(t, err)
	assert.True(t, p.Status.DeveloperCompleted)
}

func TestIncompleteServerPayments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/payments/incomplete_server_payments", r.URL.Path)
		w.Write([]byte(`{"incomplete_server_payments":[{"identifier":"a","metadata":{"ref":"r1"}},{"identifier":"b","status":{"user_cancelled":true}}]}`))
	})

	ps, err := c.IncompleteServerPayments(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "r1", ps[0].Metadata["ref"])
	assert.True(t, ps[1].Cancelled())
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		cancel()
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetPayment(ctx, "pay_1")
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUndecodableSuccessIsAmbiguous(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>gateway</html>"))
	})

	_, err := c.CreatePayment(context.Background(), PaymentArgs{Amount: "1", Memo: "Deposit", UID: "uid-123"})
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusOK, upErr.StatusCode)
	assert.True(t, upErr.Ambiguous())
	assert.False(t, upErr.Temporary())
}

func TestUpstreamErrorAmbiguous(t *testing.T) {
	tests := []struct {
		name string
		err  UpstreamError
		want bool
	}{
		{"no response", UpstreamError{Err: errors.New("connection reset")}, true},
		{"bad body on success", UpstreamError{StatusCode: 201, Err: errors.New("decode")}, true},
		{"rejected", UpstreamError{StatusCode: 400, Body: "bad amount"}, false},
		{"server error", UpstreamError{StatusCode: 500}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Ambiguous())
		})
	}
}
