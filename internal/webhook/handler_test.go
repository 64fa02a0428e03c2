package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sparewise/roundup-wallet/internal/payment"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/stretchr/testify/assert"
)

const testWebhookSecret = "whsec_test"

func newTestHandler(f *fixture) *Handler {
	cfg := config.Config{RazorpayWebhookSecret: testWebhookSecret}
	return NewHandler(cfg, f.reconciler, nil)
}

func postWebhook(h *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/webhooks/razorpay", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("x-razorpay-signature", signature)
	}
	rr := httptest.NewRecorder()
	h.RazorpayWebhook(rr, req)
	return rr
}

func TestRazorpayWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	f.addIntent(t, payment.IntentDeposit, 5000, "order_abc")
	h := newTestHandler(f)

	_, body := captureEvent("order_abc", 5000)

	rr := postWebhook(h, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = postWebhook(h, body, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	got, _ := f.store.GetWalletByID(context.Background(), f.wallet.ID.String())
	assert.Equal(t, int64(0), got.Balance)
}

func TestRazorpayWebhookCapture(t *testing.T) {
	f := newFixture(t)
	f.addIntent(t, payment.IntentDeposit, 5000, "order_abc")
	h := newTestHandler(f)

	_, body := captureEvent("order_abc", 5000)

	rr := postWebhook(h, body, signBody(testWebhookSecret, body))
	assert.Equal(t, http.StatusOK, rr.Code)

	got, _ := f.store.GetWalletByID(context.Background(), f.wallet.ID.String())
	assert.Equal(t, int64(5000), got.Balance)
}

// The gateway redelivers on anything but 200, so replays must stay 200 and
// must not credit again.
func TestRazorpayWebhookReplayReturnsOK(t *testing.T) {
	f := newFixture(t)
	f.addIntent(t, payment.IntentDeposit, 5000, "order_abc")
	h := newTestHandler(f)

	_, body := captureEvent("order_abc", 5000)
	sig := signBody(testWebhookSecret, body)

	assert.Equal(t, http.StatusOK, postWebhook(h, body, sig).Code)
	assert.Equal(t, http.StatusOK, postWebhook(h, body, sig).Code)

	got, _ := f.store.GetWalletByID(context.Background(), f.wallet.ID.String())
	assert.Equal(t, int64(5000), got.Balance)

	count, _ := f.store.CountTransactions(context.Background(), f.wallet.ID.String())
	assert.Equal(t, int64(1), count)
}

func TestRazorpayWebhookUnknownOrder(t *testing.T) {
	f := newFixture(t)
	h := newTestHandler(f)

	_, body := captureEvent("order_ghost", 5000)

	rr := postWebhook(h, body, signBody(testWebhookSecret, body))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRazorpayWebhookMalformedBody(t *testing.T) {
	f := newFixture(t)
	h := newTestHandler(f)

	body := []byte(`{"payload":{}}`)
	rr := postWebhook(h, body, signBody(testWebhookSecret, body))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMirrorWebhook(t *testing.T) {
	f := newFixture(t)
	h := newTestHandler(f)

	body := []byte(`{
		"type": "INSERT",
		"table": "transactions",
		"record": {
			"id": "` + uuid.NewString() + `",
			"wallet_id": "` + f.wallet.ID.String() + `",
			"user_id": "` + f.wallet.UserID.String() + `",
			"reference": "mir-web-1",
			"type": "deposit",
			"amount": 2500,
			"status": "success"
		}
	}`)

	req := httptest.NewRequest("POST", "/api/webhooks/mirror", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.MirrorWebhook(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	got, _ := f.store.GetWalletByID(context.Background(), f.wallet.ID.String())
	assert.Equal(t, int64(2500), got.Balance)
}

func TestMirrorWebhookRejectsUnknownTable(t *testing.T) {
	f := newFixture(t)
	h := newTestHandler(f)

	body := []byte(`{"type":"INSERT","table":"edu_scores","record":{}}`)
	req := httptest.NewRequest("POST", "/api/webhooks/mirror", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.MirrorWebhook(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
