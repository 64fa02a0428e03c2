package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sparewise/roundup-wallet/internal/user"
	"github.com/sparewise/roundup-wallet/pkg/config"
	"github.com/sparewise/roundup-wallet/pkg/utils"
	"github.com/stretchr/testify/assert"
)

type memRepo struct {
	mu            sync.Mutex
	intents       map[string]*Intent
	createErr     error
	setOrderErr   error
	createdBefore []string // op log, to check persistence ordering
}

func newMemRepo() *memRepo {
	return &memRepo{intents: make(map[string]*Intent)}
}

func (m *memRepo) CreateIntent(intent *Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *intent
	m.intents[intent.ID.String()] = &cp
	m.createdBefore = append(m.createdBefore, "create")
	return nil
}

func (m *memRepo) GetIntent(intentID string, userID string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[intentID]
	if !ok || intent.UserID.String() != userID {
		return nil, ErrIntentNotFound
	}
	cp := *intent
	return &cp, nil
}

func (m *memRepo) FindByProviderOrderID(orderID string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, intent := range m.intents {
		if intent.ProviderOrderID != nil && *intent.ProviderOrderID == orderID {
			cp := *intent
			return &cp, nil
		}
	}
	return nil, ErrIntentNotFound
}

func (m *memRepo) SetProviderOrder(intentID string, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setOrderErr != nil {
		return m.setOrderErr
	}
	intent, ok := m.intents[intentID]
	if !ok {
		return ErrIntentNotFound
	}
	intent.ProviderOrderID = &orderID
	m.createdBefore = append(m.createdBefore, "attach")
	return nil
}

func (m *memRepo) MarkStatus(intentID string, status IntentStatus, providerResponse string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[intentID]
	if !ok {
		return ErrIntentNotFound
	}
	intent.Status = status
	intent.ProviderResponse = providerResponse
	return nil
}

func (m *memRepo) single(t *testing.T) *Intent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.intents) != 1 {
		t.Fatalf("want exactly one intent, have %d", len(m.intents))
	}
	for _, intent := range m.intents {
		return intent
	}
	return nil
}

func newOrderHandler(repo Repository, gatewayURL string) *Handler {
	return &Handler{
		Config:  config.Config{MinTransactionAmount: 100, RazorpayKeyID: "rzp_test"},
		Repo:    repo,
		client:  &http.Client{Timeout: time.Second},
		baseURL: gatewayURL,
	}
}

func orderRequest(body string) *http.Request {
	req := httptest.NewRequest("POST", "/api/payments/order", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	usr := user.User{ID: uuid.New(), Email: "student@example.com"}
	return req.WithContext(context.WithValue(req.Context(), utils.UserKey, usr))
}

func TestCreateOrderPersistsIntentThenAttachesOrder(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"order_live","amount":5000,"currency":"INR","status":"created"}`))
	}))
	defer gateway.Close()

	repo := newMemRepo()
	h := newOrderHandler(repo, gateway.URL)

	rr := httptest.NewRecorder()
	h.CreateOrder(rr, orderRequest(`{"amount":5000,"description":"top up"}`))
	assert.Equal(t, http.StatusOK, rr.Code)

	intent := repo.single(t)
	assert.Equal(t, IntentCreated, intent.Status)
	if assert.NotNil(t, intent.ProviderOrderID) {
		assert.Equal(t, "order_live", *intent.ProviderOrderID)
	}
	assert.Equal(t, []string{"create", "attach"}, repo.createdBefore)
}

// If the intent cannot be persisted there must be no gateway order at all:
// an order with no intent row could never be reconciled by its capture.
func TestCreateOrderSkipsGatewayWhenIntentPersistFails(t *testing.T) {
	var gatewayCalls int
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatewayCalls++
		w.Write([]byte(`{"id":"order_orphan"}`))
	}))
	defer gateway.Close()

	repo := newMemRepo()
	repo.createErr = errors.New("connection refused")
	h := newOrderHandler(repo, gateway.URL)

	rr := httptest.NewRecorder()
	h.CreateOrder(rr, orderRequest(`{"amount":5000}`))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 0, gatewayCalls)
}

func TestCreateOrderGatewayErrorFailsIntent(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	repo := newMemRepo()
	h := newOrderHandler(repo, gateway.URL)

	rr := httptest.NewRecorder()
	h.CreateOrder(rr, orderRequest(`{"amount":5000}`))
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	intent := repo.single(t)
	assert.Equal(t, IntentFailed, intent.Status)
	assert.Nil(t, intent.ProviderOrderID)
}

func TestCreateOrderRejectsBelowMinimum(t *testing.T) {
	repo := newMemRepo()
	h := newOrderHandler(repo, "http://unused.invalid")

	rr := httptest.NewRecorder()
	h.CreateOrder(rr, orderRequest(`{"amount":50}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, repo.intents)
}
