package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"callastar_back_end/internal/cache"
	"callastar_back_end/internal/events"
	"callastar_back_end/internal/handlers"
	"callastar_back_end/internal/ledger"
	"callastar_back_end/internal/models"
	"callastar_back_end/internal/payments"
	"callastar_back_end/internal/routes"
	"callastar_back_end/internal/services"
	"callastar_back_end/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

const (
	jwtSecret     = "jwt-test"
	webhookSecret = "whsec_handlers"
	creatorID     = "creator-1"
	creatorUserID = "user-creator"
	clientID      = "user-client"
	adminID       = "user-admin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryCache remplace Redis pour le solde créateur.
type memoryCache struct {
	data   map[string][]byte
	writes int
}

func (m *memoryCache) GetJSON(_ context.Context, key string, dest any) error {
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.writes++
	m.data[key] = raw
	return nil
}

type searcherStub struct {
	query events.SearchQuery
}

func (s *searcherStub) Search(_ context.Context, q events.SearchQuery) ([]events.Event, error) {
	s.query = q
	return []events.Event{{ID: "evt-1", Type: events.PayoutCompleted, CreatorID: q.CreatorID}}, nil
}

type linkerStub struct {
	stored map[string]bool
}

func (l *linkerStub) StatementURL(_ context.Context, creatorID, requestID string, _ time.Duration) (string, error) {
	key := services.StatementObjectKey(creatorID, requestID)
	if !l.stored[key] {
		return "", fmt.Errorf("objet %s: %w", key, services.ErrObjectNotFound)
	}
	return "https://minio.test/" + key + "?X-Amz-Signature=abc", nil
}

type fixture struct {
	t        *testing.T
	repo     *testutil.MemoryRepository
	proc     *testutil.FakeProcessor
	cache    *memoryCache
	searcher *searcherStub
	linker   *linkerStub
	router   *gin.Engine
	now      time.Time
	seq      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		repo:     testutil.NewMemoryRepository(),
		proc:     testutil.NewFakeProcessor(decimal.NewFromInt(10000)),
		cache:    &memoryCache{data: map[string][]byte{}},
		searcher: &searcherStub{},
		linker:   &linkerStub{stored: map[string]bool{}},
		now:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	account := "acct_creator"
	f.repo.AddUser(models.User{ID: clientID, Email: "client@example.com", Role: models.RoleUser})
	f.repo.AddUser(models.User{ID: creatorUserID, Email: "star@example.com", Role: models.RoleCreator})
	f.repo.AddUser(models.User{ID: adminID, Email: "admin@example.com", Role: models.RoleAdmin})
	f.repo.AddCreator(models.Creator{ID: creatorID, UserID: creatorUserID, Name: "Star", Email: "star@example.com", StripeAccountID: &account})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := ledger.NewService(ledger.Deps{
		Repo:      f.repo,
		Processor: f.proc,
		Rooms:     &testutil.FakeRooms{},
		Mailer:    &testutil.FakeMailer{},
		Emitter:   &events.Recorder{},
		Deduper:   testutil.NewFakeDeduper(),
		Logger:    logger,
		Now:       func() time.Time { return f.now },
		NewID: func() string {
			f.seq++
			return fmt.Sprintf("id-%03d", f.seq)
		},
	}, ledger.DefaultConfig())

	h := handlers.New(handlers.Deps{
		Ledger:        svc,
		WebhookSecret: webhookSecret,
		Cache:         f.cache,
		Searcher:      f.searcher,
		Statements:    f.linker,
		Logger:        logger,
	})
	f.router = gin.New()
	routes.RegisterRoutes(f.router, h, routes.Options{JWTSecret: jwtSecret, Logger: logger})
	return f
}

func (f *fixture) token(userID, role string) string {
	f.t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(f.t, err)
	return token
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	return f.doWithHeaders(method, path, token, body, nil)
}

func (f *fixture) doWithHeaders(method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) addReadyPayment(id, creatorAmount string) {
	amount := decimal.RequireFromString(creatorAmount)
	f.repo.AddPayment(models.Payment{
		ID:                    id,
		BookingID:             "bk-" + id,
		CreatorID:             creatorID,
		Amount:                amount,
		CreatorAmount:         amount,
		Currency:              "eur",
		Status:                models.PaymentStatusSucceeded,
		PayoutStatus:          models.PayoutStatusReady,
		PayoutReleaseDate:     f.now.Add(-time.Hour),
		StripePaymentIntentID: "pi_" + id,
		CreatedAt:             f.now.Add(-8 * 24 * time.Hour),
	})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (f *fixture) postWebhook(body map[string]any, secret string) *httptest.ResponseRecorder {
	f.t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(f.t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func paymentSucceeded(eventID, bookingID string) map[string]any {
	return map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        string(payments.EventPaymentIntentSucceeded),
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": map[string]any{
				"id":       "pi_" + bookingID,
				"object":   "payment_intent",
				"currency": "eur",
				"metadata": map[string]string{
					payments.MetaBookingID:     bookingID,
					payments.MetaPlatformFee:   "7.00",
					payments.MetaCreatorAmount: "63.00",
				},
			},
		},
	}
}

func TestStripeWebhook(t *testing.T) {
	f := newFixture(t)
	f.repo.AddBooking(models.Booking{
		ID: "bk-1", UserID: clientID, CreatorID: creatorID,
		TotalPrice: decimal.NewFromInt(70), Currency: "eur",
		CallDateTime: f.now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.BookingStatusPending, CreatedAt: f.now,
	})

	w := f.postWebhook(paymentSucceeded("evt_1", "bk-1"), webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(ledger.OutcomeProcessed), decode(t, w)["outcome"])

	created, err := f.repo.FindPaymentByBookingID(context.Background(), "bk-1")
	require.NoError(t, err)
	require.Equal(t, models.PayoutStatusHeld, created.PayoutStatus)

	w = f.postWebhook(paymentSucceeded("evt_1", "bk-1"), webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(ledger.OutcomeDuplicate), decode(t, w)["outcome"])

	w = f.postWebhook(paymentSucceeded("evt_2", "bk-unknown"), webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(ledger.OutcomeIgnored), decode(t, w)["outcome"])
}

func TestStripeWebhook_Rejects(t *testing.T) {
	f := newFixture(t)

	w := f.postWebhook(paymentSucceeded("evt_1", "bk-1"), "whsec_autre")
	require.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	unconfigured := gin.New()
	routes.RegisterRoutes(unconfigured, handlers.New(handlers.Deps{
		Ledger: ledger.NewService(ledger.Deps{Repo: f.repo}, ledger.DefaultConfig()),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}), routes.Options{JWTSecret: jwtSecret})
	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w = httptest.NewRecorder()
	unconfigured.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStripeWebhook_StoreFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.repo.AddBooking(models.Booking{
		ID: "bk-1", UserID: clientID, CreatorID: creatorID,
		TotalPrice: decimal.NewFromInt(70), Currency: "eur",
		CallDateTime: f.now.Add(48 * time.Hour), DurationMinutes: 30,
		Status: models.BookingStatusPending, CreatedAt: f.now,
	})
	f.repo.Err = errors.New("connexion perdue")

	w := f.postWebhook(paymentSucceeded("evt_1", "bk-1"), webhookSecret)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "connexion perdue")

	f.repo.Err = nil
	w = f.postWebhook(paymentSucceeded("evt_1", "bk-1"), webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(ledger.OutcomeProcessed), decode(t, w)["outcome"])
}

func TestCreatorBalance_Cached(t *testing.T) {
	f := newFixture(t)
	f.addReadyPayment("pay-1", "63")
	token := f.token(creatorUserID, models.RoleCreator)

	w := f.do(http.MethodGet, "/api/creators/me/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "63", decode(t, w)["ready"])
	require.Equal(t, 1, f.cache.writes)

	// Lecture suivante servie par le cache.
	f.addReadyPayment("pay-2", "10")
	w = f.do(http.MethodGet, "/api/creators/me/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "63", decode(t, w)["ready"])
	require.Equal(t, 1, f.cache.writes)
}

func TestCreatorEndpoints_RequireCreatorProfile(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/creators/me/balance", "", nil).Code)
	w := f.do(http.MethodGet, "/api/creators/me/payouts", f.token(clientID, models.RoleUser), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestMyPayout(t *testing.T) {
	f := newFixture(t)
	f.addReadyPayment("pay-1", "63")
	f.addReadyPayment("pay-2", "40")
	token := f.token(creatorUserID, models.RoleCreator)

	w := f.do(http.MethodPost, "/api/creators/me/payouts", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	req := decode(t, w)["payout_request"].(map[string]any)
	require.Equal(t, "103", req["total_amount"])
	require.Equal(t, string(models.PayoutRequestPendingApproval), req["status"])

	// Tous les paiements READY sont déjà liés à la demande active.
	w = f.do(http.MethodPost, "/api/creators/me/payouts", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(http.MethodGet, "/api/creators/me/payouts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["payout_requests"], 1)

	w = f.do(http.MethodGet, "/api/creators/me/payments?limit=1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["payments"], 1)
}

func TestRequestMyPayout_Blocked(t *testing.T) {
	f := newFixture(t)
	f.addReadyPayment("pay-1", "63")
	_, err := f.repo.SetCreatorPayoutBlock(context.Background(), creatorID, true, "dette", f.now)
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/api/creators/me/payouts", f.token(creatorUserID, models.RoleCreator), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, decode(t, w)["error"], "bloqués")
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/admin/payouts", f.token(creatorUserID, models.RoleCreator), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminPayoutLifecycle(t *testing.T) {
	f := newFixture(t)
	f.addReadyPayment("pay-1", "63")
	f.addReadyPayment("pay-2", "40")
	admin := f.token(adminID, models.RoleAdmin)

	w := f.do(http.MethodPost, "/api/admin/creators/"+creatorID+"/payouts", admin, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["payout_request"].(map[string]any)["id"].(string)

	w = f.do(http.MethodGet, "/api/admin/payouts?status=pending_approval", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["payout_requests"], 1)

	w = f.do(http.MethodGet, "/api/admin/payouts/"+id, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["payments"], 2)

	w = f.do(http.MethodPost, "/api/admin/payouts/"+id+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	approved := decode(t, w)["payout_request"].(map[string]any)
	require.Equal(t, string(models.PayoutRequestProcessing), approved["status"])
	require.Equal(t, "tr_1", approved["stripe_transfer_id"])
	require.Len(t, f.proc.Transfers, 1)

	// Une seconde approbation est refusée sans nouvel appel au processeur.
	w = f.do(http.MethodPost, "/api/admin/payouts/"+id+"/approve", admin, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Len(t, f.proc.Transfers, 1)
}

func TestAdminApprove_TransferFailure(t *testing.T) {
	f := newFixture(t)
	f.addReadyPayment("pay-1", "63")
	f.proc.TransferErr = &stripe.Error{Msg: "Compte destinataire restreint"}
	admin := f.token(adminID, models.RoleAdmin)

	w := f.do(http.MethodPost, "/api/admin/creators/"+creatorID+"/payouts", admin, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["payout_request"].(map[string]any)["id"].(string)

	w = f.do(http.MethodPost, "/api/admin/payouts/"+id+"/approve", admin, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	require.Equal(t, "Compte destinataire restreint", body["failure_reason"])
	require.Equal(t, string(models.PayoutRequestFailed), body["payout_request"].(map[string]any)["status"])
}

func TestAdminApprove_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.addReadyPayment("pay-1", "63")
	f.proc.Balance = decimal.NewFromInt(10)
	admin := f.token(adminID, models.RoleAdmin)

	w := f.do(http.MethodPost, "/api/admin/creators/"+creatorID+"/payouts", admin, nil)
	id := decode(t, w)["payout_request"].(map[string]any)["id"].(string)

	w = f.do(http.MethodPost, "/api/admin/payouts/"+id+"/approve", admin, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, models.PayoutRequestPendingApproval, f.repo.Request(id).Status)
	require.Empty(t, f.proc.Transfers)
}

func TestAdminReject(t *testing.T) {
	f := newFixture(t)
	f.addReadyPayment("pay-1", "63")
	admin := f.token(adminID, models.RoleAdmin)

	w := f.do(http.MethodPost, "/api/admin/creators/"+creatorID+"/payouts", admin, nil)
	id := decode(t, w)["payout_request"].(map[string]any)["id"].(string)

	require.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/admin/payouts/"+id+"/reject", admin, map[string]string{"reason": "  "}).Code)
	w = f.do(http.MethodPost, "/api/admin/payouts/"+id+"/reject", admin, map[string]string{"reason": "Vérification KYC en cours"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, string(models.PayoutRequestRejected), decode(t, w)["payout_request"].(map[string]any)["status"])

	require.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/admin/payouts/unknown/reject", admin, map[string]string{"reason": "x"}).Code)
}

func TestAdminRefundAndReconcile(t *testing.T) {
	f := newFixture(t)
	f.addReadyPayment("pay-1", "70")
	// Versé il y a trop longtemps pour une annulation de transfert : la dette reste ouverte.
	paid := f.repo.Payments["pay-1"]
	transferID := "tr_old"
	paidAt := f.now.Add(-200 * 24 * time.Hour)
	paid.PayoutStatus = models.PayoutStatusPaid
	paid.StripeTransferID = &transferID
	paid.PayoutDate = &paidAt
	admin := f.token(adminID, models.RoleAdmin)

	w := f.do(http.MethodPost, "/api/admin/payments/pay-1/refund", admin, map[string]any{"amount": "abc", "reason": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/admin/payments/pay-1/refund", admin, map[string]any{"amount": "20", "reason": "Appel annulé"})
	require.Equal(t, http.StatusCreated, w.Code)
	debt := decode(t, w)["debt"].(map[string]any)
	require.Equal(t, "17", debt["creator_debt"])
	require.Equal(t, false, debt["reconciled"])
	debtID := debt["id"].(string)

	w = f.do(http.MethodGet, "/api/admin/debts?creator_id="+creatorID+"&unreconciled=true", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["debts"], 1)

	require.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/admin/debts?kind=chargeback", admin, nil).Code)

	path := "/api/admin/debts/refund/" + debtID + "/reconcile"
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, path, admin, map[string]string{"method": "TRANSFER_REVERSAL"}).Code)
	w = f.do(http.MethodPost, path, admin, map[string]string{"method": "manual"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decode(t, w)["debt"].(map[string]any)["reconciled"])
	require.Equal(t, http.StatusConflict, f.do(http.MethodPost, path, admin, map[string]string{"method": "MANUAL"}).Code)
}

func TestAdminRefundBeforePayout_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.addReadyPayment("pay-1", "70")
	admin := f.token(adminID, models.RoleAdmin)
	path := "/api/admin/payments/pay-1/refund"
	body := map[string]any{"amount": "20", "reason": "Geste commercial"}

	w := f.doWithHeaders(http.MethodPost, path, admin, body, map[string]string{"Idempotency-Key": "ticket-42"})
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode(t, w)["debt"].(map[string]any)
	require.Equal(t, true, first["reconciled"])
	require.Equal(t, string(models.ReconciledByPayoutDeduction), first["reconciled_by"])

	// Relance réseau : même clé, même remboursement.
	w = f.doWithHeaders(http.MethodPost, path, admin, body, map[string]string{"Idempotency-Key": "ticket-42"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, first["id"], decode(t, w)["debt"].(map[string]any)["id"])
	require.Len(t, f.proc.Refunds, 1)

	// Second geste du même montant : remboursement distinct.
	w = f.do(http.MethodPost, path, admin, body)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEqual(t, first["id"], decode(t, w)["debt"].(map[string]any)["id"])
	require.Len(t, f.proc.Refunds, 2)

	require.Equal(t, "36.00", f.repo.Payment("pay-1").CreatorAmount.StringFixed(2))
}

func TestAdminCheckPayoutBlock(t *testing.T) {
	f := newFixture(t)
	admin := f.token(adminID, models.RoleAdmin)
	_, err := f.repo.SetCreatorPayoutBlock(context.Background(), creatorID, true, "dette", f.now)
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/api/admin/creators/"+creatorID+"/payout-block/check", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, true, body["unblocked"])
	require.Equal(t, false, body["payout_blocked"])
}

func TestAdminReleaseAndBalance(t *testing.T) {
	f := newFixture(t)
	admin := f.token(adminID, models.RoleAdmin)

	w := f.do(http.MethodPost, "/api/admin/payments/release", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 0, decode(t, w)["released"])

	w = f.do(http.MethodGet, "/api/admin/balance", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "10000", decode(t, w)["available"])

	f.proc.BalanceErr = errors.New("stripe down")
	require.Equal(t, http.StatusInternalServerError, f.do(http.MethodGet, "/api/admin/balance", admin, nil).Code)
}

func TestAdminLedgerEvents(t *testing.T) {
	f := newFixture(t)
	admin := f.token(adminID, models.RoleAdmin)

	w := f.do(http.MethodGet, "/api/admin/ledger/events?creator_id="+creatorID+"&type=payout.completed&size=20", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["events"], 1)
	require.Equal(t, events.SearchQuery{CreatorID: creatorID, Type: "payout.completed", Size: 20}, f.searcher.query)
}

func TestMyPayoutStatement(t *testing.T) {
	f := newFixture(t)
	token := f.token(creatorUserID, models.RoleCreator)
	completedAt := f.now
	transferID := "tr_9"
	f.repo.Requests["pr-1"] = &models.PayoutRequest{
		ID: "pr-1", CreatorID: creatorID, Status: models.PayoutRequestCompleted,
		TotalAmount: decimal.NewFromInt(103), Currency: "eur",
		StripeTransferID: &transferID, CompletedAt: &completedAt, CreatedAt: f.now,
	}
	f.repo.Requests["pr-2"] = &models.PayoutRequest{
		ID: "pr-2", CreatorID: creatorID, Status: models.PayoutRequestPendingApproval, CreatedAt: f.now,
	}
	f.repo.Requests["pr-other"] = &models.PayoutRequest{
		ID: "pr-other", CreatorID: "creator-2", Status: models.PayoutRequestCompleted, CreatedAt: f.now,
	}

	// Relevé non encore stocké.
	require.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/creators/me/payouts/pr-1/statement", token, nil).Code)

	f.linker.stored[services.StatementObjectKey(creatorID, "pr-1")] = true
	w := f.do(http.MethodGet, "/api/creators/me/payouts/pr-1/statement", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, decode(t, w)["url"], "statements/creator-1/pr-1.pdf")

	require.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/creators/me/payouts/pr-2/statement", token, nil).Code)
	require.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/creators/me/payouts/pr-other/statement", token, nil).Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
