package ledger_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"callastar_back_end/internal/events"
	"callastar_back_end/internal/ledger"
	"callastar_back_end/internal/models"
	"callastar_back_end/internal/payments"
	"callastar_back_end/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
)

const (
	clientID        = "user-client"
	clientEmail     = "client@example.com"
	creatorID       = "creator-1"
	creatorUserID   = "user-creator"
	creatorEmail    = "star@example.com"
	adminID         = "user-admin"
	adminEmail      = "admin@example.com"
	creatorAccount  = "acct_creator"
	defaultCurrency = "eur"
)

type fixture struct {
	t        *testing.T
	repo     *testutil.MemoryRepository
	proc     *testutil.FakeProcessor
	mailer   *testutil.FakeMailer
	rooms    *testutil.FakeRooms
	deduper  *testutil.FakeDeduper
	archiver *testutil.FakeArchiver
	events   *events.Recorder
	now      time.Time
	seq      int
	svc      *ledger.Service
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T, configure ...func(*ledger.Config)) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		repo:     testutil.NewMemoryRepository(),
		proc:     testutil.NewFakeProcessor(dec("10000")),
		mailer:   &testutil.FakeMailer{},
		rooms:    &testutil.FakeRooms{},
		deduper:  testutil.NewFakeDeduper(),
		archiver: &testutil.FakeArchiver{},
		events:   &events.Recorder{},
		now:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	account := creatorAccount
	f.repo.AddUser(models.User{ID: clientID, Name: "Alice", Email: clientEmail, Role: models.RoleUser})
	f.repo.AddUser(models.User{ID: creatorUserID, Name: "Star", Email: creatorEmail, Role: models.RoleCreator})
	f.repo.AddUser(models.User{ID: adminID, Name: "Admin", Email: adminEmail, Role: models.RoleAdmin})
	f.repo.AddCreator(models.Creator{ID: creatorID, UserID: creatorUserID, Name: "Star", Email: creatorEmail, StripeAccountID: &account})

	cfg := ledger.DefaultConfig()
	cfg.AppURL = "https://callastar.test"
	for _, c := range configure {
		c(&cfg)
	}

	f.svc = ledger.NewService(ledger.Deps{
		Repo:      f.repo,
		Processor: f.proc,
		Rooms:     f.rooms,
		Mailer:    f.mailer,
		Emitter:   f.events,
		Deduper:   f.deduper,
		Archiver:  f.archiver,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return f.now },
		NewID: func() string {
			f.seq++
			return fmt.Sprintf("id-%03d", f.seq)
		},
	}, cfg)
	return f
}

func (f *fixture) addBooking(id, total string) {
	f.repo.AddBooking(models.Booking{
		ID:              id,
		UserID:          clientID,
		CreatorID:       creatorID,
		TotalPrice:      dec(total),
		Currency:        defaultCurrency,
		CallDateTime:    f.now.Add(48 * time.Hour),
		DurationMinutes: 30,
		Status:          models.BookingStatusPending,
		CreatedAt:       f.now,
	})
}

// addPayment insère directement un paiement dans l'état de versement donné.
func (f *fixture) addPayment(id, creatorAmount string, status models.PayoutStatus) {
	amount := dec(creatorAmount)
	fee := amount.Div(dec("9")).Round(2)
	f.repo.AddPayment(models.Payment{
		ID:                    id,
		BookingID:             "bk-" + id,
		CreatorID:             creatorID,
		Amount:                amount.Add(fee),
		PlatformFee:           fee,
		CreatorAmount:         amount,
		Currency:              defaultCurrency,
		Status:                models.PaymentStatusSucceeded,
		PayoutStatus:          status,
		PayoutReleaseDate:     f.now.Add(-time.Hour),
		StripePaymentIntentID: "pi_" + id,
		CreatedAt:             f.now.Add(-8 * 24 * time.Hour),
		UpdatedAt:             f.now,
	})
}

// addPaidPayment insère un paiement déjà versé par le transfert transferID à la date paidAt.
func (f *fixture) addPaidPayment(id, amount string, transferID string, paidAt time.Time) {
	f.repo.AddPayment(models.Payment{
		ID:                    id,
		BookingID:             "bk-" + id,
		CreatorID:             creatorID,
		Amount:                dec(amount),
		PlatformFee:           dec(amount).Mul(dec("0.15")).Round(2),
		CreatorAmount:         dec(amount).Mul(dec("0.85")).Round(2),
		Currency:              defaultCurrency,
		Status:                models.PaymentStatusSucceeded,
		PayoutStatus:          models.PayoutStatusPaid,
		PayoutReleaseDate:     paidAt.Add(-time.Hour),
		StripePaymentIntentID: "pi_" + id,
		StripeTransferID:      &transferID,
		PayoutDate:            &paidAt,
		CreatedAt:             paidAt.Add(-8 * 24 * time.Hour),
		UpdatedAt:             paidAt,
	})
}

func stripeEvent(t *testing.T, id string, typ stripe.EventType, object map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{ID: id, Type: typ, Data: &stripe.EventData{Raw: raw}}
}

func paymentSucceededEvent(t *testing.T, eventID, intentID string, metadata map[string]string) stripe.Event {
	return stripeEvent(t, eventID, payments.EventPaymentIntentSucceeded, map[string]any{
		"id":       intentID,
		"object":   "payment_intent",
		"currency": defaultCurrency,
		"metadata": metadata,
	})
}

func transferEvent(t *testing.T, eventID string, typ stripe.EventType, transferID string, metadata map[string]string, reversals ...map[string]any) stripe.Event {
	obj := map[string]any{
		"id":       transferID,
		"object":   "transfer",
		"metadata": metadata,
	}
	if len(reversals) > 0 {
		obj["reversals"] = map[string]any{"object": "list", "data": reversals}
	}
	return stripeEvent(t, eventID, typ, obj)
}

func splitMetadata(bookingID, fee, creatorAmount string) map[string]string {
	return map[string]string{
		payments.MetaBookingID:     bookingID,
		payments.MetaPlatformFee:   fee,
		payments.MetaCreatorAmount: creatorAmount,
	}
}
