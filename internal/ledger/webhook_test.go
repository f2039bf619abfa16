package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"callastar_back_end/internal/events"
	"callastar_back_end/internal/ledger"
	"callastar_back_end/internal/models"
	"callastar_back_end/internal/payments"
	"callastar_back_end/internal/utils"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
)

func TestPaymentSucceeded_CreatesHeldPayment(t *testing.T) {
	f := newFixture(t)
	f.addBooking("bk-1", "70.00")

	outcome, err := f.svc.HandleEvent(context.Background(),
		paymentSucceededEvent(t, "evt_1", "pi_1", splitMetadata("bk-1", "7", "63")), []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeProcessed, outcome)

	payment, err := f.repo.FindPaymentByBookingID(context.Background(), "bk-1")
	require.NoError(t, err)
	require.Equal(t, "70.00", payment.Amount.StringFixed(2))
	require.Equal(t, "7.00", payment.PlatformFee.StringFixed(2))
	require.Equal(t, "63.00", payment.CreatorAmount.StringFixed(2))
	require.Equal(t, models.PaymentStatusSucceeded, payment.Status)
	require.Equal(t, models.PayoutStatusHeld, payment.PayoutStatus)
	require.Equal(t, f.now.Add(7*24*time.Hour), payment.PayoutReleaseDate)
	require.Equal(t, "pi_1", payment.StripePaymentIntentID)

	booking, err := f.repo.FindBookingByID(context.Background(), "bk-1")
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusConfirmed, booking.Status)
	require.True(t, booking.HasRoom())

	require.Equal(t, []string{"callastar-bk-1"}, f.rooms.Created)
	require.Len(t, f.mailer.To(clientEmail), 2)
	require.Len(t, f.mailer.To(creatorEmail), 1)
	require.NotEmpty(t, f.repo.NotificationsFor(creatorUserID))
	require.Len(t, f.events.OfType(events.PaymentCreated), 1)
	require.Equal(t, []string{"evt_1"}, f.archiver.Archived)
}

func TestPaymentSucceeded_ReplayCreatesOnePayment(t *testing.T) {
	f := newFixture(t)
	f.addBooking("bk-1", "70.00")
	ctx := context.Background()

	_, err := f.svc.HandleEvent(ctx, paymentSucceededEvent(t, "evt_1", "pi_1", splitMetadata("bk-1", "7", "63")), nil)
	require.NoError(t, err)

	// Même événement : court-circuit par la déduplication.
	outcome, err := f.svc.HandleEvent(ctx, paymentSucceededEvent(t, "evt_1", "pi_1", splitMetadata("bk-1", "7", "63")), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeDuplicate, outcome)

	// Nouvel identifiant d'événement pour la même réservation : le grand livre reste la référence.
	outcome, err = f.svc.HandleEvent(ctx, paymentSucceededEvent(t, "evt_2", "pi_1", splitMetadata("bk-1", "7", "63")), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeDuplicate, outcome)

	require.Len(t, f.repo.Payments, 1)
	require.Len(t, f.events.OfType(events.PaymentCreated), 1)
	require.Len(t, f.mailer.To(clientEmail), 2)
}

func TestPaymentSucceeded_ExistingPendingPaymentIsMarkedSucceeded(t *testing.T) {
	f := newFixture(t)
	f.addBooking("bk-1", "70.00")
	f.addPayment("pay-1", "63", models.PayoutStatusHeld)
	p := f.repo.Payments["pay-1"]
	p.BookingID = "bk-1"
	p.Status = models.PaymentStatusPending

	outcome, err := f.svc.HandleEvent(context.Background(),
		paymentSucceededEvent(t, "evt_1", "pi_pay-1", splitMetadata("bk-1", "7", "63")), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeProcessed, outcome)
	require.Len(t, f.repo.Payments, 1)
	require.Equal(t, models.PaymentStatusSucceeded, f.repo.Payment("pay-1").Status)
	require.Len(t, f.events.OfType(events.PaymentSucceeded), 1)
}

func TestPaymentSucceeded_UnknownBookingIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.svc.HandleEvent(context.Background(),
		paymentSucceededEvent(t, "evt_1", "pi_1", splitMetadata("bk-missing", "7", "63")), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeIgnored, outcome)
	require.Empty(t, f.repo.Payments)
	require.Empty(t, f.mailer.Sent)
}

func TestPaymentSucceeded_InvalidMetadataSkipsCreation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing fee":        {payments.MetaBookingID: "bk-1", payments.MetaCreatorAmount: "63"},
		"non numeric amount": splitMetadata("bk-1", "7", "soixante"),
		"negative fee":       splitMetadata("bk-1", "-7", "63"),
	}
	for name, metadata := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.addBooking("bk-1", "70.00")

			outcome, err := f.svc.HandleEvent(context.Background(), paymentSucceededEvent(t, "evt_1", "pi_1", metadata), nil)
			require.NoError(t, err)
			require.Equal(t, ledger.OutcomeSkipped, outcome)
			require.Empty(t, f.repo.Payments)
			require.Len(t, f.events.OfType(events.PaymentSkipped), 1)

			booking, _ := f.repo.FindBookingByID(context.Background(), "bk-1")
			require.Equal(t, models.BookingStatusPending, booking.Status)
		})
	}
}

func TestPaymentSucceeded_FeeMismatchKeepsBookingTotal(t *testing.T) {
	f := newFixture(t)
	f.addBooking("bk-1", "70.00")

	outcome, err := f.svc.HandleEvent(context.Background(),
		paymentSucceededEvent(t, "evt_1", "pi_1", splitMetadata("bk-1", "8", "63")), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeProcessed, outcome)

	payment, err := f.repo.FindPaymentByBookingID(context.Background(), "bk-1")
	require.NoError(t, err)
	require.Equal(t, "70.00", payment.Amount.StringFixed(2))
	require.Len(t, f.events.OfType(events.PaymentFeeMismatch), 1)
}

func TestPaymentSucceeded_WithinToleranceIsNotAMismatch(t *testing.T) {
	f := newFixture(t)
	f.addBooking("bk-1", "70.00")

	_, err := f.svc.HandleEvent(context.Background(),
		paymentSucceededEvent(t, "evt_1", "pi_1", splitMetadata("bk-1", "7.01", "63")), nil)
	require.NoError(t, err)
	require.Empty(t, f.events.OfType(events.PaymentFeeMismatch))

	payment, _ := f.repo.FindPaymentByBookingID(context.Background(), "bk-1")
	require.True(t, utils.WithinTolerance(payment.PlatformFee.Add(payment.CreatorAmount), payment.Amount, dec("0.02")))
}

func TestPaymentSucceeded_StoreFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.addBooking("bk-1", "70.00")
	f.repo.Err = errors.New("connexion perdue")
	event := paymentSucceededEvent(t, "evt_1", "pi_1", splitMetadata("bk-1", "7", "63"))

	_, err := f.svc.HandleEvent(context.Background(), event, nil)
	require.Error(t, err)
	require.Empty(t, f.mailer.Sent)

	// La relivraison n'est pas court-circuitée par la déduplication.
	f.repo.Err = nil
	outcome, err := f.svc.HandleEvent(context.Background(), event, nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeProcessed, outcome)
	require.Len(t, f.repo.Payments, 1)
}

func TestPaymentSucceeded_SideEffectFailuresDoNotFailTheEvent(t *testing.T) {
	f := newFixture(t)
	f.addBooking("bk-1", "70.00")
	f.rooms.Err = errors.New("daily indisponible")
	f.mailer.Err = errors.New("smtp indisponible")

	outcome, err := f.svc.HandleEvent(context.Background(),
		paymentSucceededEvent(t, "evt_1", "pi_1", splitMetadata("bk-1", "7", "63")), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeProcessed, outcome)
	require.Len(t, f.repo.Payments, 1)

	booking, _ := f.repo.FindBookingByID(context.Background(), "bk-1")
	require.False(t, booking.HasRoom())
}

func TestTransferCreated_CompletesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPayment("pay-1", "63", models.PayoutStatusReady)
	f.addPayment("pay-2", "40", models.PayoutStatusReady)
	f.addPayment("pay-3", "12", models.PayoutStatusReady)

	req, err := f.svc.RequestPayout(ctx, creatorID, creatorUserID)
	require.NoError(t, err)
	require.Equal(t, "115.00", req.TotalAmount.StringFixed(2))
	require.Equal(t, 3, req.PaymentCount)

	req, err = f.svc.ApprovePayout(ctx, req.ID, adminID)
	require.NoError(t, err)
	require.Equal(t, models.PayoutRequestProcessing, req.Status)

	outcome, err := f.svc.HandleEvent(ctx, transferEvent(t, "evt_tr", payments.EventTransferCreated, "tr_1",
		map[string]string{payments.MetaPayoutRequestID: req.ID}), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeProcessed, outcome)

	completed := f.repo.Request(req.ID)
	require.Equal(t, models.PayoutRequestCompleted, completed.Status)
	require.Equal(t, "tr_1", *completed.StripeTransferID)
	require.NotNil(t, completed.CompletedAt)
	for _, id := range []string{"pay-1", "pay-2", "pay-3"} {
		p := f.repo.Payment(id)
		require.Equal(t, models.PayoutStatusPaid, p.PayoutStatus, id)
		require.Equal(t, "tr_1", *p.StripeTransferID)
		require.Equal(t, f.now, *p.PayoutDate)
	}
	require.Len(t, f.events.OfType(events.PayoutCompleted), 1)
	require.NotEmpty(t, f.mailer.To(creatorEmail))

	// Relivraison : aucune nouvelle transition.
	outcome, err = f.svc.HandleEvent(ctx, transferEvent(t, "evt_tr_2", payments.EventTransferCreated, "tr_1",
		map[string]string{payments.MetaPayoutRequestID: req.ID}), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeDuplicate, outcome)
	require.Len(t, f.events.OfType(events.PayoutCompleted), 1)
}

func TestTransferCreated_UntrackedTransferIsIgnored(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.svc.HandleEvent(context.Background(),
		transferEvent(t, "evt_1", payments.EventTransferCreated, "tr_x", nil), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeIgnored, outcome)

	outcome, err = f.svc.HandleEvent(context.Background(),
		transferEvent(t, "evt_2", payments.EventTransferCreated, "tr_x", map[string]string{payments.MetaPayoutRequestID: "pr-unknown"}), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeIgnored, outcome)
}

func TestTransferReversed_ReversesRequestAndPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPayment("pay-1", "63", models.PayoutStatusReady)
	f.addPayment("pay-2", "40", models.PayoutStatusReady)

	req, err := f.svc.RequestPayout(ctx, creatorID, creatorUserID)
	require.NoError(t, err)
	_, err = f.svc.ApprovePayout(ctx, req.ID, adminID)
	require.NoError(t, err)
	meta := map[string]string{payments.MetaPayoutRequestID: req.ID}
	_, err = f.svc.HandleEvent(ctx, transferEvent(t, "evt_c", payments.EventTransferCreated, "tr_1", meta), nil)
	require.NoError(t, err)

	outcome, err := f.svc.HandleEvent(ctx, transferEvent(t, "evt_r", payments.EventTransferReversed, "tr_1", meta,
		map[string]any{"id": "trr_1", "object": "transfer_reversal", "created": 100, "metadata": map[string]string{}}), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeProcessed, outcome)

	reversed := f.repo.Request(req.ID)
	require.Equal(t, models.PayoutRequestReversed, reversed.Status)
	require.Equal(t, "trr_1", *reversed.ReversalID)
	require.NotEmpty(t, *reversed.ReversalReason)
	require.NotNil(t, reversed.ReversedAt)
	require.Equal(t, models.PayoutStatusReversed, f.repo.Payment("pay-1").PayoutStatus)
	require.Equal(t, models.PayoutStatusReversed, f.repo.Payment("pay-2").PayoutStatus)

	mails := f.mailer.To(creatorEmail)
	require.NotEmpty(t, mails)
	require.Contains(t, mails[len(mails)-1].Body, *reversed.ReversalReason)

	// Un transfert annulé ne peut plus être complété.
	outcome, err = f.svc.HandleEvent(ctx, transferEvent(t, "evt_c2", payments.EventTransferCreated, "tr_1", meta), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeIgnored, outcome)
	require.Equal(t, models.PayoutStatusReversed, f.repo.Payment("pay-1").PayoutStatus)
}

func TestTransferReversed_UsesReasonFromEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPayment("pay-1", "63", models.PayoutStatusReady)
	req, err := f.svc.RequestPayout(ctx, creatorID, creatorUserID)
	require.NoError(t, err)
	_, err = f.svc.ApprovePayout(ctx, req.ID, adminID)
	require.NoError(t, err)

	_, err = f.svc.HandleEvent(ctx, transferEvent(t, "evt_r", payments.EventTransferReversed, "tr_1",
		map[string]string{payments.MetaPayoutRequestID: req.ID},
		map[string]any{"id": "trr_1", "object": "transfer_reversal", "metadata": map[string]string{payments.MetaReason: "Compte frauduleux"}}), nil)
	require.NoError(t, err)
	require.Equal(t, "Compte frauduleux", *f.repo.Request(req.ID).ReversalReason)
}

func TestTransferReversed_UnknownRequestChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.addPayment("pay-1", "63", models.PayoutStatusPaid)

	outcome, err := f.svc.HandleEvent(context.Background(), transferEvent(t, "evt_r", payments.EventTransferReversed, "tr_9",
		map[string]string{payments.MetaPayoutRequestID: "pr-unknown"}), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeIgnored, outcome)
	require.Equal(t, models.PayoutStatusPaid, f.repo.Payment("pay-1").PayoutStatus)
	require.Empty(t, f.events.OfType(events.PayoutReversed))
}

func TestTransferReversed_DebtRecoveryReversalIsNotAPayoutReversal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPayment("pay-1", "63", models.PayoutStatusReady)
	req, err := f.svc.RequestPayout(ctx, creatorID, creatorUserID)
	require.NoError(t, err)
	_, err = f.svc.ApprovePayout(ctx, req.ID, adminID)
	require.NoError(t, err)
	meta := map[string]string{payments.MetaPayoutRequestID: req.ID}
	_, err = f.svc.HandleEvent(ctx, transferEvent(t, "evt_c", payments.EventTransferCreated, "tr_1", meta), nil)
	require.NoError(t, err)

	outcome, err := f.svc.HandleEvent(ctx, transferEvent(t, "evt_r", payments.EventTransferReversed, "tr_1", meta,
		map[string]any{"id": "trr_debt", "object": "transfer_reversal", "metadata": map[string]string{payments.MetaDebtRecovery: "true"}}), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeIgnored, outcome)
	require.Equal(t, models.PayoutRequestCompleted, f.repo.Request(req.ID).Status)
	require.Equal(t, models.PayoutStatusPaid, f.repo.Payment("pay-1").PayoutStatus)
}

func TestTransferUpdatedAndUnknownEventsAreIgnored(t *testing.T) {
	f := newFixture(t)

	for _, typ := range []stripe.EventType{payments.EventTransferUpdated, "customer.created"} {
		outcome, err := f.svc.HandleEvent(context.Background(), stripeEvent(t, "evt_"+string(typ), typ, map[string]any{"id": "x"}), nil)
		require.NoError(t, err)
		require.Equal(t, ledger.OutcomeIgnored, outcome)
	}
	require.Empty(t, f.events.Events)
}

func TestDisputeLost_RecordsDebtOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPayment("pay-1", "63", models.PayoutStatusHeld)

	dispute := func(eventID string) stripe.Event {
		return stripeEvent(t, eventID, payments.EventDisputeClosed, map[string]any{
			"id":             "dp_1",
			"object":         "dispute",
			"amount":         5000,
			"status":         "lost",
			"reason":         "fraudulent",
			"payment_intent": "pi_pay-1",
		})
	}

	outcome, err := f.svc.HandleEvent(ctx, dispute("evt_1"), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeProcessed, outcome)

	outcome, err = f.svc.HandleEvent(ctx, dispute("evt_2"), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeDuplicate, outcome)

	debts := f.repo.Debts[models.DebtKindDispute]
	require.Len(t, debts, 1)
	for _, d := range debts {
		require.Equal(t, "50.00", d.Amount.StringFixed(2))
		require.Equal(t, "42.50", d.CreatorDebt.StringFixed(2))
		// Pas encore versé : la dette est retirée de la part créateur.
		require.True(t, d.Reconciled)
		require.Equal(t, models.ReconciledByPayoutDeduction, *d.ReconciledBy)
	}
	require.Equal(t, "20.50", f.repo.Payment("pay-1").CreatorAmount.StringFixed(2))
	require.Equal(t, models.PaymentStatusSucceeded, f.repo.Payment("pay-1").Status)
}

func TestDisputeWon_RecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.addPayment("pay-1", "63", models.PayoutStatusHeld)

	outcome, err := f.svc.HandleEvent(context.Background(), stripeEvent(t, "evt_1", payments.EventDisputeClosed, map[string]any{
		"id": "dp_1", "object": "dispute", "amount": 5000, "status": "won", "payment_intent": "pi_pay-1",
	}), nil)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeIgnored, outcome)
	require.Empty(t, f.repo.Debts[models.DebtKindDispute])
}
