package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callastar_back_end/internal/events"
	"callastar_back_end/internal/models"
	"callastar_back_end/internal/payments"
	"callastar_back_end/internal/store"
	"callastar_back_end/internal/utils"

	"github.com/stripe/stripe-go/v83"
)

// La salle reste ouverte un peu après la fin prévue de l'appel.
const roomGracePeriod = 30 * time.Minute

func (s *Service) handlePaymentSucceeded(ctx context.Context, event stripe.Event) (Outcome, error) {
	intent, err := payments.DecodeObject[stripe.PaymentIntent](event)
	if err != nil {
		s.logger.Warn("⚠️ payment_intent illisible, ignoré", "event_id", event.ID, "error", err)
		return OutcomeSkipped, nil
	}
	log := s.logger.With("payment_intent", intent.ID)

	bookingID, err := payments.BookingIDFrom(intent.Metadata)
	if err != nil {
		log.Warn("⚠️ bookingId absent des métadonnées", "error", err)
		s.emit(ctx, events.Event{Type: events.PaymentSkipped, EntityType: "payment_intent", EntityID: intent.ID,
			Actor: SystemActor, Attributes: map[string]string{"reason": err.Error()}})
		return OutcomeSkipped, nil
	}
	log = log.With("booking_id", bookingID)

	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if errors.Is(err, store.ErrBookingNotFound) {
		log.Warn("⚠️ Réservation introuvable, événement acquitté")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeProcessed, fmt.Errorf("lecture réservation: %w", err)
	}

	existing, err := s.repo.FindPaymentByBookingID(ctx, bookingID)
	switch {
	case err == nil:
		return s.confirmExistingPayment(ctx, existing)
	case !errors.Is(err, store.ErrPaymentNotFound):
		return OutcomeProcessed, fmt.Errorf("lecture paiement: %w", err)
	}

	split, err := payments.ParsePaymentSplit(intent.Metadata)
	if err != nil {
		log.Error("❌ Métadonnées de paiement invalides, paiement non créé", "error", err)
		s.emit(ctx, events.Event{Type: events.PaymentSkipped, EntityType: "booking", EntityID: bookingID,
			CreatorID: booking.CreatorID, Actor: SystemActor, Attributes: map[string]string{"reason": err.Error()}})
		return OutcomeSkipped, nil
	}

	if !utils.WithinTolerance(split.Total(), booking.TotalPrice, s.cfg.FeeTolerance) {
		log.Warn("⚠️ platformFee + creatorAmount ne correspond pas au prix de la réservation",
			"platform_fee", split.PlatformFee.StringFixed(2),
			"creator_amount", split.CreatorAmount.StringFixed(2),
			"total_price", booking.TotalPrice.StringFixed(2))
		s.emit(ctx, events.Event{Type: events.PaymentFeeMismatch, EntityType: "booking", EntityID: bookingID,
			CreatorID: booking.CreatorID, Amount: booking.TotalPrice, Currency: booking.Currency,
			Attributes: map[string]string{"split_total": split.Total().StringFixed(2)}})
	}

	now := s.now()
	currency := strings.ToLower(booking.Currency)
	if currency == "" {
		currency = strings.ToLower(string(intent.Currency))
	}
	if currency == "" {
		currency = s.cfg.Currency
	}
	payment := &models.Payment{
		ID:                    s.newID(),
		BookingID:             bookingID,
		CreatorID:             booking.CreatorID,
		Amount:                booking.TotalPrice,
		PlatformFee:           split.PlatformFee,
		CreatorAmount:         split.CreatorAmount,
		Currency:              currency,
		Status:                models.PaymentStatusSucceeded,
		PayoutStatus:          models.PayoutStatusHeld,
		PayoutReleaseDate:     now.Add(s.cfg.HoldPeriod),
		StripePaymentIntentID: intent.ID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.CreatePaymentForBooking(ctx, payment); err != nil {
		if errors.Is(err, store.ErrDuplicatePayment) {
			log.Info("🔁 Paiement déjà enregistré par une livraison concurrente")
			return OutcomeDuplicate, nil
		}
		return OutcomeProcessed, fmt.Errorf("création paiement: %w", err)
	}

	log.Info("✅ Paiement créé", "payment_id", payment.ID, "release_date", payment.PayoutReleaseDate)
	s.emit(ctx, events.Event{Type: events.PaymentCreated, EntityType: "payment", EntityID: payment.ID,
		CreatorID: payment.CreatorID, Actor: SystemActor, Amount: payment.Amount, Currency: payment.Currency,
		Attributes: map[string]string{
			"booking_id":     bookingID,
			"platform_fee":   payment.PlatformFee.StringFixed(2),
			"creator_amount": payment.CreatorAmount.StringFixed(2),
			"payout_status":  string(payment.PayoutStatus),
		}})

	booking.Status = models.BookingStatusConfirmed
	s.afterPaymentCreated(ctx, booking, payment)
	return OutcomeProcessed, nil
}

// confirmExistingPayment traite une relivraison : le paiement existe déjà pour la réservation.
func (s *Service) confirmExistingPayment(ctx context.Context, payment *models.Payment) (Outcome, error) {
	changed, err := s.repo.MarkPaymentSucceeded(ctx, payment.ID)
	if err != nil {
		return OutcomeProcessed, fmt.Errorf("mise à jour paiement: %w", err)
	}
	if !changed {
		s.logger.Info("🔁 Paiement déjà confirmé", "payment_id", payment.ID)
		return OutcomeDuplicate, nil
	}
	s.emit(ctx, events.Event{Type: events.PaymentSucceeded, EntityType: "payment", EntityID: payment.ID,
		CreatorID: payment.CreatorID, Actor: SystemActor, Amount: payment.Amount, Currency: payment.Currency})
	return OutcomeProcessed, nil
}

// afterPaymentCreated déclenche les effets secondaires : salle vidéo, emails client, notification créateur.
func (s *Service) afterPaymentCreated(ctx context.Context, booking *models.Booking, payment *models.Payment) {
	if s.rooms != nil && !booking.HasRoom() {
		s.sideEffect(ctx, "daily_room", func(ctx context.Context) error {
			room, err := s.rooms.CreateRoom(ctx, "callastar-"+booking.ID, booking.CallEndsAt().Add(roomGracePeriod))
			if err != nil {
				return err
			}
			booking.DailyRoomName = &room.Name
			booking.DailyRoomURL = &room.URL
			return s.repo.SetBookingRoom(ctx, booking.ID, room.Name, room.URL)
		})
	}

	creator := s.loadCreator(ctx, booking.CreatorID)
	if creator == nil {
		return
	}

	user, err := s.repo.FindUserByID(ctx, booking.UserID)
	if err != nil {
		s.logger.Warn("⚠️ Client introuvable, emails non envoyés", "user_id", booking.UserID, "error", err)
	} else {
		s.sendEmail(ctx, user.Email, utils.BookingConfirmationEmail(user, creator, booking, s.cfg.AppURL))
		s.sendEmail(ctx, user.Email, utils.PaymentReceiptEmail(user, payment, s.cfg.AppURL))
		s.notifyInApp(ctx, user.ID, models.NotificationBookingConfirmed,
			"Réservation confirmée",
			fmt.Sprintf("Votre appel avec %s du %s est confirmé.", creator.Name, booking.CallDateTime.Format("02/01/2006 15:04")),
			"/dashboard/user/bookings/"+booking.ID)
	}

	s.notifyCreator(ctx, creator, models.NotificationNewBooking,
		"Nouvelle réservation",
		fmt.Sprintf("Nouvel appel réservé le %s (%s).", booking.CallDateTime.Format("02/01/2006 15:04"),
			utils.FormatAmount(payment.CreatorAmount, payment.Currency)),
		"/dashboard/creator/bookings/"+booking.ID,
		utils.NewBookingEmail(creator, booking, payment, s.cfg.AppURL))
}
