package utils

import (
	"fmt"
	"strings"
	"time"

	"callastar_back_end/internal/models"

	"github.com/shopspring/decimal"
)

const dateLayout = "02/01/2006 15:04"

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func link(appURL, path string) string {
	return strings.TrimRight(appURL, "/") + path
}

// BookingConfirmationEmail est envoyé au client après le paiement.
func BookingConfirmationEmail(user *models.User, creator *models.Creator, booking *models.Booking, appURL string) EmailContent {
	rows := []EmailRow{
		{Label: "Créateur", Value: creator.Name},
		{Label: "Date de l'appel", Value: booking.CallDateTime.Format(dateLayout)},
		{Label: "Durée", Value: fmt.Sprintf("%d minutes", booking.DurationMinutes)},
	}
	if booking.HasRoom() {
		rows = append(rows, EmailRow{Label: "Salle vidéo", Value: *booking.DailyRoomURL})
	}
	return EmailContent{
		Subject:       "✅ Réservation confirmée - Call a Star",
		Icon:          "✅",
		Title:         "Réservation confirmée",
		Subtitle:      "Votre appel est réservé",
		RecipientName: user.Name,
		Paragraphs: []string{
			fmt.Sprintf("Votre appel avec %s est confirmé.", creator.Name),
			"Le lien de l'appel sera également disponible depuis votre espace.",
		},
		Rows:     rows,
		CTALabel: "Voir ma réservation",
		CTAURL:   link(appURL, "/dashboard/user/bookings/"+booking.ID),
	}
}

// PaymentReceiptEmail est le reçu de paiement envoyé au client.
func PaymentReceiptEmail(user *models.User, payment *models.Payment, appURL string) EmailContent {
	return EmailContent{
		Subject:       "🧾 Reçu de paiement - Call a Star",
		Icon:          "🧾",
		Title:         "Reçu de paiement",
		RecipientName: user.Name,
		Paragraphs:    []string{"Nous avons bien reçu votre paiement."},
		Rows: []EmailRow{
			{Label: "Référence", Value: "#" + shortID(payment.ID)},
			{Label: "Montant", Value: FormatAmount(payment.Amount, payment.Currency)},
			{Label: "Date", Value: payment.CreatedAt.Format(dateLayout)},
		},
		CTALabel: "Mes paiements",
		CTAURL:   link(appURL, "/dashboard/user/payments"),
	}
}

// NewBookingEmail prévient le créateur d'une nouvelle réservation payée.
func NewBookingEmail(creator *models.Creator, booking *models.Booking, payment *models.Payment, appURL string) EmailContent {
	return EmailContent{
		Subject:       "📅 Nouvelle réservation - Call a Star",
		Icon:          "📅",
		Title:         "Nouvelle réservation",
		RecipientName: creator.Name,
		Paragraphs: []string{
			"Un fan vient de réserver un appel avec vous.",
			fmt.Sprintf("Vos revenus seront disponibles pour versement à partir du %s.", payment.PayoutReleaseDate.Format(dateLayout)),
		},
		Rows: []EmailRow{
			{Label: "Date de l'appel", Value: booking.CallDateTime.Format(dateLayout)},
			{Label: "Durée", Value: fmt.Sprintf("%d minutes", booking.DurationMinutes)},
			{Label: "Vos revenus", Value: FormatAmount(payment.CreatorAmount, payment.Currency)},
		},
		CTALabel: "Voir mes réservations",
		CTAURL:   link(appURL, "/dashboard/creator/bookings"),
	}
}

// PayoutCompletedEmail confirme le transfert d'un lot de paiements.
func PayoutCompletedEmail(creator *models.Creator, request *models.PayoutRequest, appURL string) EmailContent {
	rows := []EmailRow{
		{Label: "Montant", Value: FormatAmount(request.TotalAmount, request.Currency)},
		{Label: "Paiements inclus", Value: fmt.Sprintf("%d", request.PaymentCount)},
	}
	if request.StripeTransferID != nil {
		rows = append(rows, EmailRow{Label: "Référence du transfert", Value: *request.StripeTransferID})
	}
	return EmailContent{
		Subject:       "💸 Versement effectué - Call a Star",
		Icon:          "💸",
		Title:         "Versement effectué",
		RecipientName: creator.Name,
		Paragraphs:    []string{"Votre versement a été transféré vers votre compte connecté."},
		Rows:          rows,
		CTALabel:      "Voir mes versements",
		CTAURL:        link(appURL, "/dashboard/creator/payouts"),
	}
}

// PayoutReversedEmail est une alerte : un versement a été annulé par le processeur.
func PayoutReversedEmail(creator *models.Creator, request *models.PayoutRequest, reason, appURL string) EmailContent {
	return EmailContent{
		Subject:       "🚨 Versement annulé - action requise",
		Icon:          "🚨",
		Title:         "Versement annulé",
		Subtitle:      "Action requise",
		RecipientName: creator.Name,
		Paragraphs: []string{
			"Un versement effectué vers votre compte a été annulé.",
			"Motif : " + reason,
			"Merci de contacter le support afin de régulariser la situation.",
		},
		Rows: []EmailRow{
			{Label: "Montant", Value: FormatAmount(request.TotalAmount, request.Currency)},
			{Label: "Demande", Value: "#" + shortID(request.ID)},
		},
		CTALabel: "Contacter le support",
		CTAURL:   link(appURL, "/support"),
		Urgent:   true,
	}
}

// PayoutRejectedEmail informe le créateur du rejet d'une demande de versement.
func PayoutRejectedEmail(creator *models.Creator, request *models.PayoutRequest, reason, appURL string) EmailContent {
	return EmailContent{
		Subject:       "❌ Demande de versement refusée - Call a Star",
		Icon:          "❌",
		Title:         "Demande de versement refusée",
		RecipientName: creator.Name,
		Paragraphs: []string{
			"Votre demande de versement a été refusée par l'équipe Call a Star.",
			"Motif : " + reason,
			"Les paiements concernés restent disponibles pour une prochaine demande.",
		},
		Rows: []EmailRow{
			{Label: "Montant", Value: FormatAmount(request.TotalAmount, request.Currency)},
		},
		CTALabel: "Voir mes versements",
		CTAURL:   link(appURL, "/dashboard/creator/payouts"),
	}
}

// PayoutFailedEmail informe le créateur d'un transfert échoué.
func PayoutFailedEmail(creator *models.Creator, request *models.PayoutRequest, appURL string) EmailContent {
	return EmailContent{
		Subject:       "⚠️ Échec du versement - Call a Star",
		Icon:          "⚠️",
		Title:         "Échec du versement",
		RecipientName: creator.Name,
		Paragraphs: []string{
			"Le transfert de votre versement n'a pas pu être effectué.",
			"Les paiements concernés restent disponibles et seront inclus dans une prochaine demande.",
		},
		Rows: []EmailRow{
			{Label: "Montant", Value: FormatAmount(request.TotalAmount, request.Currency)},
		},
		CTALabel: "Voir mes versements",
		CTAURL:   link(appURL, "/dashboard/creator/payouts"),
	}
}

// PayoutsBlockedEmail prévient le créateur que ses versements sont suspendus.
func PayoutsBlockedEmail(creator *models.Creator, debt decimal.Decimal, currency, appURL string) EmailContent {
	return EmailContent{
		Subject:       "🚫 Versements suspendus - Call a Star",
		Icon:          "🚫",
		Title:         "Versements suspendus",
		Subtitle:      "Action requise",
		RecipientName: creator.Name,
		Paragraphs: []string{
			fmt.Sprintf("Vos versements sont suspendus : votre solde dû suite à des remboursements ou litiges atteint %s.", FormatAmount(debt, currency)),
			"Ils reprendront automatiquement dès que ce solde sera régularisé. Contactez le support pour en savoir plus.",
		},
		CTALabel: "Contacter le support",
		CTAURL:   link(appURL, "/support"),
		Urgent:   true,
	}
}

// PayoutsBlockedAdminEmail alerte un administrateur du blocage d'un créateur.
func PayoutsBlockedAdminEmail(admin *models.User, creator *models.Creator, debt decimal.Decimal, currency, appURL string) EmailContent {
	return EmailContent{
		Subject:       "🚫 Créateur bloqué : " + creator.Name,
		Icon:          "🚫",
		Title:         "Versements créateur bloqués",
		RecipientName: admin.Name,
		Paragraphs: []string{
			fmt.Sprintf("Les versements de %s ont été bloqués automatiquement.", creator.Name),
		},
		Rows: []EmailRow{
			{Label: "Créateur", Value: creator.ID},
			{Label: "Dette non régularisée", Value: FormatAmount(debt, currency)},
		},
		CTALabel: "Voir les dettes",
		CTAURL:   link(appURL, "/dashboard/admin/debts"),
	}
}

// PayoutsUnblockedEmail prévient le créateur que ses versements reprennent.
func PayoutsUnblockedEmail(creator *models.Creator, appURL string) EmailContent {
	return EmailContent{
		Subject:       "✅ Versements réactivés - Call a Star",
		Icon:          "✅",
		Title:         "Versements réactivés",
		RecipientName: creator.Name,
		Paragraphs:    []string{"Votre solde a été régularisé, vos versements sont de nouveau actifs."},
		CTALabel:      "Voir mes versements",
		CTAURL:        link(appURL, "/dashboard/creator/payouts"),
	}
}

// StatementFileName nomme le relevé PDF joint à un versement.
func StatementFileName(request *models.PayoutRequest, at time.Time) string {
	return fmt.Sprintf("releve_versement_%s_%s.pdf", at.Format("20060102"), shortID(request.ID))
}
