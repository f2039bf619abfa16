package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callastar_back_end/internal/models"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, booking_id, creator_id, amount, platform_fee, creator_amount, currency,
	status, payout_status, payout_release_date, stripe_payment_intent_id, stripe_transfer_id,
	payout_date, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.CreatorID, &p.Amount, &p.PlatformFee, &p.CreatorAmount,
		&p.Currency, &p.Status, &p.PayoutStatus, &p.PayoutReleaseDate, &p.StripePaymentIntentID,
		&p.StripeTransferID, &p.PayoutDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]models.Payment, error) {
	defer rows.Close()
	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// CreatePaymentForBooking insère le paiement et confirme la réservation dans la même transaction.
// La contrainte d'unicité sur booking_id / payment intent est le signal d'idempotence.
func (r *PostgresRepository) CreatePaymentForBooking(ctx context.Context, p *models.Payment) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO payments (`+paymentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			p.ID, p.BookingID, p.CreatorID, p.Amount, p.PlatformFee, p.CreatorAmount, p.Currency,
			string(p.Status), string(p.PayoutStatus), p.PayoutReleaseDate, p.StripePaymentIntentID,
			p.StripeTransferID, p.PayoutDate, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			if IsUniqueViolation(err) {
				return ErrDuplicatePayment
			}
			return fmt.Errorf("insertion paiement: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE bookings SET status = $2
			WHERE id = $1 AND status = $3`,
			p.BookingID, string(models.BookingStatusConfirmed), string(models.BookingStatusPending)); err != nil {
			return fmt.Errorf("confirmation réservation: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) findPayment(ctx context.Context, where string, arg any) (*models.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE `+where+` = $1`, arg))
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return p, nil
}

func (r *PostgresRepository) FindPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.findPayment(ctx, "id", id)
}

func (r *PostgresRepository) FindPaymentByBookingID(ctx context.Context, bookingID string) (*models.Payment, error) {
	return r.findPayment(ctx, "booking_id", bookingID)
}

func (r *PostgresRepository) FindPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	return r.findPayment(ctx, "stripe_payment_intent_id", intentID)
}

func (r *PostgresRepository) MarkPaymentSucceeded(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payments SET status = 'SUCCEEDED', updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'FAILED')`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseHeldPayments passe HELD -> READY tous les paiements dont la date de libération est échue.
// Retourne le nombre de paiements libérés par créateur.
func (r *PostgresRepository) ReleaseHeldPayments(ctx context.Context, now time.Time) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE payments SET payout_status = 'READY', updated_at = $1
		WHERE payout_status = 'HELD' AND status = 'SUCCEEDED' AND payout_release_date <= $1
		RETURNING creator_id`, now)
	if err != nil {
		return nil, fmt.Errorf("libération paiements: %w", err)
	}
	defer rows.Close()

	released := map[string]int64{}
	for rows.Next() {
		var creatorID string
		if err := rows.Scan(&creatorID); err != nil {
			return nil, err
		}
		released[creatorID]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("libération paiements: %w", err)
	}
	return released, nil
}

// DeductUnpaidPayment réduit la part créateur d'un paiement HELD ou READY hors de toute demande active.
// La part ne descend jamais sous zéro.
func (r *PostgresRepository) DeductUnpaidPayment(ctx context.Context, in UnpaidDeduction) (*models.Payment, error) {
	status := string(models.PaymentStatusSucceeded)
	if in.Refunded {
		status = string(models.PaymentStatusRefunded)
	}
	p, err := scanPayment(r.db.QueryRow(ctx, `
		UPDATE payments p
		SET creator_amount = GREATEST(p.creator_amount - $2, 0), status = $3, updated_at = $4
		WHERE p.id = $1
		  AND p.status = 'SUCCEEDED'
		  AND p.payout_status IN ('HELD', 'READY')
		  AND NOT EXISTS (
			SELECT 1 FROM payout_request_payments l
			WHERE l.payment_id = p.id AND l.active
		  )
		RETURNING `+prefixColumns("p", paymentColumns), in.PaymentID, in.Amount, status, in.At))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, findErr := r.FindPaymentByID(ctx, in.PaymentID); findErr != nil {
			return nil, findErr
		}
		return nil, ErrPaymentNotDeductible
	}
	if err != nil {
		return nil, fmt.Errorf("déduction paiement %s: %w", in.PaymentID, err)
	}
	return p, nil
}

func (r *PostgresRepository) ListPaymentsByCreator(ctx context.Context, creatorID string, limit, offset int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE creator_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, creatorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// CreatorBalance agrège les montants créateur par état de versement.
func (r *PostgresRepository) CreatorBalance(ctx context.Context, creatorID string) (*models.CreatorBalance, error) {
	creator, err := r.FindCreatorByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	b := models.CreatorBalance{CreatorID: creatorID, PayoutBlocked: creator.PayoutBlocked}
	err = r.db.QueryRow(ctx, `
		SELECT
			COALESCE(MAX(p.currency), ''),
			COALESCE(SUM(p.creator_amount) FILTER (WHERE p.payout_status = 'HELD'), 0),
			COALESCE(SUM(p.creator_amount) FILTER (WHERE p.payout_status = 'READY' AND l.payment_id IS NULL), 0),
			COALESCE(SUM(p.creator_amount) FILTER (WHERE p.payout_status = 'READY' AND l.payment_id IS NOT NULL), 0),
			COALESCE(SUM(p.creator_amount) FILTER (WHERE p.payout_status = 'PAID'), 0),
			COALESCE(SUM(p.creator_amount) FILTER (WHERE p.payout_status = 'REVERSED'), 0)
		FROM payments p
		LEFT JOIN payout_request_payments l ON l.payment_id = p.id AND l.active
		WHERE p.creator_id = $1 AND p.status = 'SUCCEEDED'`, creatorID).Scan(
		&b.Currency, &b.Held, &b.Ready, &b.InPayout, &b.Paid, &b.Reversed)
	if err != nil {
		return nil, fmt.Errorf("solde créateur: %w", err)
	}

	if b.UnreconciledDebt, err = r.SumUnreconciledDebt(ctx, creatorID); err != nil {
		return nil, err
	}
	return &b, nil
}
