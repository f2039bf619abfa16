package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callastar_back_end/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const payoutRequestColumns = `id, creator_id, total_amount, payment_count, currency, status,
	requested_by, approved_by, approved_at, rejected_by, rejection_reason, failure_reason,
	stripe_transfer_id, completed_at, reversal_id, reversal_reason, reversed_at, created_at, updated_at`

func scanPayoutRequest(row rowScanner) (*models.PayoutRequest, error) {
	var pr models.PayoutRequest
	err := row.Scan(&pr.ID, &pr.CreatorID, &pr.TotalAmount, &pr.PaymentCount, &pr.Currency, &pr.Status,
		&pr.RequestedBy, &pr.ApprovedBy, &pr.ApprovedAt, &pr.RejectedBy, &pr.RejectionReason, &pr.FailureReason,
		&pr.StripeTransferID, &pr.CompletedAt, &pr.ReversalID, &pr.ReversalReason, &pr.ReversedAt,
		&pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func statusStrings(statuses []models.PayoutRequestStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// CreatePayoutRequest regroupe les paiements READY libres du créateur dans une nouvelle demande.
// Les lignes sélectionnées sont verrouillées (SKIP LOCKED) ; l'index unique partiel sur
// payout_request_payments garantit qu'un paiement n'appartient qu'à une demande active.
func (r *PostgresRepository) CreatePayoutRequest(ctx context.Context, in NewPayoutRequest) (*models.PayoutRequest, error) {
	var created *models.PayoutRequest
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT p.id, p.creator_amount
			FROM payments p
			WHERE p.creator_id = $1
			  AND p.currency = $2
			  AND p.payout_status = 'READY'
			  AND p.status = 'SUCCEEDED'
			  AND NOT EXISTS (
				SELECT 1 FROM payout_request_payments l
				WHERE l.payment_id = p.id AND l.active
			  )
			ORDER BY p.created_at
			FOR UPDATE OF p SKIP LOCKED`, in.CreatorID, in.Currency)
		if err != nil {
			return fmt.Errorf("sélection paiements READY: %w", err)
		}

		var ids []string
		total := decimal.Zero
		for rows.Next() {
			var id string
			var amount decimal.Decimal
			if err := rows.Scan(&id, &amount); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
			total = total.Add(amount)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(ids) == 0 {
			return ErrNoReadyPayments
		}
		if total.LessThan(in.MinAmount) {
			return ErrBelowMinimum
		}

		created, err = scanPayoutRequest(tx.QueryRow(ctx, `
			INSERT INTO payout_requests (id, creator_id, total_amount, payment_count, currency, status,
				requested_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			RETURNING `+payoutRequestColumns,
			in.ID, in.CreatorID, total, len(ids), in.Currency, string(in.Status), in.RequestedBy, in.CreatedAt))
		if err != nil {
			return fmt.Errorf("insertion demande de versement: %w", err)
		}

		for _, id := range ids {
			if _, err := tx.Exec(ctx, `
				INSERT INTO payout_request_payments (payout_request_id, payment_id, active)
				VALUES ($1, $2, TRUE)`, in.ID, id); err != nil {
				if IsUniqueViolation(err) {
					return ErrPaymentAlreadyBundled
				}
				return fmt.Errorf("liaison paiement %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PostgresRepository) FindPayoutRequestByID(ctx context.Context, id string) (*models.PayoutRequest, error) {
	pr, err := scanPayoutRequest(r.db.QueryRow(ctx, `SELECT `+payoutRequestColumns+` FROM payout_requests WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrPayoutRequestNotFound)
	}
	return pr, nil
}

// FindActivePayoutRequestForPayment retourne la demande active contenant le paiement.
func (r *PostgresRepository) FindActivePayoutRequestForPayment(ctx context.Context, paymentID string) (*models.PayoutRequest, error) {
	pr, err := scanPayoutRequest(r.db.QueryRow(ctx, `
		SELECT `+prefixColumns("r", payoutRequestColumns)+`
		FROM payout_requests r
		JOIN payout_request_payments l ON l.payout_request_id = r.id
		WHERE l.payment_id = $1 AND l.active`, paymentID))
	if err != nil {
		return nil, notFound(err, ErrPayoutRequestNotFound)
	}
	return pr, nil
}

func (r *PostgresRepository) ListPayoutRequests(ctx context.Context, f PayoutRequestFilter) ([]models.PayoutRequest, error) {
	var conds []string
	var args []any
	if f.CreatorID != "" {
		args = append(args, f.CreatorID)
		conds = append(conds, fmt.Sprintf("creator_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + payoutRequestColumns + ` FROM payout_requests`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PayoutRequest
	for rows.Next() {
		pr, err := scanPayoutRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

// ListPayoutRequestPayments retourne tous les paiements liés à la demande, actifs ou non.
func (r *PostgresRepository) ListPayoutRequestPayments(ctx context.Context, requestID string) ([]models.Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+prefixColumns("p", paymentColumns)+`
		FROM payments p
		JOIN payout_request_payments l ON l.payment_id = p.id
		WHERE l.payout_request_id = $1
		ORDER BY p.created_at`, requestID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

// resolveMiss distingue une demande absente d'une transition refusée après un UPDATE sans effet.
func resolveMiss(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payout_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrPayoutRequestNotFound
	}
	return ErrInvalidTransition
}

// TransitionPayoutRequest applique from -> to de façon conditionnelle.
// REJECTED et FAILED désactivent les liens : les paiements redeviennent sélectionnables.
func (r *PostgresRepository) TransitionPayoutRequest(ctx context.Context, id string, from []models.PayoutRequestStatus, to models.PayoutRequestStatus, upd PayoutRequestUpdate) (*models.PayoutRequest, error) {
	var updated *models.PayoutRequest
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		updated, err = scanPayoutRequest(tx.QueryRow(ctx, `
			UPDATE payout_requests SET
				status = $3,
				approved_by = COALESCE($4, approved_by),
				approved_at = COALESCE($5, approved_at),
				rejected_by = COALESCE($6, rejected_by),
				rejection_reason = COALESCE($7, rejection_reason),
				failure_reason = COALESCE($8, failure_reason),
				updated_at = $9
			WHERE id = $1 AND status = ANY($2)
			RETURNING `+payoutRequestColumns,
			id, statusStrings(from), string(to), upd.ApprovedBy, upd.ApprovedAt, upd.RejectedBy,
			upd.RejectionReason, upd.FailureReason, upd.At))
		if errors.Is(err, pgx.ErrNoRows) {
			return resolveMiss(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("transition demande %s: %w", id, err)
		}

		if !to.IsActive() {
			if _, err := tx.Exec(ctx, `
				UPDATE payout_request_payments SET active = FALSE
				WHERE payout_request_id = $1 AND active`, id); err != nil {
				return fmt.Errorf("désactivation liens: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PostgresRepository) SetPayoutRequestTransferID(ctx context.Context, id, transferID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payout_requests SET stripe_transfer_id = COALESCE(stripe_transfer_id, $2), updated_at = NOW()
		WHERE id = $1`, id, transferID)
	return err
}

// CompletePayoutRequest marque la demande COMPLETED et ses paiements actifs PAID.
func (r *PostgresRepository) CompletePayoutRequest(ctx context.Context, id, transferID string, at time.Time) (*models.PayoutRequest, error) {
	var completed *models.PayoutRequest
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		completed, err = scanPayoutRequest(tx.QueryRow(ctx, `
			UPDATE payout_requests
			SET status = 'COMPLETED', stripe_transfer_id = $3, completed_at = $4, updated_at = $4
			WHERE id = $1 AND status = ANY($2)
			RETURNING `+payoutRequestColumns,
			id, statusStrings(CompletableStatuses), transferID, at))
		if errors.Is(err, pgx.ErrNoRows) {
			return resolveMiss(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("complétion demande %s: %w", id, err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE payments
			SET payout_status = 'PAID', stripe_transfer_id = $2, payout_date = $3, updated_at = $3
			WHERE payout_status = 'READY'
			  AND id IN (SELECT payment_id FROM payout_request_payments WHERE payout_request_id = $1 AND active)`,
			id, transferID, at)
		if err != nil {
			return fmt.Errorf("paiements PAID: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// ReversePayoutRequest marque la demande REVERSED et ses paiements actifs REVERSED.
func (r *PostgresRepository) ReversePayoutRequest(ctx context.Context, id, reversalID, reason string, at time.Time) (*models.PayoutRequest, error) {
	var reversed *models.PayoutRequest
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		reversed, err = scanPayoutRequest(tx.QueryRow(ctx, `
			UPDATE payout_requests
			SET status = 'REVERSED', reversal_id = $3, reversal_reason = $4, reversed_at = $5, updated_at = $5
			WHERE id = $1 AND status = ANY($2)
			RETURNING `+payoutRequestColumns,
			id, statusStrings(ReversibleStatuses), reversalID, reason, at))
		if errors.Is(err, pgx.ErrNoRows) {
			return resolveMiss(ctx, tx, id)
		}
		if err != nil {
			return fmt.Errorf("annulation demande %s: %w", id, err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE payments
			SET payout_status = 'REVERSED', updated_at = $2
			WHERE payout_status IN ('READY', 'PAID')
			  AND id IN (SELECT payment_id FROM payout_request_payments WHERE payout_request_id = $1 AND active)`,
			id, at)
		if err != nil {
			return fmt.Errorf("paiements REVERSED: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversed, nil
}
