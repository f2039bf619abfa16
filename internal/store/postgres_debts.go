package store

import (
	"context"
	"errors"
	"fmt"

	"callastar_back_end/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// debtTable associe un type de dette à sa table et à sa colonne d'identifiant Stripe.
func debtTable(kind models.DebtKind) (table, externalColumn, createdByExpr string, err error) {
	switch kind {
	case models.DebtKindRefund:
		return "refunds", "stripe_refund_id", "requested_by", nil
	case models.DebtKindDispute:
		return "disputes", "stripe_dispute_id", "''", nil
	default:
		return "", "", "", fmt.Errorf("type de dette inconnu: %q", kind)
	}
}

func debtSelect(kind models.DebtKind) (string, error) {
	table, ext, createdBy, err := debtTable(kind)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`SELECT '%s', id, payment_id, creator_id, amount, status, creator_debt, reason,
		%s, %s, reconciled, reconciled_at, reconciled_by, reversal_id, created_at FROM %s`,
		kind, ext, createdBy, table), nil
}

func scanDebt(row rowScanner) (*models.Debt, error) {
	var d models.Debt
	err := row.Scan(&d.Kind, &d.ID, &d.PaymentID, &d.CreatorID, &d.Amount, &d.Status, &d.CreatorDebt,
		&d.Reason, &d.ExternalID, &d.CreatedBy, &d.Reconciled, &d.ReconciledAt, &d.ReconciledBy,
		&d.ReversalID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDebt enregistre un remboursement ou un litige ; l'identifiant Stripe est unique.
func (r *PostgresRepository) CreateDebt(ctx context.Context, d *models.Debt) error {
	var err error
	switch d.Kind {
	case models.DebtKindRefund:
		_, err = r.db.Exec(ctx, `
			INSERT INTO refunds (id, payment_id, creator_id, amount, status, creator_debt, reason,
				stripe_refund_id, requested_by, reconciled, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10)`,
			d.ID, d.PaymentID, d.CreatorID, d.Amount, d.Status, d.CreatorDebt, d.Reason,
			d.ExternalID, d.CreatedBy, d.CreatedAt)
	case models.DebtKindDispute:
		_, err = r.db.Exec(ctx, `
			INSERT INTO disputes (id, payment_id, creator_id, amount, status, creator_debt, reason,
				stripe_dispute_id, reconciled, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)`,
			d.ID, d.PaymentID, d.CreatorID, d.Amount, d.Status, d.CreatorDebt, d.Reason,
			d.ExternalID, d.CreatedAt)
	default:
		return fmt.Errorf("type de dette inconnu: %q", d.Kind)
	}
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateDebt
		}
		return fmt.Errorf("insertion %s: %w", d.Kind, err)
	}
	return nil
}

func (r *PostgresRepository) FindDebt(ctx context.Context, kind models.DebtKind, id string) (*models.Debt, error) {
	query, err := debtSelect(kind)
	if err != nil {
		return nil, err
	}
	d, err := scanDebt(r.db.QueryRow(ctx, query+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrDebtNotFound)
	}
	return d, nil
}

func (r *PostgresRepository) FindDebtByExternalID(ctx context.Context, kind models.DebtKind, externalID string) (*models.Debt, error) {
	query, err := debtSelect(kind)
	if err != nil {
		return nil, err
	}
	_, ext, _, _ := debtTable(kind)
	d, err := scanDebt(r.db.QueryRow(ctx, query+` WHERE `+ext+` = $1`, externalID))
	if err != nil {
		return nil, notFound(err, ErrDebtNotFound)
	}
	return d, nil
}

func (r *PostgresRepository) ListDebts(ctx context.Context, f DebtFilter) ([]models.Debt, error) {
	kinds := []models.DebtKind{models.DebtKindRefund, models.DebtKindDispute}
	if f.Kind != "" {
		kinds = []models.DebtKind{f.Kind}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []models.Debt
	for _, kind := range kinds {
		query, err := debtSelect(kind)
		if err != nil {
			return nil, err
		}
		query += ` WHERE ($1 = '' OR creator_id = $1) AND (NOT $2 OR NOT reconciled)
			ORDER BY created_at DESC LIMIT $3`

		rows, err := r.db.Query(ctx, query, f.CreatorID, f.UnreconciledOnly, limit)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			d, err := scanDebt(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, *d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReconcileDebt régularise une dette une seule fois (garde WHERE reconciled = false).
func (r *PostgresRepository) ReconcileDebt(ctx context.Context, in ReconcileInput) (*models.Debt, error) {
	table, _, _, err := debtTable(in.Kind)
	if err != nil {
		return nil, err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE `+table+`
		SET reconciled = TRUE, reconciled_at = $2, reconciled_by = $3, reversal_id = COALESCE($4, reversal_id)
		WHERE id = $1 AND NOT reconciled`,
		in.ID, in.At, string(in.Method), in.ReversalID)
	if err != nil {
		return nil, fmt.Errorf("régularisation %s %s: %w", in.Kind, in.ID, err)
	}

	d, err := r.FindDebt(ctx, in.Kind, in.ID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return d, ErrAlreadyReconciled
	}
	return d, nil
}

// SumUnreconciledDebt additionne la dette créateur non régularisée (remboursements + litiges).
func (r *PostgresRepository) SumUnreconciledDebt(ctx context.Context, creatorID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(creator_debt), 0) FROM (
			SELECT creator_debt FROM refunds WHERE creator_id = $1 AND NOT reconciled
			UNION ALL
			SELECT creator_debt FROM disputes WHERE creator_id = $1 AND NOT reconciled
		) open_debts`, creatorID).Scan(&total)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("somme dette: %w", err)
	}
	return total, nil
}
