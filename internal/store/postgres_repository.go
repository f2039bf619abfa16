package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callastar_back_end/internal/models"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implémente Repository sur PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

// rowScanner couvre pgx.Row et pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// IsUniqueViolation indique une violation de contrainte d'unicité (23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

const bookingColumns = `id, user_id, creator_id, total_price, currency, call_date_time,
	duration_minutes, status, daily_room_name, daily_room_url, created_at`

func (r *PostgresRepository) FindBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id).Scan(
		&b.ID, &b.UserID, &b.CreatorID, &b.TotalPrice, &b.Currency, &b.CallDateTime,
		&b.DurationMinutes, &b.Status, &b.DailyRoomName, &b.DailyRoomURL, &b.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, ErrBookingNotFound)
	}
	return &b, nil
}

// SetBookingRoom n'écrase jamais une salle existante.
func (r *PostgresRepository) SetBookingRoom(ctx context.Context, bookingID, roomName, roomURL string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE bookings SET daily_room_name = $2, daily_room_url = $3
		WHERE id = $1 AND daily_room_url IS NULL`, bookingID, roomName, roomURL)
	return err
}

func (r *PostgresRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `SELECT id, name, email, role FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return &u, nil
}

func (r *PostgresRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, email, role FROM users WHERE role = $1 ORDER BY id`, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role); err != nil {
			return nil, err
		}
		admins = append(admins, u)
	}
	return admins, rows.Err()
}

const creatorSelect = `SELECT c.id, c.user_id, u.name, u.email, c.stripe_account_id,
	c.payout_blocked, c.payout_block_reason, c.payout_blocked_at
	FROM creators c JOIN users u ON u.id = c.user_id`

func scanCreator(row rowScanner) (*models.Creator, error) {
	var c models.Creator
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.StripeAccountID,
		&c.PayoutBlocked, &c.PayoutBlockReason, &c.PayoutBlockedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) FindCreatorByID(ctx context.Context, id string) (*models.Creator, error) {
	c, err := scanCreator(r.db.QueryRow(ctx, creatorSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrCreatorNotFound)
	}
	return c, nil
}

func (r *PostgresRepository) FindCreatorByUserID(ctx context.Context, userID string) (*models.Creator, error) {
	c, err := scanCreator(r.db.QueryRow(ctx, creatorSelect+` WHERE c.user_id = $1`, userID))
	if err != nil {
		return nil, notFound(err, ErrCreatorNotFound)
	}
	return c, nil
}

// ListCreatorsWithReadyPayments retourne les créateurs non bloqués ayant des paiements READY libres.
func (r *PostgresRepository) ListCreatorsWithReadyPayments(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT p.creator_id
		FROM payments p
		JOIN creators c ON c.id = p.creator_id
		WHERE p.payout_status = 'READY'
		  AND p.status = 'SUCCEEDED'
		  AND NOT c.payout_blocked
		  AND NOT EXISTS (
			SELECT 1 FROM payout_request_payments l
			WHERE l.payment_id = p.id AND l.active
		  )
		ORDER BY p.creator_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetCreatorPayoutBlock bascule le blocage ; retourne false si l'état était déjà celui demandé.
func (r *PostgresRepository) SetCreatorPayoutBlock(ctx context.Context, creatorID string, blocked bool, reason string, at time.Time) (bool, error) {
	var tag pgconn.CommandTag
	var err error
	if blocked {
		tag, err = r.db.Exec(ctx, `
			UPDATE creators
			SET payout_blocked = TRUE, payout_block_reason = $2, payout_blocked_at = $3
			WHERE id = $1 AND NOT payout_blocked`, creatorID, reason, at)
	} else {
		tag, err = r.db.Exec(ctx, `
			UPDATE creators
			SET payout_blocked = FALSE, payout_block_reason = NULL, payout_blocked_at = NULL
			WHERE id = $1 AND payout_blocked`, creatorID)
	}
	if err != nil {
		return false, fmt.Errorf("mise à jour blocage créateur: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, link, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.Link, n.Read, n.CreatedAt)
	return err
}
