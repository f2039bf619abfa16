// Package store persiste le grand livre paiements / versements.
package store

import (
	"context"
	"errors"
	"time"

	"callastar_back_end/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrBookingNotFound       = errors.New("booking not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrCreatorNotFound       = errors.New("creator not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrDuplicatePayment      = errors.New("payment already exists for booking")
	ErrPayoutRequestNotFound = errors.New("payout request not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNoReadyPayments       = errors.New("no ready payments")
	ErrBelowMinimum          = errors.New("payout total below minimum")
	ErrPaymentAlreadyBundled = errors.New("payment already linked to an active payout request")
	ErrDebtNotFound          = errors.New("debt not found")
	ErrDuplicateDebt         = errors.New("debt already recorded")
	ErrAlreadyReconciled     = errors.New("debt already reconciled")
	ErrPaymentNotDeductible  = errors.New("payment already paid out or bundled")
)

// NewPayoutRequest décrit la création d'un lot de paiements READY.
type NewPayoutRequest struct {
	ID          string
	CreatorID   string
	Status      models.PayoutRequestStatus
	RequestedBy string
	Currency    string
	MinAmount   decimal.Decimal
	CreatedAt   time.Time
}

// PayoutRequestUpdate porte les champs optionnels d'une transition.
// Seuls les champs non nil sont écrits.
type PayoutRequestUpdate struct {
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectedBy      *string
	RejectionReason *string
	FailureReason   *string
	At              time.Time
}

type PayoutRequestFilter struct {
	CreatorID string
	Status    models.PayoutRequestStatus
	Limit     int
	Offset    int
}

type DebtFilter struct {
	CreatorID        string
	Kind             models.DebtKind
	UnreconciledOnly bool
	Limit            int
}

// UnpaidDeduction retire une dette de la part créateur d'un paiement pas encore versé.
// Refunded passe le paiement en REFUNDED : il ne sera ni libéré ni regroupé.
type UnpaidDeduction struct {
	PaymentID string
	Amount    decimal.Decimal
	Refunded  bool
	At        time.Time
}

// ReconcileInput décrit la régularisation unique d'une dette.
type ReconcileInput struct {
	Kind       models.DebtKind
	ID         string
	Method     models.ReconciliationMethod
	ReversalID *string
	At         time.Time
}

// Repository est l'accès au grand livre utilisé par le service.
type Repository interface {
	FindBookingByID(ctx context.Context, id string) (*models.Booking, error)
	SetBookingRoom(ctx context.Context, bookingID, roomName, roomURL string) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
	FindCreatorByID(ctx context.Context, id string) (*models.Creator, error)
	FindCreatorByUserID(ctx context.Context, userID string) (*models.Creator, error)
	ListCreatorsWithReadyPayments(ctx context.Context) ([]string, error)
	SetCreatorPayoutBlock(ctx context.Context, creatorID string, blocked bool, reason string, at time.Time) (bool, error)
	CreateNotification(ctx context.Context, n *models.Notification) error

	CreatePaymentForBooking(ctx context.Context, p *models.Payment) error
	FindPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	FindPaymentByBookingID(ctx context.Context, bookingID string) (*models.Payment, error)
	FindPaymentByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	MarkPaymentSucceeded(ctx context.Context, id string) (bool, error)
	ReleaseHeldPayments(ctx context.Context, now time.Time) (map[string]int64, error)
	DeductUnpaidPayment(ctx context.Context, in UnpaidDeduction) (*models.Payment, error)
	ListPaymentsByCreator(ctx context.Context, creatorID string, limit, offset int) ([]models.Payment, error)
	CreatorBalance(ctx context.Context, creatorID string) (*models.CreatorBalance, error)

	CreatePayoutRequest(ctx context.Context, in NewPayoutRequest) (*models.PayoutRequest, error)
	FindPayoutRequestByID(ctx context.Context, id string) (*models.PayoutRequest, error)
	FindActivePayoutRequestForPayment(ctx context.Context, paymentID string) (*models.PayoutRequest, error)
	ListPayoutRequests(ctx context.Context, f PayoutRequestFilter) ([]models.PayoutRequest, error)
	ListPayoutRequestPayments(ctx context.Context, requestID string) ([]models.Payment, error)
	TransitionPayoutRequest(ctx context.Context, id string, from []models.PayoutRequestStatus, to models.PayoutRequestStatus, upd PayoutRequestUpdate) (*models.PayoutRequest, error)
	SetPayoutRequestTransferID(ctx context.Context, id, transferID string) error
	CompletePayoutRequest(ctx context.Context, id, transferID string, at time.Time) (*models.PayoutRequest, error)
	ReversePayoutRequest(ctx context.Context, id, reversalID, reason string, at time.Time) (*models.PayoutRequest, error)

	CreateDebt(ctx context.Context, d *models.Debt) error
	FindDebt(ctx context.Context, kind models.DebtKind, id string) (*models.Debt, error)
	FindDebtByExternalID(ctx context.Context, kind models.DebtKind, externalID string) (*models.Debt, error)
	ListDebts(ctx context.Context, f DebtFilter) ([]models.Debt, error)
	ReconcileDebt(ctx context.Context, in ReconcileInput) (*models.Debt, error)
	SumUnreconciledDebt(ctx context.Context, creatorID string) (decimal.Decimal, error)
}

// Demandes pouvant encore être complétées ou annulées par un événement de transfert.
var (
	CompletableStatuses = []models.PayoutRequestStatus{models.PayoutRequestApproved, models.PayoutRequestProcessing}
	ReversibleStatuses  = []models.PayoutRequestStatus{models.PayoutRequestApproved, models.PayoutRequestProcessing, models.PayoutRequestCompleted}
)
