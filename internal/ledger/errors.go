package ledger

import "errors"

var (
	ErrPayoutsBlocked              = errors.New("creator payouts are blocked")
	ErrNoConnectedAccount          = errors.New("creator has no connected account")
	ErrInsufficientBalance         = errors.New("insufficient platform balance")
	ErrProcessorUnavailable        = errors.New("payment processor unavailable")
	ErrTransferFailed              = errors.New("transfer failed")
	ErrRefundFailed                = errors.New("refund failed")
	ErrReasonRequired              = errors.New("reason is required")
	ErrInvalidRefundAmount         = errors.New("invalid refund amount")
	ErrPaymentNotRefundable        = errors.New("payment cannot be refunded")
	ErrInvalidReconciliationMethod = errors.New("invalid reconciliation method")
	ErrInvalidDebtKind             = errors.New("invalid debt kind")
)
