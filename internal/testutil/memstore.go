// Package testutil fournit des doublures en mémoire pour les tests du grand livre.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"callastar_back_end/internal/models"
	"callastar_back_end/internal/store"

	"github.com/shopspring/decimal"
)

type link struct {
	requestID string
	paymentID string
	active    bool
}

// MemoryRepository implémente store.Repository en mémoire avec les mêmes gardes
// conditionnelles que l'implémentation Postgres.
type MemoryRepository struct {
	mu sync.Mutex

	Users         map[string]*models.User
	Creators      map[string]*models.Creator
	Bookings      map[string]*models.Booking
	Payments      map[string]*models.Payment
	Requests      map[string]*models.PayoutRequest
	Debts         map[models.DebtKind]map[string]*models.Debt
	Notifications []models.Notification

	links []link

	// Err, si non nil, est retournée par CreatePaymentForBooking (panne simulée).
	Err error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		Users:    map[string]*models.User{},
		Creators: map[string]*models.Creator{},
		Bookings: map[string]*models.Booking{},
		Payments: map[string]*models.Payment{},
		Requests: map[string]*models.PayoutRequest{},
		Debts: map[models.DebtKind]map[string]*models.Debt{
			models.DebtKindRefund:  {},
			models.DebtKindDispute: {},
		},
	}
}

// --- Helpers de mise en place ---

func (r *MemoryRepository) AddUser(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Users[u.ID] = &u
}

func (r *MemoryRepository) AddCreator(c models.Creator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Creators[c.ID] = &c
}

func (r *MemoryRepository) AddBooking(b models.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Bookings[b.ID] = &b
}

func (r *MemoryRepository) AddPayment(p models.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Payments[p.ID] = &p
}

// Payment retourne une copie du paiement, nil s'il n'existe pas.
func (r *MemoryRepository) Payment(id string) *models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Payments[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *MemoryRepository) Request(id string) *models.PayoutRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.Requests[id]
	if !ok {
		return nil
	}
	cp := *pr
	return &cp
}

func (r *MemoryRepository) Creator(id string) *models.Creator {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Creators[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// ActiveRequestFor retourne l'identifiant de la demande active liée au paiement.
func (r *MemoryRepository) ActiveRequestFor(paymentID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.paymentID == paymentID && l.active {
			return l.requestID
		}
	}
	return ""
}

func (r *MemoryRepository) NotificationsFor(userID string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.Notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// --- Collaborateurs ---

func (r *MemoryRepository) FindBookingByID(_ context.Context, id string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.Bookings[id]
	if !ok {
		return nil, store.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) SetBookingRoom(_ context.Context, bookingID, roomName, roomURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.Bookings[bookingID]
	if !ok {
		return store.ErrBookingNotFound
	}
	if b.DailyRoomURL == nil {
		b.DailyRoomName = &roomName
		b.DailyRoomURL = &roomURL
	}
	return nil
}

func (r *MemoryRepository) FindUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) ListAdmins(_ context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.Users {
		if u.Role == models.RoleAdmin {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) FindCreatorByID(_ context.Context, id string) (*models.Creator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Creators[id]
	if !ok {
		return nil, store.ErrCreatorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) FindCreatorByUserID(_ context.Context, userID string) (*models.Creator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Creators {
		if c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrCreatorNotFound
}

func (r *MemoryRepository) ListCreatorsWithReadyPayments(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, p := range r.Payments {
		c, ok := r.Creators[p.CreatorID]
		if !ok || c.PayoutBlocked || seen[p.CreatorID] || !r.freeReady(p) {
			continue
		}
		seen[p.CreatorID] = true
		ids = append(ids, p.CreatorID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemoryRepository) SetCreatorPayoutBlock(_ context.Context, creatorID string, blocked bool, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Creators[creatorID]
	if !ok || c.PayoutBlocked == blocked {
		return false, nil
	}
	c.PayoutBlocked = blocked
	if blocked {
		c.PayoutBlockReason = &reason
		c.PayoutBlockedAt = &at
	} else {
		c.PayoutBlockReason = nil
		c.PayoutBlockedAt = nil
	}
	return true, nil
}

func (r *MemoryRepository) CreateNotification(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, *n)
	return nil
}

// --- Paiements ---

func (r *MemoryRepository) CreatePaymentForBooking(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, existing := range r.Payments {
		if existing.BookingID == p.BookingID || existing.StripePaymentIntentID == p.StripePaymentIntentID {
			return store.ErrDuplicatePayment
		}
	}
	cp := *p
	r.Payments[p.ID] = &cp
	if b, ok := r.Bookings[p.BookingID]; ok && b.Status == models.BookingStatusPending {
		b.Status = models.BookingStatusConfirmed
	}
	return nil
}

func (r *MemoryRepository) findPayment(match func(*models.Payment) bool) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Payments {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrPaymentNotFound
}

func (r *MemoryRepository) FindPaymentByID(_ context.Context, id string) (*models.Payment, error) {
	return r.findPayment(func(p *models.Payment) bool { return p.ID == id })
}

func (r *MemoryRepository) FindPaymentByBookingID(_ context.Context, bookingID string) (*models.Payment, error) {
	return r.findPayment(func(p *models.Payment) bool { return p.BookingID == bookingID })
}

func (r *MemoryRepository) FindPaymentByIntentID(_ context.Context, intentID string) (*models.Payment, error) {
	return r.findPayment(func(p *models.Payment) bool { return p.StripePaymentIntentID == intentID })
}

func (r *MemoryRepository) MarkPaymentSucceeded(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Payments[id]
	if !ok || (p.Status != models.PaymentStatusPending && p.Status != models.PaymentStatusFailed) {
		return false, nil
	}
	p.Status = models.PaymentStatusSucceeded
	return true, nil
}

func (r *MemoryRepository) ReleaseHeldPayments(_ context.Context, now time.Time) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	released := map[string]int64{}
	for _, p := range r.Payments {
		if p.Status == models.PaymentStatusSucceeded && p.IsReleasable(now) {
			p.PayoutStatus = models.PayoutStatusReady
			p.UpdatedAt = now
			released[p.CreatorID]++
		}
	}
	return released, nil
}

func (r *MemoryRepository) DeductUnpaidPayment(_ context.Context, in store.UnpaidDeduction) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Payments[in.PaymentID]
	if !ok {
		return nil, store.ErrPaymentNotFound
	}
	unpaid := p.PayoutStatus == models.PayoutStatusHeld || p.PayoutStatus == models.PayoutStatusReady
	if p.Status != models.PaymentStatusSucceeded || !unpaid || r.activeLink(p.ID) {
		return nil, store.ErrPaymentNotDeductible
	}
	p.CreatorAmount = decimal.Max(p.CreatorAmount.Sub(in.Amount), decimal.Zero)
	if in.Refunded {
		p.Status = models.PaymentStatusRefunded
	}
	p.UpdatedAt = in.At
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) ListPaymentsByCreator(_ context.Context, creatorID string, limit, offset int) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.Payments {
		if p.CreatorID == creatorID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *MemoryRepository) CreatorBalance(_ context.Context, creatorID string) (*models.CreatorBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Creators[creatorID]
	if !ok {
		return nil, store.ErrCreatorNotFound
	}
	b := &models.CreatorBalance{CreatorID: creatorID, PayoutBlocked: c.PayoutBlocked}
	for _, p := range r.Payments {
		if p.CreatorID != creatorID || p.Status != models.PaymentStatusSucceeded {
			continue
		}
		b.Currency = p.Currency
		switch p.PayoutStatus {
		case models.PayoutStatusHeld:
			b.Held = b.Held.Add(p.CreatorAmount)
		case models.PayoutStatusReady:
			if r.activeLink(p.ID) {
				b.InPayout = b.InPayout.Add(p.CreatorAmount)
			} else {
				b.Ready = b.Ready.Add(p.CreatorAmount)
			}
		case models.PayoutStatusPaid:
			b.Paid = b.Paid.Add(p.CreatorAmount)
		case models.PayoutStatusReversed:
			b.Reversed = b.Reversed.Add(p.CreatorAmount)
		}
	}
	b.UnreconciledDebt = r.sumDebt(creatorID)
	return b, nil
}

// --- Demandes de versement ---

func (r *MemoryRepository) activeLink(paymentID string) bool {
	for _, l := range r.links {
		if l.paymentID == paymentID && l.active {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) freeReady(p *models.Payment) bool {
	return p.PayoutStatus == models.PayoutStatusReady && p.Status == models.PaymentStatusSucceeded && !r.activeLink(p.ID)
}

func (r *MemoryRepository) CreatePayoutRequest(_ context.Context, in store.NewPayoutRequest) (*models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var selected []*models.Payment
	total := decimal.Zero
	for _, p := range r.Payments {
		if p.CreatorID == in.CreatorID && p.Currency == in.Currency && r.freeReady(p) {
			selected = append(selected, p)
			total = total.Add(p.CreatorAmount)
		}
	}
	if len(selected) == 0 {
		return nil, store.ErrNoReadyPayments
	}
	if total.LessThan(in.MinAmount) {
		return nil, store.ErrBelowMinimum
	}

	pr := &models.PayoutRequest{
		ID:           in.ID,
		CreatorID:    in.CreatorID,
		TotalAmount:  total,
		PaymentCount: len(selected),
		Currency:     in.Currency,
		Status:       in.Status,
		RequestedBy:  in.RequestedBy,
		CreatedAt:    in.CreatedAt,
		UpdatedAt:    in.CreatedAt,
	}
	r.Requests[pr.ID] = pr
	for _, p := range selected {
		r.links = append(r.links, link{requestID: pr.ID, paymentID: p.ID, active: true})
	}
	cp := *pr
	return &cp, nil
}

func (r *MemoryRepository) FindPayoutRequestByID(_ context.Context, id string) (*models.PayoutRequest, error) {
	if pr := r.Request(id); pr != nil {
		return pr, nil
	}
	return nil, store.ErrPayoutRequestNotFound
}

func (r *MemoryRepository) FindActivePayoutRequestForPayment(_ context.Context, paymentID string) (*models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.paymentID == paymentID && l.active {
			cp := *r.Requests[l.requestID]
			return &cp, nil
		}
	}
	return nil, store.ErrPayoutRequestNotFound
}

func (r *MemoryRepository) ListPayoutRequests(_ context.Context, f store.PayoutRequestFilter) ([]models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PayoutRequest
	for _, pr := range r.Requests {
		if f.CreatorID != "" && pr.CreatorID != f.CreatorID {
			continue
		}
		if f.Status != "" && pr.Status != f.Status {
			continue
		}
		out = append(out, *pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepository) ListPayoutRequestPayments(_ context.Context, requestID string) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, l := range r.links {
		if l.requestID == requestID {
			out = append(out, *r.Payments[l.paymentID])
		}
	}
	return out, nil
}

func (r *MemoryRepository) transitionLocked(id string, from []models.PayoutRequestStatus) (*models.PayoutRequest, error) {
	pr, ok := r.Requests[id]
	if !ok {
		return nil, store.ErrPayoutRequestNotFound
	}
	for _, s := range from {
		if pr.Status == s {
			return pr, nil
		}
	}
	return nil, store.ErrInvalidTransition
}

func (r *MemoryRepository) TransitionPayoutRequest(_ context.Context, id string, from []models.PayoutRequestStatus, to models.PayoutRequestStatus, upd store.PayoutRequestUpdate) (*models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, err := r.transitionLocked(id, from)
	if err != nil {
		return nil, err
	}
	pr.Status = to
	if upd.ApprovedBy != nil {
		pr.ApprovedBy = upd.ApprovedBy
	}
	if upd.ApprovedAt != nil {
		pr.ApprovedAt = upd.ApprovedAt
	}
	if upd.RejectedBy != nil {
		pr.RejectedBy = upd.RejectedBy
	}
	if upd.RejectionReason != nil {
		pr.RejectionReason = upd.RejectionReason
	}
	if upd.FailureReason != nil {
		pr.FailureReason = upd.FailureReason
	}
	pr.UpdatedAt = upd.At
	if !to.IsActive() {
		for i := range r.links {
			if r.links[i].requestID == id {
				r.links[i].active = false
			}
		}
	}
	cp := *pr
	return &cp, nil
}

func (r *MemoryRepository) SetPayoutRequestTransferID(_ context.Context, id, transferID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pr, ok := r.Requests[id]; ok && pr.StripeTransferID == nil {
		pr.StripeTransferID = &transferID
	}
	return nil
}

func (r *MemoryRepository) CompletePayoutRequest(_ context.Context, id, transferID string, at time.Time) (*models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, err := r.transitionLocked(id, store.CompletableStatuses)
	if err != nil {
		return nil, err
	}
	pr.Status = models.PayoutRequestCompleted
	pr.StripeTransferID = &transferID
	pr.CompletedAt = &at
	pr.UpdatedAt = at
	for _, l := range r.links {
		if l.requestID != id || !l.active {
			continue
		}
		p := r.Payments[l.paymentID]
		if p.PayoutStatus == models.PayoutStatusReady {
			p.PayoutStatus = models.PayoutStatusPaid
			p.StripeTransferID = &transferID
			p.PayoutDate = &at
			p.UpdatedAt = at
		}
	}
	cp := *pr
	return &cp, nil
}

func (r *MemoryRepository) ReversePayoutRequest(_ context.Context, id, reversalID, reason string, at time.Time) (*models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, err := r.transitionLocked(id, store.ReversibleStatuses)
	if err != nil {
		return nil, err
	}
	pr.Status = models.PayoutRequestReversed
	pr.ReversalID = &reversalID
	pr.ReversalReason = &reason
	pr.ReversedAt = &at
	pr.UpdatedAt = at
	for _, l := range r.links {
		if l.requestID != id || !l.active {
			continue
		}
		p := r.Payments[l.paymentID]
		if p.PayoutStatus == models.PayoutStatusReady || p.PayoutStatus == models.PayoutStatusPaid {
			p.PayoutStatus = models.PayoutStatusReversed
			p.UpdatedAt = at
		}
	}
	cp := *pr
	return &cp, nil
}

// --- Dettes ---

func (r *MemoryRepository) CreateDebt(_ context.Context, d *models.Debt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	table, ok := r.Debts[d.Kind]
	if !ok {
		return store.ErrDebtNotFound
	}
	for _, existing := range table {
		if existing.ExternalID == d.ExternalID {
			return store.ErrDuplicateDebt
		}
	}
	cp := *d
	table[d.ID] = &cp
	return nil
}

func (r *MemoryRepository) FindDebt(_ context.Context, kind models.DebtKind, id string) (*models.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.Debts[kind][id]
	if !ok {
		return nil, store.ErrDebtNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepository) FindDebtByExternalID(_ context.Context, kind models.DebtKind, externalID string) (*models.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.Debts[kind] {
		if d.ExternalID == externalID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, store.ErrDebtNotFound
}

func (r *MemoryRepository) ListDebts(_ context.Context, f store.DebtFilter) ([]models.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Debt
	for kind, table := range r.Debts {
		if f.Kind != "" && f.Kind != kind {
			continue
		}
		for _, d := range table {
			if f.CreatorID != "" && d.CreatorID != f.CreatorID {
				continue
			}
			if f.UnreconciledOnly && d.Reconciled {
				continue
			}
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, 0), nil
}

func (r *MemoryRepository) ReconcileDebt(_ context.Context, in store.ReconcileInput) (*models.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.Debts[in.Kind][in.ID]
	if !ok {
		return nil, store.ErrDebtNotFound
	}
	if d.Reconciled {
		cp := *d
		return &cp, store.ErrAlreadyReconciled
	}
	method := in.Method
	at := in.At
	d.Reconciled = true
	d.ReconciledAt = &at
	d.ReconciledBy = &method
	if in.ReversalID != nil {
		d.ReversalID = in.ReversalID
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepository) sumDebt(creatorID string) decimal.Decimal {
	total := decimal.Zero
	for _, table := range r.Debts {
		for _, d := range table {
			if d.CreatorID == creatorID && !d.Reconciled {
				total = total.Add(d.CreatorDebt)
			}
		}
	}
	return total
}

func (r *MemoryRepository) SumUnreconciledDebt(_ context.Context, creatorID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sumDebt(creatorID), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ store.Repository = (*MemoryRepository)(nil)
