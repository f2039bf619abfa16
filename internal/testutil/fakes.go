package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"callastar_back_end/internal/payments"
	"callastar_back_end/internal/utils"
	"callastar_back_end/internal/video"

	"github.com/shopspring/decimal"
)

// FakeProcessor enregistre les appels sortants et rejoue les réponses configurées.
type FakeProcessor struct {
	mu sync.Mutex

	Balance     decimal.Decimal
	BalanceErr  error
	TransferErr error
	ReversalErr error
	RefundErr   error

	Transfers []payments.TransferInput
	Reversals []payments.ReversalInput
	Refunds   []payments.RefundInput

	refundsByKey map[string]*payments.RefundResult
}

func NewFakeProcessor(balance decimal.Decimal) *FakeProcessor {
	return &FakeProcessor{Balance: balance}
}

func (p *FakeProcessor) CreateTransfer(_ context.Context, in payments.TransferInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TransferErr != nil {
		return "", p.TransferErr
	}
	p.Transfers = append(p.Transfers, in)
	return fmt.Sprintf("tr_%d", len(p.Transfers)), nil
}

func (p *FakeProcessor) CreateTransferReversal(_ context.Context, in payments.ReversalInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ReversalErr != nil {
		return "", p.ReversalErr
	}
	p.Reversals = append(p.Reversals, in)
	return fmt.Sprintf("trr_%d", len(p.Reversals)), nil
}

func (p *FakeProcessor) AvailableBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Balance, p.BalanceErr
}

func (p *FakeProcessor) CreateRefund(_ context.Context, in payments.RefundInput) (*payments.RefundResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RefundErr != nil {
		return nil, p.RefundErr
	}
	// Même clé d'idempotence : le processeur rejoue le remboursement déjà créé.
	if replay, ok := p.refundsByKey[in.IdempotencyKey]; ok {
		return replay, nil
	}
	p.Refunds = append(p.Refunds, in)
	result := &payments.RefundResult{ID: fmt.Sprintf("re_%d", len(p.Refunds)), Status: "succeeded"}
	if p.refundsByKey == nil {
		p.refundsByKey = map[string]*payments.RefundResult{}
	}
	p.refundsByKey[in.IdempotencyKey] = result
	return result, nil
}

// SentMail est un email capturé par FakeMailer.
type SentMail struct {
	To          string
	Subject     string
	Body        string
	Attachments []utils.Attachment
}

type FakeMailer struct {
	mu   sync.Mutex
	Err  error
	Sent []SentMail
}

func (m *FakeMailer) Send(_ context.Context, to, subject, htmlBody string, attachments ...utils.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Body: htmlBody, Attachments: attachments})
	return nil
}

// To retourne les emails envoyés à une adresse.
func (m *FakeMailer) To(address string) []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentMail
	for _, s := range m.Sent {
		if s.To == address {
			out = append(out, s)
		}
	}
	return out
}

type FakeRooms struct {
	mu      sync.Mutex
	Err     error
	Created []string
}

func (f *FakeRooms) CreateRoom(_ context.Context, name string, _ time.Time) (*video.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Created = append(f.Created, name)
	return &video.Room{Name: name, URL: "https://callastar.daily.co/" + name}, nil
}

// FakeDeduper remplace le cache Redis de déduplication.
type FakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewFakeDeduper() *FakeDeduper {
	return &FakeDeduper{seen: map[string]bool{}}
}

func (d *FakeDeduper) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[eventID], nil
}

func (d *FakeDeduper) MarkEventProcessed(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = true
	return nil
}

type FakeArchiver struct {
	mu       sync.Mutex
	Archived []string
}

func (a *FakeArchiver) ArchiveWebhook(_ context.Context, eventID, _ string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Archived = append(a.Archived, eventID)
	return nil
}
