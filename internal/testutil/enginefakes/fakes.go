package enginefakes

import (
	"context"
	"sync"

	"installment-subledger/internal/ledger"
)

// Movement records one fund transfer requested from the custody fake.
type Movement struct {
	Account string
	Amount  uint64
}

// Funds is a recording ledger.FundMover. Error fields, when set, are returned
// by the corresponding method so tests can exercise rollback paths.
type Funds struct {
	mu            sync.Mutex
	Disbursements []Movement
	Collections   []Movement
	Refunds       []Movement

	DisburseErr error
	CollectErr  error
	RefundErr   error
}

var _ ledger.FundMover = (*Funds)(nil)

func (f *Funds) Disburse(ctx context.Context, account string, amount uint64) error {
	if f.DisburseErr != nil {
		return f.DisburseErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Disbursements = append(f.Disbursements, Movement{Account: account, Amount: amount})
	return nil
}

func (f *Funds) Collect(ctx context.Context, account string, amount uint64) error {
	if f.CollectErr != nil {
		return f.CollectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Collections = append(f.Collections, Movement{Account: account, Amount: amount})
	return nil
}

func (f *Funds) Refund(ctx context.Context, account string, amount uint64) error {
	if f.RefundErr != nil {
		return f.RefundErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Refunds = append(f.Refunds, Movement{Account: account, Amount: amount})
	return nil
}

// Policy is a recording ledger.CreditPolicy.
type Policy struct {
	mu     sync.Mutex
	Opened []string // loan refs passed to LoanOpened
	Closed []string // loan refs passed to LoanClosed

	BeforeOpenErr error
}

var _ ledger.CreditPolicy = (*Policy)(nil)

func (p *Policy) BeforeOpen(ctx context.Context, borrowerID string, principal uint64) error {
	return p.BeforeOpenErr
}

func (p *Policy) LoanOpened(ctx context.Context, borrowerID, loanRef string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Opened = append(p.Opened, loanRef)
	return nil
}

func (p *Policy) LoanClosed(ctx context.Context, borrowerID, loanRef string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = append(p.Closed, loanRef)
	return nil
}
