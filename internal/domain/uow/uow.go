package uow

import (
	"context"

	"installment-subledger/internal/domain/subloan"
)

type Repos struct {
	SubLoans   subloan.Repository
	Operations subloan.OperationRepository
	Changes    subloan.ChangeRepository
}

// UnitOfWork runs fn against transaction-bound repositories. Any error from
// fn (including failures of external collaborators invoked inside it) rolls
// back every write made during the invocation, which is what gives the ledger
// its all-or-nothing commit rule.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock the sub-loan row first, then pass it in
	WithinSubLoanTx(ctx context.Context, subLoanID uint64, fn func(r Repos, s *subloan.SubLoan) error) error
}
