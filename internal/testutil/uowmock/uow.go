package uowmock

import (
	"context"
	"errors"

	"installment-subledger/internal/domain/subloan"
	"installment-subledger/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn        func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinSubLoanTxFn func(ctx context.Context, subLoanID uint64, fn func(r uow.Repos, s *subloan.SubLoan) error) error
}

// Convenience fluent setters
func New() *UoW { return &UoW{} }
func (m *UoW) WithWithinTx(fn func(context.Context, func(uow.Repos) error) error) *UoW {
	m.WithinTxFn = fn
	return m
}
func (m *UoW) WithWithinSubLoanTx(fn func(context.Context, uint64, func(uow.Repos, *subloan.SubLoan) error) error) *UoW {
	m.WithinSubLoanTxFn = fn
	return m
}
func (m *UoW) Reset() { *m = UoW{} }

// Methods implementing UnitOfWork
func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}
func (m *UoW) WithinSubLoanTx(ctx context.Context, subLoanID uint64, fn func(r uow.Repos, s *subloan.SubLoan) error) error {
	if m.WithinSubLoanTxFn != nil {
		return m.WithinSubLoanTxFn(ctx, subLoanID, fn)
	}
	return errUnimplemented
}
