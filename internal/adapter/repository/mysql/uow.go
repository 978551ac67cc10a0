package mysql

import (
	"context"

	"gorm.io/gorm"

	"installment-subledger/internal/domain/subloan"
	"installment-subledger/internal/domain/uow"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(txRepos(tx))
	})
}

func (u *GormUoW) WithinSubLoanTx(ctx context.Context, subLoanID uint64, fn func(r uow.Repos, s *subloan.SubLoan) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := txRepos(tx)
		// lock the sub-loan row up-front to prevent races
		s, err := r.SubLoans.GetForUpdate(ctx, subLoanID)
		if err != nil {
			return err
		}
		return fn(r, s)
	})
}

func txRepos(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		SubLoans:   &SubLoanRepository{db: tx},
		Operations: &OperationRepository{db: tx},
		Changes:    &ChangeRecordRepository{db: tx},
	}
}
