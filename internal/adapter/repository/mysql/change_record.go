package mysql

import (
	"context"

	"gorm.io/gorm"

	"installment-subledger/internal/domain/subloan"
)

type ChangeRecordRepository struct{ db *gorm.DB }

func NewChangeRecordRepository(db *gorm.DB) *ChangeRecordRepository {
	return &ChangeRecordRepository{db: db}
}

func (r *ChangeRecordRepository) Create(ctx context.Context, rec *subloan.ChangeRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *ChangeRecordRepository) BySubLoan(ctx context.Context, subLoanID uint64) ([]*subloan.ChangeRecord, error) {
	var out []*subloan.ChangeRecord
	res := r.db.WithContext(ctx).
		Where("sub_loan_id = ?", subLoanID).
		Order("update_index ASC").
		Find(&out)
	return out, res.Error
}
