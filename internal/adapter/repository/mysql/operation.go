package mysql

import (
	"context"

	"gorm.io/gorm"

	"installment-subledger/internal/domain/subloan"
)

type OperationRepository struct{ db *gorm.DB }

func NewOperationRepository(db *gorm.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

func (r *OperationRepository) Create(ctx context.Context, o *subloan.Operation) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *OperationRepository) Save(ctx context.Context, o *subloan.Operation) error {
	return r.db.WithContext(ctx).Save(o).Error
}

func (r *OperationRepository) BySubLoan(ctx context.Context, subLoanID uint64) (map[uint16]*subloan.Operation, error) {
	var rows []*subloan.Operation
	res := r.db.WithContext(ctx).
		Where("sub_loan_id = ?", subLoanID).
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	out := make(map[uint16]*subloan.Operation, len(rows))
	for _, o := range rows {
		out[o.OpID] = o
	}
	return out, nil
}
