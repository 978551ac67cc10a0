package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"installment-subledger/internal/domain/subloan"
)

type SubLoanRepository struct{ db *gorm.DB }

func NewSubLoanRepository(db *gorm.DB) *SubLoanRepository { return &SubLoanRepository{db: db} }

func (r *SubLoanRepository) Create(ctx context.Context, s *subloan.SubLoan) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SubLoanRepository) Save(ctx context.Context, s *subloan.SubLoan) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *SubLoanRepository) Get(ctx context.Context, id uint64) (*subloan.SubLoan, error) {
	var out subloan.SubLoan
	res := r.db.WithContext(ctx).Where("id = ?", id).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, subloan.ErrNotFound
	}
	return &out, res.Error
}

func (r *SubLoanRepository) GetForUpdate(ctx context.Context, id uint64) (*subloan.SubLoan, error) {
	var out subloan.SubLoan
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, subloan.ErrNotFound
	}
	return &out, res.Error
}

func (r *SubLoanRepository) Siblings(ctx context.Context, firstID uint64, count uint16) ([]*subloan.SubLoan, error) {
	var out []*subloan.SubLoan
	res := r.db.WithContext(ctx).
		Where("id >= ? AND id < ?", firstID, firstID+uint64(count)).
		Order("id ASC").
		Find(&out)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(out) == 0 {
		return nil, subloan.ErrNotFound
	}
	return out, nil
}

func (r *SubLoanRepository) MaxID(ctx context.Context) (uint64, error) {
	// COALESCE keeps the scan valid on an empty table.
	var max uint64
	res := r.db.WithContext(ctx).
		Model(&subloan.SubLoan{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&max)
	return max, res.Error
}

func (r *SubLoanRepository) OngoingIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	res := r.db.WithContext(ctx).
		Model(&subloan.SubLoan{}).
		Where("status = ?", subloan.StatusOngoing).
		Order("id ASC").
		Pluck("id", &ids)
	return ids, res.Error
}
