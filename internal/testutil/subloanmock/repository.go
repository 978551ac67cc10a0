package subloanmock

import (
	"context"

	domain "installment-subledger/internal/domain/subloan"
)

// Repo is a function-backed mock that satisfies domain.Repository.
// Only fill in the function fields a test needs; read methods default to
// context.Canceled so a forgotten stub fails loudly.
type Repo struct {
	CreateFn       func(ctx context.Context, s *domain.SubLoan) error
	SaveFn         func(ctx context.Context, s *domain.SubLoan) error
	GetFn          func(ctx context.Context, id uint64) (*domain.SubLoan, error)
	GetForUpdateFn func(ctx context.Context, id uint64) (*domain.SubLoan, error)
	SiblingsFn     func(ctx context.Context, firstID uint64, count uint16) ([]*domain.SubLoan, error)
	MaxIDFn        func(ctx context.Context) (uint64, error)
	OngoingIDsFn   func(ctx context.Context) ([]uint64, error)
}

func (m *Repo) Create(ctx context.Context, s *domain.SubLoan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, s)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, s *domain.SubLoan) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, s)
	}
	return nil
}

func (m *Repo) Get(ctx context.Context, id uint64) (*domain.SubLoan, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) GetForUpdate(ctx context.Context, id uint64) (*domain.SubLoan, error) {
	if m.GetForUpdateFn != nil {
		return m.GetForUpdateFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) Siblings(ctx context.Context, firstID uint64, count uint16) ([]*domain.SubLoan, error) {
	if m.SiblingsFn != nil {
		return m.SiblingsFn(ctx, firstID, count)
	}
	return nil, context.Canceled
}

func (m *Repo) MaxID(ctx context.Context) (uint64, error) {
	if m.MaxIDFn != nil {
		return m.MaxIDFn(ctx)
	}
	return 0, nil
}

func (m *Repo) OngoingIDs(ctx context.Context) ([]uint64, error) {
	if m.OngoingIDsFn != nil {
		return m.OngoingIDsFn(ctx)
	}
	return nil, nil
}

// OpRepo is a function-backed mock for domain.OperationRepository.
type OpRepo struct {
	CreateFn    func(ctx context.Context, o *domain.Operation) error
	SaveFn      func(ctx context.Context, o *domain.Operation) error
	BySubLoanFn func(ctx context.Context, subLoanID uint64) (map[uint16]*domain.Operation, error)
}

func (m *OpRepo) Create(ctx context.Context, o *domain.Operation) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, o)
	}
	return nil
}

func (m *OpRepo) Save(ctx context.Context, o *domain.Operation) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, o)
	}
	return nil
}

func (m *OpRepo) BySubLoan(ctx context.Context, subLoanID uint64) (map[uint16]*domain.Operation, error) {
	if m.BySubLoanFn != nil {
		return m.BySubLoanFn(ctx, subLoanID)
	}
	return map[uint16]*domain.Operation{}, nil
}

// ChangeRepo is a function-backed mock for domain.ChangeRepository.
type ChangeRepo struct {
	CreateFn    func(ctx context.Context, rec *domain.ChangeRecord) error
	BySubLoanFn func(ctx context.Context, subLoanID uint64) ([]*domain.ChangeRecord, error)
}

func (m *ChangeRepo) Create(ctx context.Context, rec *domain.ChangeRecord) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, rec)
	}
	return nil
}

func (m *ChangeRepo) BySubLoan(ctx context.Context, subLoanID uint64) ([]*domain.ChangeRecord, error) {
	if m.BySubLoanFn != nil {
		return m.BySubLoanFn(ctx, subLoanID)
	}
	return nil, nil
}
