package subloan

import "context"

// Repository persists sub-loans. Implementations must return ErrNotFound for
// unknown ids.
type Repository interface {
	Create(ctx context.Context, s *SubLoan) error
	Save(ctx context.Context, s *SubLoan) error
	Get(ctx context.Context, id uint64) (*SubLoan, error)
	// GetForUpdate locks the row for the remainder of the transaction.
	GetForUpdate(ctx context.Context, id uint64) (*SubLoan, error)
	// Siblings returns the loan's sub-loans [firstID, firstID+count) in id
	// order.
	Siblings(ctx context.Context, firstID uint64, count uint16) ([]*SubLoan, error)
	// MaxID returns the highest assigned sub-loan id, 0 when none exist.
	MaxID(ctx context.Context) (uint64, error)
	// OngoingIDs lists ids of sub-loans currently in StatusOngoing.
	OngoingIDs(ctx context.Context) ([]uint64, error)
}

// OperationRepository persists the per-sub-loan operation log.
type OperationRepository interface {
	Create(ctx context.Context, o *Operation) error
	Save(ctx context.Context, o *Operation) error
	// BySubLoan returns every operation of the sub-loan keyed by OpID.
	BySubLoan(ctx context.Context, subLoanID uint64) (map[uint16]*Operation, error)
}

// ChangeRepository persists emitted change records.
type ChangeRepository interface {
	Create(ctx context.Context, rec *ChangeRecord) error
	BySubLoan(ctx context.Context, subLoanID uint64) ([]*ChangeRecord, error)
}
