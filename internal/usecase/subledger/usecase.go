package subledger

import (
	"context"
	"time"

	"installment-subledger/internal/domain/subloan"
	"installment-subledger/internal/domain/uow"
	"installment-subledger/internal/ledger"
	"installment-subledger/pkg/id"
)

// Usecase exposes the ledger entry points. Every mutating call runs inside one
// unit-of-work transaction: either the whole invocation commits (log inserts,
// replayed state, change records, collaborator side effects) or none of it
// does.
type Usecase struct {
	uow    uow.UnitOfWork
	engine *ledger.Engine
	coord  *ledger.Coordinator
	agg    *ledger.Aggregator
	policy ledger.CreditPolicy
	funds  ledger.FundMover

	now func() time.Time
}

func NewUsecase(tx uow.UnitOfWork, engine *ledger.Engine, policy ledger.CreditPolicy, funds ledger.FundMover) *Usecase {
	return &Usecase{
		uow:    tx,
		engine: engine,
		coord:  ledger.NewCoordinator(engine),
		agg:    ledger.NewAggregator(policy),
		policy: policy,
		funds:  funds,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock, for tests.
func (u *Usecase) WithNow(fn func() time.Time) *Usecase {
	u.now = fn
	return u
}

// TakeLoan creates the sibling sub-loans of one loan atomically: the credit
// policy "before open" hook fires once, funds move once for the aggregate
// borrowed amount and once for the aggregate addon (when nonzero), and each
// sub-loan emits its inception change record.
func (u *Usecase) TakeLoan(ctx context.Context, in TakeLoanInput) (*TakeLoanOutput, error) {
	if in.BorrowerID == "" || in.Account == "" || len(in.SubLoans) == 0 {
		return nil, subloan.ErrZeroValue
	}
	if len(in.SubLoans) > int(u.engine.Config().MaxBatch) {
		return nil, subloan.ErrBatchTooLarge
	}
	now := u.now().Unix()
	start := in.StartAt
	if start == 0 {
		start = now
	}
	if start <= 0 {
		return nil, subloan.ErrBadTimestamp
	}

	cfg := u.engine.Config()
	var totalBorrowed, totalAddon uint64
	for _, p := range in.SubLoans {
		if p.Borrowed == 0 {
			return nil, subloan.ErrZeroValue
		}
		if p.PrimaryRate > subloan.RateFactor || p.PenaltyRate > subloan.RateFactor ||
			p.LateFeeRate > subloan.RateFactor || p.GraceRate > subloan.RateFactor {
			return nil, subloan.ErrRateTooHigh
		}
		if p.DurationDays == 0 {
			return nil, subloan.ErrZeroValue
		}
		if p.DurationDays > cfg.MaxDurationDays {
			return nil, subloan.ErrDurationTooLong
		}
		var err error
		if totalBorrowed, err = addU64(totalBorrowed, p.Borrowed); err != nil {
			return nil, err
		}
		if totalAddon, err = addU64(totalAddon, p.Addon); err != nil {
			return nil, err
		}
	}

	out := &TakeLoanOutput{SubLoanCount: uint16(len(in.SubLoans))}
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if err := u.policy.BeforeOpen(ctx, in.BorrowerID, totalBorrowed); err != nil {
			return err
		}
		maxID, err := r.SubLoans.MaxID(ctx)
		if err != nil {
			return err
		}
		out.FirstSubLoanID = maxID + 1
		out.LoanRef = id.NewID32()

		subs := make([]*subloan.SubLoan, 0, len(in.SubLoans))
		for i, p := range in.SubLoans {
			s := &subloan.SubLoan{
				ID:               out.FirstSubLoanID + uint64(i),
				LoanRef:          out.LoanRef,
				BorrowerID:       in.BorrowerID,
				ProgramID:        in.ProgramID,
				Borrowed:         p.Borrowed,
				Addon:            p.Addon,
				InitPrimaryRate:  p.PrimaryRate,
				InitPenaltyRate:  p.PenaltyRate,
				InitLateFeeRate:  p.LateFeeRate,
				InitGraceRate:    p.GraceRate,
				InitDurationDays: p.DurationDays,
				StartAt:          start,
				IndexInLoan:      uint16(i),
				SiblingCount:     uint16(len(in.SubLoans)),

				Status:       subloan.StatusOngoing,
				DurationDays: p.DurationDays,
				AccruedAt:    start,
				PrimaryRate:  p.PrimaryRate,
				PenaltyRate:  p.PenaltyRate,
				LateFeeRate:  p.LateFeeRate,
				GraceRate:    p.GraceRate,
				Principal:    subloan.Component{Tracked: p.Borrowed},
				UpdateIndex:  1,
			}
			if err := r.SubLoans.Create(ctx, s); err != nil {
				return err
			}
			if err := r.Changes.Create(ctx, ledger.BuildChangeRecord(s)); err != nil {
				return err
			}
			subs = append(subs, s)
		}

		if err := u.funds.Disburse(ctx, in.Account, totalBorrowed); err != nil {
			return err
		}
		if totalAddon > 0 {
			if err := u.funds.Disburse(ctx, in.Account, totalAddon); err != nil {
				return err
			}
		}
		return u.agg.NotifyTransition(ctx, subs, 0)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeLoan replays a revocation into every sibling of the loan, nets
// borrowed against repaid for one settlement transfer, and settles the addon
// amount separately.
func (u *Usecase) RevokeLoan(ctx context.Context, anySubLoanID uint64, account string) error {
	now := u.now().Unix()
	return u.uow.WithinTx(ctx, func(r uow.Repos) error {
		anchor, err := r.SubLoans.GetForUpdate(ctx, anySubLoanID)
		if err != nil {
			return err
		}
		first := anchor.FirstID()

		subs := make([]*subloan.SubLoan, 0, anchor.SiblingCount)
		for i := uint64(0); i < uint64(anchor.SiblingCount); i++ {
			s, err := r.SubLoans.GetForUpdate(ctx, first+i)
			if err != nil {
				return err
			}
			subs = append(subs, s)
		}
		before := ledger.OngoingCount(subs)

		var totalBorrowed, totalAddon, totalRepaid uint64
		for _, s := range subs {
			if totalBorrowed, err = addU64(totalBorrowed, s.Borrowed); err != nil {
				return err
			}
			if totalAddon, err = addU64(totalAddon, s.Addon); err != nil {
				return err
			}
			if s.Status == subloan.StatusRevoked {
				if totalRepaid, err = addU64(totalRepaid, s.RepaidTotal()); err != nil {
					return err
				}
				continue
			}
			ops, err := r.Operations.BySubLoan(ctx, s.ID)
			if err != nil {
				return err
			}
			b := ledger.NewBook(s, ops)
			if _, err := u.engine.Insert(b, now, subloan.KindRevocation, 0, account); err != nil {
				return err
			}
			if _, err := u.engine.Apply(ctx, b, now); err != nil {
				return err
			}
			if err := persistBook(ctx, r, b); err != nil {
				return err
			}
			if totalRepaid, err = addU64(totalRepaid, s.RepaidTotal()); err != nil {
				return err
			}
		}

		// Single net settlement for the principal side, addon separately.
		if account != "" {
			if totalBorrowed > totalRepaid {
				if err := u.funds.Collect(ctx, account, totalBorrowed-totalRepaid); err != nil {
					return err
				}
			} else if totalRepaid > totalBorrowed {
				if err := u.funds.Disburse(ctx, account, totalRepaid-totalBorrowed); err != nil {
					return err
				}
			}
			if totalAddon > 0 {
				if err := u.funds.Collect(ctx, account, totalAddon); err != nil {
					return err
				}
			}
		}
		return u.agg.NotifyTransition(ctx, subs, before)
	})
}

// AddOperation is the single-entry submission variant: validate, insert into
// the log, replay to now.
func (u *Usecase) AddOperation(ctx context.Context, subLoanID uint64, kind subloan.Kind, at int64, value uint64, account string) (*OperationResult, error) {
	req := ledger.OperationRequest{SubLoanID: subLoanID, Kind: kind, At: at, Value: value, Account: account}
	now := u.now().Unix()
	if err := u.engine.ValidateRequest(req, now); err != nil {
		return nil, err
	}

	var out *OperationResult
	err := u.uow.WithinSubLoanTx(ctx, subLoanID, func(r uow.Repos, s *subloan.SubLoan) error {
		return u.withTransition(ctx, r, s, func(b *ledger.Book) error {
			opID, err := u.engine.Insert(b, at, kind, value, account)
			if err != nil {
				return err
			}
			res, err := u.engine.Apply(ctx, b, now)
			if err != nil {
				return err
			}
			if err := persistBook(ctx, r, b); err != nil {
				return err
			}
			out = resultFor(s, opID, res)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOperation is the single-entry cancellation variant.
func (u *Usecase) CancelOperation(ctx context.Context, subLoanID uint64, opID uint16, counterparty string) (*OperationResult, error) {
	now := u.now().Unix()
	var out *OperationResult
	err := u.uow.WithinSubLoanTx(ctx, subLoanID, func(r uow.Repos, s *subloan.SubLoan) error {
		return u.withTransition(ctx, r, s, func(b *ledger.Book) error {
			if err := u.engine.Cancel(ctx, b, opID, counterparty); err != nil {
				return err
			}
			res, err := u.engine.Apply(ctx, b, now)
			if err != nil {
				return err
			}
			if err := persistBook(ctx, r, b); err != nil {
				return err
			}
			out = resultFor(s, 0, res)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessSubLoan forces a mutate-path replay with no new operation.
func (u *Usecase) ProcessSubLoan(ctx context.Context, subLoanID uint64) (*OperationResult, error) {
	now := u.now().Unix()
	var out *OperationResult
	err := u.uow.WithinSubLoanTx(ctx, subLoanID, func(r uow.Repos, s *subloan.SubLoan) error {
		return u.withTransition(ctx, r, s, func(b *ledger.Book) error {
			res, err := u.engine.Apply(ctx, b, now)
			if err != nil {
				return err
			}
			if err := persistBook(ctx, r, b); err != nil {
				return err
			}
			out = resultFor(s, 0, res)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PreviewSubLoan computes a read-only snapshot at the given timestamp without
// persisting anything. ignoreGrace answers "what if the grace window did not
// apply".
func (u *Usecase) PreviewSubLoan(ctx context.Context, subLoanID uint64, at int64, ignoreGrace bool) (*ledger.Snapshot, error) {
	if at == 0 {
		at = u.now().Unix()
	}
	var snap *ledger.Snapshot
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		s, err := r.SubLoans.Get(ctx, subLoanID)
		if err != nil {
			return err
		}
		ops, err := r.Operations.BySubLoan(ctx, subLoanID)
		if err != nil {
			return err
		}
		snap, err = u.engine.Preview(ledger.NewBook(s, ops), at, ignoreGrace)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// SubmitOperationBatch applies a group of submissions as one unit.
func (u *Usecase) SubmitOperationBatch(ctx context.Context, reqs []ledger.OperationRequest) (*BatchResult, error) {
	now := u.now().Unix()
	var out *BatchResult
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		src := newTxBooks(r)
		affected, err := u.coord.Submit(ctx, src, reqs, now)
		if err != nil {
			return err
		}
		out = &BatchResult{AffectedSubLoanIDs: affected}
		return u.finishBatch(ctx, r, src, affected)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VoidOperationBatch cancels a group of operations as one unit.
func (u *Usecase) VoidOperationBatch(ctx context.Context, reqs []ledger.CancelRequest) (*BatchResult, error) {
	now := u.now().Unix()
	var out *BatchResult
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		src := newTxBooks(r)
		affected, err := u.coord.Void(ctx, src, reqs, now)
		if err != nil {
			return err
		}
		out = &BatchResult{AffectedSubLoanIDs: affected}
		return u.finishBatch(ctx, r, src, affected)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SweepOngoing replays every ongoing sub-loan to now, each in its own
// transaction. A failing sub-loan does not stop the pass; the first error is
// reported once the pass completes.
func (u *Usecase) SweepOngoing(ctx context.Context) (int, error) {
	var ids []uint64
	if err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		ids, err = r.SubLoans.OngoingIDs(ctx)
		return err
	}); err != nil {
		return 0, err
	}

	processed := 0
	var firstErr error
	for _, sid := range ids {
		if _, err := u.ProcessSubLoan(ctx, sid); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		processed++
	}
	return processed, firstErr
}

// LoanSummary derives the loan-level view for the sibling range starting at
// firstSubLoanID.
func (u *Usecase) LoanSummary(ctx context.Context, firstSubLoanID uint64) (*ledger.Summary, error) {
	var sum ledger.Summary
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		first, err := r.SubLoans.Get(ctx, firstSubLoanID)
		if err != nil {
			return err
		}
		subs, err := r.SubLoans.Siblings(ctx, first.FirstID(), first.SiblingCount)
		if err != nil {
			return err
		}
		sum, err = u.agg.Summarize(subs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// withTransition loads the sibling range around s, captures the loan-level
// ongoing count, runs fn on s's book, and reports a crossing of zero to the
// credit policy.
func (u *Usecase) withTransition(ctx context.Context, r uow.Repos, s *subloan.SubLoan, fn func(b *ledger.Book) error) error {
	subs, err := r.SubLoans.Siblings(ctx, s.FirstID(), s.SiblingCount)
	if err != nil {
		return err
	}
	if int(s.IndexInLoan) >= len(subs) {
		return subloan.ErrSiblingRangeCorrupt
	}
	// Swap in the locked instance so the after-count sees the mutation.
	subs[s.IndexInLoan] = s
	before := ledger.OngoingCount(subs)

	ops, err := r.Operations.BySubLoan(ctx, s.ID)
	if err != nil {
		return err
	}
	if err := fn(ledger.NewBook(s, ops)); err != nil {
		return err
	}
	return u.agg.NotifyTransition(ctx, subs, before)
}

// finishBatch persists every affected book and fires loan-level transitions
// computed against the statuses captured when each book was first loaded.
func (u *Usecase) finishBatch(ctx context.Context, r uow.Repos, src *txBooks, affected []uint64) error {
	for _, id := range affected {
		b, err := src.Book(ctx, id)
		if err != nil {
			return err
		}
		if err := persistBook(ctx, r, b); err != nil {
			return err
		}
	}

	seen := make(map[uint64]bool, len(affected))
	for _, sid := range affected {
		b, err := src.Book(ctx, sid)
		if err != nil {
			return err
		}
		first := b.Loan.FirstID()
		if seen[first] {
			continue
		}
		seen[first] = true

		subs, err := r.SubLoans.Siblings(ctx, first, b.Loan.SiblingCount)
		if err != nil {
			return err
		}
		before := 0
		for i, s := range subs {
			// Prefer the in-memory instance for siblings the batch touched.
			if cached, ok := src.cache[s.ID]; ok {
				subs[i] = cached.Loan
			}
			st := s.Status
			if init, ok := src.initialStatus[s.ID]; ok {
				st = init
			}
			if st == subloan.StatusOngoing {
				before++
			}
		}
		if err := u.agg.NotifyTransition(ctx, subs, before); err != nil {
			return err
		}
	}
	return nil
}

func resultFor(s *subloan.SubLoan, opID uint16, res ledger.ReplayResult) *OperationResult {
	return &OperationResult{
		SubLoanID:        s.ID,
		OpID:             opID,
		FirstAppliedOpID: res.FirstNewOpID,
		AppliedCount:     res.NewlyApplied,
		Status:           s.Status,
		UpdateIndex:      s.UpdateIndex,
		Outstanding:      s.TrackedTotal(),
	}
}

// txBooks caches one book per sub-loan for the duration of a transaction so
// every mutation within a batch lands on the same instance. The status each
// sub-loan had when first loaded is kept for transition detection.
type txBooks struct {
	repos         uow.Repos
	cache         map[uint64]*ledger.Book
	initialStatus map[uint64]subloan.Status
}

func newTxBooks(r uow.Repos) *txBooks {
	return &txBooks{
		repos:         r,
		cache:         make(map[uint64]*ledger.Book),
		initialStatus: make(map[uint64]subloan.Status),
	}
}

func (t *txBooks) Book(ctx context.Context, subLoanID uint64) (*ledger.Book, error) {
	if b, ok := t.cache[subLoanID]; ok {
		return b, nil
	}
	s, err := t.repos.SubLoans.GetForUpdate(ctx, subLoanID)
	if err != nil {
		return nil, err
	}
	ops, err := t.repos.Operations.BySubLoan(ctx, subLoanID)
	if err != nil {
		return nil, err
	}
	b := ledger.NewBook(s, ops)
	t.cache[subLoanID] = b
	t.initialStatus[subLoanID] = s.Status
	return b, nil
}

func persistBook(ctx context.Context, r uow.Repos, b *ledger.Book) error {
	for _, op := range b.DirtyOps() {
		if op.ID == 0 {
			if err := r.Operations.Create(ctx, op); err != nil {
				return err
			}
			continue
		}
		if err := r.Operations.Save(ctx, op); err != nil {
			return err
		}
	}
	if err := r.SubLoans.Save(ctx, b.Loan); err != nil {
		return err
	}
	return r.Changes.Create(ctx, ledger.BuildChangeRecord(b.Loan))
}

func addU64(a, b uint64) (uint64, error) {
	if b > ^uint64(0)-a {
		return 0, subloan.ErrAmountOverflow
	}
	return a + b, nil
}
