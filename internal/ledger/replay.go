package ledger

import (
	"context"
	"errors"

	"installment-subledger/internal/domain/subloan"
)

// maxGracePasses bounds the grace fixed-point loop. Each restart narrows the
// possible flag flips, so one extra pass suffices in practice; the bound only
// guards against a logic regression.
const maxGracePasses = 4

var errGraceUnstable = errors.New("grace flag failed to stabilize")

// ReplayResult describes what a mutate-path replay newly processed.
type ReplayResult struct {
	// FirstNewOpID is the id of the first operation that moved from pending
	// to applied during this call, 0 when none did.
	FirstNewOpID uint16
	// NewlyApplied counts the operations that moved to applied.
	NewlyApplied int
}

// Snapshot is the read-only projection returned by previews.
type Snapshot struct {
	SubLoanID    uint64            `json:"sub_loan_id"`
	At           int64             `json:"at"`
	Status       subloan.Status    `json:"status"`
	GraceActive  bool              `json:"grace_active"`
	DurationDays uint32            `json:"duration_days"`
	DueDay       int64             `json:"due_day"`
	Principal    subloan.Component `json:"principal"`
	Primary      subloan.Component `json:"primary"`
	Penalty      subloan.Component `json:"penalty"`
	LateFee      subloan.Component `json:"late_fee"`
	// Outstanding is the rounded total balance. A nonzero raw total never
	// rounds to zero here.
	Outstanding uint64 `json:"outstanding"`
}

// Apply is the mutate-path replay: it advances the book to target, then in a
// second pass flips the newly processed pending operations to applied and
// executes their fund movements. The caller persists the book afterwards; a
// failure anywhere leaves the enclosing transaction to unwind everything.
func (e *Engine) Apply(ctx context.Context, b *Book, target int64) (ReplayResult, error) {
	newly, err := e.replay(b, target, false)
	if err != nil {
		return ReplayResult{}, err
	}

	res := ReplayResult{NewlyApplied: len(newly)}
	for i, id := range newly {
		op := b.op(id)
		op.Status = subloan.OpApplied
		b.markDirty(id)
		if i == 0 {
			res.FirstNewOpID = id
		}
		if op.Kind == subloan.KindRepayment && op.Account != "" && e.funds != nil {
			if err := e.funds.Collect(ctx, op.Account, op.Value); err != nil {
				return ReplayResult{}, err
			}
		}
	}
	b.Loan.EarliestPendingAt = e.earliestPending(b)
	b.Loan.UpdateIndex++
	return res, nil
}

// Preview computes the sub-loan state at target on an ephemeral copy and
// discards it. Operation statuses and persisted state are never touched.
func (e *Engine) Preview(b *Book, target int64, ignoreGrace bool) (*Snapshot, error) {
	cp := b.Clone()
	if _, err := e.replay(cp, target, ignoreGrace); err != nil {
		return nil, err
	}
	loan := cp.Loan
	outstanding, err := roundToNonzero(loan.TrackedTotal(), e.cfg.Accuracy)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		SubLoanID:    loan.ID,
		At:           target,
		Status:       loan.Status,
		GraceActive:  loan.GraceActive,
		DurationDays: loan.DurationDays,
		DueDay:       e.dueDay(loan),
		Principal:    loan.Principal,
		Primary:      loan.Primary,
		Penalty:      loan.Penalty,
		LateFee:      loan.LateFee,
		Outstanding:  outstanding,
	}, nil
}

// replay reconstructs the sub-loan state at target and returns the ids of
// operations that were found pending and processed, in list order.
//
// It resumes from the most-recently-applied checkpoint when the stored state
// is still consistent, and otherwise restarts from inception. Because grace
// eligibility depends on overdue status, and overdue status depends on the
// walk's own duration mutations, the walk iterates until the effective grace
// flag reaches a fixed point.
func (e *Engine) replay(b *Book, target int64, ignoreGrace bool) ([]uint16, error) {
	loan := b.Loan
	if loan == nil {
		return nil, subloan.ErrNotFound
	}

	grace := e.effectiveGrace(loan, target, ignoreGrace)
	// No checkpoint but state advanced past inception means the checkpoint was
	// invalidated (an applied entry got cancelled); replay must start over.
	restart := target < loan.AccruedAt ||
		(loan.EarliestPendingAt != 0 && loan.EarliestPendingAt < loan.AccruedAt) ||
		grace != loan.GraceActive ||
		(loan.AppliedOpID == 0 && loan.AccruedAt != loan.StartAt)

	var newly []uint16
	for pass := 0; ; pass++ {
		if pass >= maxGracePasses {
			return nil, errGraceUnstable
		}
		if restart {
			e.resetToInception(loan)
			newly = newly[:0]
		}
		loan.GraceActive = grace

		startID := loan.HeadOpID
		if !restart && loan.AppliedOpID != 0 {
			startID = b.op(loan.AppliedOpID).NextID
		}
		for id := startID; id != 0; {
			op := b.op(id)
			if op.EffectiveAt > target {
				break
			}
			if op.Voided() {
				id = op.NextID
				continue
			}
			if err := e.accrueTo(loan, op.EffectiveAt); err != nil {
				return nil, err
			}
			if err := e.applyEffect(loan, op); err != nil {
				return nil, err
			}
			if op.Status == subloan.OpPending {
				newly = append(newly, id)
			}
			loan.AppliedOpID = id
			id = op.NextID
		}

		next := e.effectiveGrace(loan, target, ignoreGrace)
		if next == loan.GraceActive {
			break
		}
		grace = next
		restart = true
	}

	if err := e.accrueTo(loan, target); err != nil {
		return nil, err
	}

	if loan.Status != subloan.StatusRevoked {
		if loan.TrackedTotal() == 0 {
			loan.Status = subloan.StatusRepaid
		} else {
			loan.Status = subloan.StatusOngoing
		}
	}
	return newly, nil
}

// resetToInception rewinds the mutable state to creation time. The operation
// log structure itself is untouched.
func (e *Engine) resetToInception(s *subloan.SubLoan) {
	s.Status = subloan.StatusOngoing
	s.GraceRequested = false
	s.GraceActive = false
	s.DurationDays = s.InitDurationDays
	s.FrozenAt = 0
	s.AccruedAt = s.StartAt
	s.PrimaryRate = s.InitPrimaryRate
	s.PenaltyRate = s.InitPenaltyRate
	s.LateFeeRate = s.InitLateFeeRate
	s.GraceRate = s.InitGraceRate
	s.Principal = subloan.Component{Tracked: s.Borrowed}
	s.Primary = subloan.Component{}
	s.Penalty = subloan.Component{}
	s.LateFee = subloan.Component{}
	s.AppliedOpID = 0
}

// applyEffect mutates the sub-loan with the entry's specific effect. Accrual
// up to the entry's timestamp must already have happened.
func (e *Engine) applyEffect(s *subloan.SubLoan, op *subloan.Operation) error {
	switch op.Kind {
	case subloan.KindRepayment:
		return e.settle(s, op.Value, false)
	case subloan.KindDiscount:
		return e.settle(s, op.Value, true)
	case subloan.KindRevocation:
		s.Principal.Tracked = 0
		s.Primary.Tracked = 0
		s.Penalty.Tracked = 0
		s.LateFee.Tracked = 0
		s.Status = subloan.StatusRevoked
		return nil
	case subloan.KindFreeze:
		if s.FrozenAt != 0 {
			return subloan.ErrAlreadyFrozen
		}
		s.FrozenAt = op.EffectiveAt
		return nil
	case subloan.KindUnfreeze:
		if s.FrozenAt == 0 {
			return subloan.ErrNotFrozen
		}
		span := e.dayIndex(op.EffectiveAt) - e.dayIndex(s.FrozenAt)
		if span < 0 {
			span = 0
		}
		next := uint64(s.DurationDays) + uint64(span)
		if next > uint64(e.cfg.MaxDurationDays) {
			return subloan.ErrDurationTooLong
		}
		s.DurationDays = uint32(next)
		s.FrozenAt = 0
		// The frozen span never accrues; resume from the unfreeze time.
		if op.EffectiveAt > s.AccruedAt {
			s.AccruedAt = op.EffectiveAt
		}
		return nil
	case subloan.KindSetPrimaryRate:
		s.PrimaryRate = op.Value
	case subloan.KindSetPenaltyRate:
		s.PenaltyRate = op.Value
	case subloan.KindSetLateFeeRate:
		s.LateFeeRate = op.Value
	case subloan.KindSetGraceRate:
		s.GraceRate = op.Value
	case subloan.KindSetDuration:
		s.DurationDays = uint32(op.Value)
	case subloan.KindSetGraceFlag:
		want := op.Value != 0
		if want == s.GraceRequested {
			return subloan.ErrGraceToggle
		}
		s.GraceRequested = want
	default:
		return subloan.ErrInvalidKind
	}
	return nil
}

// settle reduces the tracked balances in the fixed precedence order: penalty
// interest, late fee, primary interest, principal. Excess is rejected, never
// clamped.
func (e *Engine) settle(s *subloan.SubLoan, amount uint64, discount bool) error {
	remaining := amount
	for _, comp := range []*subloan.Component{&s.Penalty, &s.LateFee, &s.Primary, &s.Principal} {
		if remaining == 0 {
			break
		}
		take := comp.Tracked
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		var err error
		comp.Tracked -= take
		if discount {
			comp.Discounted, err = addChecked(comp.Discounted, take)
		} else {
			comp.Repaid, err = addChecked(comp.Repaid, take)
		}
		if err != nil {
			return err
		}
		remaining -= take
	}
	if remaining > 0 {
		return subloan.ErrPaymentExceedsDebt
	}
	return nil
}
