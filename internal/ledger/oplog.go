package ledger

import (
	"context"

	"installment-subledger/internal/domain/subloan"
)

// Insert splices a new pending operation into the sub-loan's log, keeping the
// list strictly ordered by (timestamp asc, id asc). The predecessor is found
// by scanning backward from the tail, which is O(1) for the common
// near-chronological case. The new operation id is returned.
func (e *Engine) Insert(b *Book, at int64, kind subloan.Kind, value uint64, account string) (uint16, error) {
	loan := b.Loan
	if loan == nil {
		return 0, subloan.ErrNotFound
	}
	if !subloan.ValidKind(kind) {
		return 0, subloan.ErrInvalidKind
	}
	if at <= 0 {
		return 0, subloan.ErrBadTimestamp
	}
	if at < loan.StartAt {
		return 0, subloan.ErrBeforeInception
	}
	if loan.OpCount >= subloan.MaxOpID {
		return 0, subloan.ErrOperationOverflow
	}

	// Scan backward for the predecessor: the last entry at or before the new
	// timestamp. Equal timestamps order by id, and the new id is the highest
	// yet, so it lands after them.
	var pred *subloan.Operation
	for cur := b.op(loan.TailOpID); cur != nil; cur = b.op(cur.PrevID) {
		if cur.EffectiveAt <= at {
			pred = cur
			break
		}
	}

	if pred != nil && pred.Kind == subloan.KindRevocation && !pred.Voided() {
		return 0, subloan.ErrAfterRevocation
	}

	var succID uint16
	if pred != nil {
		succID = pred.NextID
	} else {
		succID = loan.HeadOpID
	}
	if kind == subloan.KindRevocation && succID != 0 {
		return 0, subloan.ErrRevocationNotLast
	}

	loan.OpCount++
	op := &subloan.Operation{
		SubLoanID:   loan.ID,
		OpID:        loan.OpCount,
		Kind:        kind,
		Status:      subloan.OpPending,
		EffectiveAt: at,
		Value:       value,
		Account:     account,
	}
	b.Ops[op.OpID] = op
	b.markDirty(op.OpID)

	if pred != nil {
		op.PrevID = pred.OpID
		pred.NextID = op.OpID
		b.markDirty(pred.OpID)
	} else {
		loan.HeadOpID = op.OpID
	}
	if succID != 0 {
		succ := b.op(succID)
		op.NextID = succID
		succ.PrevID = op.OpID
		b.markDirty(succID)
	} else {
		loan.TailOpID = op.OpID
	}

	if loan.EarliestPendingAt == 0 || at < loan.EarliestPendingAt {
		loan.EarliestPendingAt = at
	}
	return op.OpID, nil
}

// Cancel voids an operation. Pending entries are dismissed; applied entries
// are revoked, which invalidates the replay checkpoint and, for repayments
// with a known counterparty, reverses the fund movement. When the
// counterparty is unset the funds are treated as retained.
func (e *Engine) Cancel(ctx context.Context, b *Book, opID uint16, counterparty string) error {
	loan := b.Loan
	if loan == nil {
		return subloan.ErrNotFound
	}
	op := b.op(opID)
	if op == nil {
		return subloan.ErrNoSuchOperation
	}
	if op.Voided() {
		return subloan.ErrOperationVoided
	}

	switch op.Status {
	case subloan.OpPending:
		op.Status = subloan.OpDismissed
		b.markDirty(opID)
		if op.EffectiveAt == loan.EarliestPendingAt {
			loan.EarliestPendingAt = e.earliestPending(b)
		}
		return nil
	case subloan.OpApplied:
		if op.Kind == subloan.KindRevocation {
			// An applied revocation is terminal for the sub-loan; unwinding it
			// would take the FSM out of Revoked.
			return subloan.ErrRevoked
		}
		op.Status = subloan.OpRevoked
		b.markDirty(opID)
		// Force the next replay to restart from inception.
		loan.AppliedOpID = 0
		if op.Kind == subloan.KindRepayment && counterparty != "" && e.funds != nil {
			if err := e.funds.Refund(ctx, counterparty, op.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return subloan.ErrOperationVoided
	}
}

// earliestPending rescans the list forward for the earliest pending entry's
// timestamp, 0 when none remain.
func (e *Engine) earliestPending(b *Book) int64 {
	for cur := b.op(b.Loan.HeadOpID); cur != nil; cur = b.op(cur.NextID) {
		if cur.Status == subloan.OpPending {
			return cur.EffectiveAt
		}
	}
	return 0
}
