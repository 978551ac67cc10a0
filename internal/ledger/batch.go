package ledger

import (
	"context"

	"installment-subledger/internal/domain/subloan"
)

// maxBatchSlots is the compile-time bound of the affected-id accumulator;
// Config.MaxBatch may only lower it.
const maxBatchSlots = 32

// OperationRequest is one submission inside a batch (or the single-entry
// variant).
type OperationRequest struct {
	SubLoanID uint64       `json:"sub_loan_id"`
	Kind      subloan.Kind `json:"kind"`
	At        int64        `json:"at"`
	Value     uint64       `json:"value"`
	Account   string       `json:"account,omitempty"`
}

// CancelRequest is one cancellation inside a void batch.
type CancelRequest struct {
	SubLoanID    uint64 `json:"sub_loan_id"`
	OpID         uint16 `json:"op_id"`
	Counterparty string `json:"counterparty,omitempty"`
}

// BookSource hands out books for sub-loans touched by a batch. Implementations
// must return the same book instance for repeated ids within one invocation so
// every mutation lands on one copy.
type BookSource interface {
	Book(ctx context.Context, subLoanID uint64) (*Book, error)
}

// ValidateRequest applies the parameter rules shared by the single and batch
// entry points. now is the transaction time used for the future-timestamp
// rule.
func (e *Engine) ValidateRequest(req OperationRequest, now int64) error {
	if !subloan.ValidKind(req.Kind) {
		return subloan.ErrInvalidKind
	}
	if req.At <= 0 {
		return subloan.ErrBadTimestamp
	}
	switch req.Kind {
	case subloan.KindRepayment, subloan.KindDiscount:
		if req.Value == 0 {
			return subloan.ErrZeroValue
		}
		if req.Value%e.cfg.Accuracy != 0 {
			return subloan.ErrUnroundedValue
		}
		if req.At > now {
			return subloan.ErrFutureTimestamp
		}
	case subloan.KindSetPrimaryRate, subloan.KindSetPenaltyRate,
		subloan.KindSetLateFeeRate, subloan.KindSetGraceRate:
		if req.Value > subloan.RateFactor {
			return subloan.ErrRateTooHigh
		}
	case subloan.KindSetDuration:
		if req.Value == 0 {
			return subloan.ErrZeroValue
		}
		if req.Value > uint64(e.cfg.MaxDurationDays) {
			return subloan.ErrDurationTooLong
		}
	case subloan.KindSetGraceFlag:
		if req.Value > 1 {
			return subloan.ErrValueNotAllowed
		}
	case subloan.KindFreeze, subloan.KindUnfreeze, subloan.KindRevocation:
		if req.Value != 0 {
			return subloan.ErrValueNotAllowed
		}
	}
	return nil
}

// Coordinator applies groups of submissions or cancellations as one unit:
// every request lands in the log, every affected sub-loan is replayed exactly
// once, and a read-only preview at the latest-operation timestamp confirms no
// invariant violation is deferred to a later transaction. The caller's
// transaction makes the whole batch atomic.
type Coordinator struct {
	engine *Engine
}

func NewCoordinator(e *Engine) *Coordinator { return &Coordinator{engine: e} }

// Submit inserts all requests and processes the affected sub-loans. The
// deduplicated affected ids are returned in first-touch order.
func (c *Coordinator) Submit(ctx context.Context, src BookSource, reqs []OperationRequest, now int64) ([]uint64, error) {
	if err := c.checkSize(len(reqs)); err != nil {
		return nil, err
	}
	var affected [maxBatchSlots]uint64
	for _, req := range reqs {
		if err := c.engine.ValidateRequest(req, now); err != nil {
			return nil, err
		}
		b, err := src.Book(ctx, req.SubLoanID)
		if err != nil {
			return nil, err
		}
		if _, err := c.engine.Insert(b, req.At, req.Kind, req.Value, req.Account); err != nil {
			return nil, err
		}
		record(&affected, req.SubLoanID)
	}
	return c.process(ctx, src, &affected, now)
}

// Void cancels all requested operations and processes the affected sub-loans.
func (c *Coordinator) Void(ctx context.Context, src BookSource, reqs []CancelRequest, now int64) ([]uint64, error) {
	if err := c.checkSize(len(reqs)); err != nil {
		return nil, err
	}
	var affected [maxBatchSlots]uint64
	for _, req := range reqs {
		b, err := src.Book(ctx, req.SubLoanID)
		if err != nil {
			return nil, err
		}
		if err := c.engine.Cancel(ctx, b, req.OpID, req.Counterparty); err != nil {
			return nil, err
		}
		record(&affected, req.SubLoanID)
	}
	return c.process(ctx, src, &affected, now)
}

func (c *Coordinator) checkSize(n int) error {
	if n == 0 {
		return subloan.ErrEmptyBatch
	}
	if n > c.engine.cfg.MaxBatch || n > maxBatchSlots {
		return subloan.ErrBatchTooLarge
	}
	return nil
}

func (c *Coordinator) process(ctx context.Context, src BookSource, affected *[maxBatchSlots]uint64, now int64) ([]uint64, error) {
	ids := collect(affected)
	for _, id := range ids {
		b, err := src.Book(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := c.engine.Apply(ctx, b, now); err != nil {
			return nil, err
		}
		// Post-condition: the state must also be computable at the latest
		// operation timestamp, so no deferred entry can fail later.
		if tail := b.op(b.Loan.TailOpID); tail != nil {
			if _, err := c.engine.Preview(b, tail.EffectiveAt, false); err != nil {
				return nil, err
			}
		}
	}
	return ids, nil
}

// record stores id in the first zero slot unless already present. Sub-loan
// ids start at 1, so zero marks a free slot; the linear scan is fine for the
// small batch bound.
func record(slots *[maxBatchSlots]uint64, id uint64) {
	for i := range slots {
		if slots[i] == id {
			return
		}
		if slots[i] == 0 {
			slots[i] = id
			return
		}
	}
}

func collect(slots *[maxBatchSlots]uint64) []uint64 {
	out := make([]uint64, 0, len(slots))
	for _, id := range slots {
		if id == 0 {
			break
		}
		out = append(out, id)
	}
	return out
}
