package ledger

import (
	"context"

	"installment-subledger/internal/domain/subloan"
)

// Summary is the derived loan-level view over a sibling range. It is computed
// on demand and never stored.
type Summary struct {
	LoanRef        string `json:"loan_ref"`
	BorrowerID     string `json:"borrower_id"`
	FirstSubLoanID uint64 `json:"first_sub_loan_id"`
	SubLoanCount   uint16 `json:"sub_loan_count"`
	Borrowed       uint64 `json:"borrowed"`
	Addon          uint64 `json:"addon"`
	Repaid         uint64 `json:"repaid"`
	Outstanding    uint64 `json:"outstanding"`
	Ongoing        int    `json:"ongoing"`
}

// Aggregator derives loan-level state across sibling sub-loans and reports
// open/close transitions to the credit-policy collaborator.
type Aggregator struct {
	policy CreditPolicy
}

func NewAggregator(policy CreditPolicy) *Aggregator { return &Aggregator{policy: policy} }

// Summarize folds a sibling slice into the loan view. The slice must be the
// complete consecutive range of one loan, in id order.
func (a *Aggregator) Summarize(subs []*subloan.SubLoan) (Summary, error) {
	if len(subs) == 0 {
		return Summary{}, subloan.ErrNotFound
	}
	first := subs[0]
	if first.IndexInLoan != 0 || int(first.SiblingCount) != len(subs) {
		return Summary{}, subloan.ErrSiblingRangeCorrupt
	}
	out := Summary{
		LoanRef:        first.LoanRef,
		BorrowerID:     first.BorrowerID,
		FirstSubLoanID: first.ID,
		SubLoanCount:   first.SiblingCount,
	}
	for i, s := range subs {
		if s.LoanRef != first.LoanRef || int(s.IndexInLoan) != i {
			return Summary{}, subloan.ErrSiblingRangeCorrupt
		}
		var err error
		if out.Borrowed, err = addChecked(out.Borrowed, s.Borrowed); err != nil {
			return Summary{}, err
		}
		if out.Addon, err = addChecked(out.Addon, s.Addon); err != nil {
			return Summary{}, err
		}
		if out.Repaid, err = addChecked(out.Repaid, s.RepaidTotal()); err != nil {
			return Summary{}, err
		}
		if out.Outstanding, err = addChecked(out.Outstanding, s.TrackedTotal()); err != nil {
			return Summary{}, err
		}
		if s.Status == subloan.StatusOngoing {
			out.Ongoing++
		}
	}
	return out, nil
}

// OngoingCount counts siblings currently in the ongoing status.
func OngoingCount(subs []*subloan.SubLoan) int {
	n := 0
	for _, s := range subs {
		if s.Status == subloan.StatusOngoing {
			n++
		}
	}
	return n
}

// NotifyTransition reports a loan-level status change to the credit policy:
// the hook fires exactly when the aggregate ongoing count crosses zero, never
// per sub-loan while siblings remain ongoing.
func (a *Aggregator) NotifyTransition(ctx context.Context, subs []*subloan.SubLoan, beforeOngoing int) error {
	if a == nil || a.policy == nil || len(subs) == 0 {
		return nil
	}
	after := OngoingCount(subs)
	first := subs[0]
	switch {
	case beforeOngoing == 0 && after > 0:
		return a.policy.LoanOpened(ctx, first.BorrowerID, first.LoanRef)
	case beforeOngoing > 0 && after == 0:
		return a.policy.LoanClosed(ctx, first.BorrowerID, first.LoanRef)
	}
	return nil
}
