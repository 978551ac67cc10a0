package ledger

import (
	"context"
	"errors"
	"testing"

	"installment-subledger/internal/domain/subloan"
)

func siblingPair() []*subloan.SubLoan {
	a := testLoan(10, 1000, testRates{}, 30)
	a.Addon = 50
	a.IndexInLoan = 0
	a.SiblingCount = 2
	a.Principal = subloan.Component{Tracked: 700, Repaid: 300}

	b := testLoan(11, 500, testRates{}, 30)
	b.IndexInLoan = 1
	b.SiblingCount = 2
	b.Status = subloan.StatusRepaid
	b.Principal = subloan.Component{Tracked: 0, Repaid: 500}
	return []*subloan.SubLoan{a, b}
}

func TestSummarize(t *testing.T) {
	agg := NewAggregator(nil)
	sum, err := agg.Summarize(siblingPair())
	if err != nil {
		t.Fatal(err)
	}
	if sum.FirstSubLoanID != 10 || sum.SubLoanCount != 2 {
		t.Fatalf("identity fields: %+v", sum)
	}
	if sum.Borrowed != 1500 || sum.Addon != 50 {
		t.Fatalf("borrowed/addon: %+v", sum)
	}
	if sum.Repaid != 800 || sum.Outstanding != 700 {
		t.Fatalf("repaid/outstanding: %+v", sum)
	}
	if sum.Ongoing != 1 {
		t.Fatalf("ongoing = %d", sum.Ongoing)
	}
}

func TestSummarizeRejectsCorruptRange(t *testing.T) {
	agg := NewAggregator(nil)

	if _, err := agg.Summarize(nil); !errors.Is(err, subloan.ErrNotFound) {
		t.Errorf("empty range: %v", err)
	}

	subs := siblingPair()
	subs[0].IndexInLoan = 1 // range not starting at the first sibling
	if _, err := agg.Summarize(subs); !errors.Is(err, subloan.ErrSiblingRangeCorrupt) {
		t.Errorf("wrong first index: %v", err)
	}

	subs = siblingPair()
	if _, err := agg.Summarize(subs[:1]); !errors.Is(err, subloan.ErrSiblingRangeCorrupt) {
		t.Errorf("truncated range: %v", err)
	}

	subs = siblingPair()
	subs[1].LoanRef = "cccccccccccccccccccccccccccccccc"
	if _, err := agg.Summarize(subs); !errors.Is(err, subloan.ErrSiblingRangeCorrupt) {
		t.Errorf("foreign sibling: %v", err)
	}

	subs = siblingPair()
	subs[1].IndexInLoan = 2 // gap in the range
	if _, err := agg.Summarize(subs); !errors.Is(err, subloan.ErrSiblingRangeCorrupt) {
		t.Errorf("index gap: %v", err)
	}
}

func TestNotifyTransition(t *testing.T) {
	ctx := context.Background()

	policy := &fakePolicy{}
	agg := NewAggregator(policy)
	subs := siblingPair()

	// 0 -> n opens the loan.
	if err := agg.NotifyTransition(ctx, subs, 0); err != nil {
		t.Fatal(err)
	}
	if len(policy.opened) != 1 || len(policy.closed) != 0 {
		t.Fatalf("opened/closed = %v/%v", policy.opened, policy.closed)
	}

	// n -> m with both nonzero stays silent.
	if err := agg.NotifyTransition(ctx, subs, 2); err != nil {
		t.Fatal(err)
	}
	if len(policy.opened) != 1 || len(policy.closed) != 0 {
		t.Fatalf("spurious notification: %v/%v", policy.opened, policy.closed)
	}

	// n -> 0 closes the loan.
	subs[0].Status = subloan.StatusRepaid
	if err := agg.NotifyTransition(ctx, subs, 1); err != nil {
		t.Fatal(err)
	}
	if len(policy.closed) != 1 {
		t.Fatalf("closed = %v", policy.closed)
	}

	// A nil policy is a no-op, not a panic.
	if err := NewAggregator(nil).NotifyTransition(ctx, subs, 1); err != nil {
		t.Fatal(err)
	}
}

func TestOngoingCount(t *testing.T) {
	subs := siblingPair()
	if got := OngoingCount(subs); got != 1 {
		t.Fatalf("ongoing = %d", got)
	}
	subs[0].Status = subloan.StatusRevoked
	if got := OngoingCount(subs); got != 0 {
		t.Fatalf("ongoing = %d", got)
	}
}
