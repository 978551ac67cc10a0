package ledger

import (
	"context"
	"sync"

	"installment-subledger/internal/domain/subloan"
)

// testStart is an exact accrual-day boundary (day index 100 under the default
// UTC+3 offset), so day(n) lands n whole days after inception.
const testStart = int64(100 * 86_400)

const (
	pct1 = uint64(10_000_000)
	pct2 = uint64(20_000_000)
	pct5 = uint64(50_000_000)
)

func day(n int64) int64 { return testStart + n*86_400 }

type testRates struct {
	primary, penalty, lateFee, grace uint64
}

func testLoan(id uint64, borrowed uint64, r testRates, duration uint32) *subloan.SubLoan {
	return &subloan.SubLoan{
		ID:         id,
		LoanRef:    "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		BorrowerID: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",

		Borrowed:         borrowed,
		InitPrimaryRate:  r.primary,
		InitPenaltyRate:  r.penalty,
		InitLateFeeRate:  r.lateFee,
		InitGraceRate:    r.grace,
		InitDurationDays: duration,
		StartAt:          testStart,
		SiblingCount:     1,

		Status:       subloan.StatusOngoing,
		DurationDays: duration,
		AccruedAt:    testStart,
		PrimaryRate:  r.primary,
		PenaltyRate:  r.penalty,
		LateFeeRate:  r.lateFee,
		GraceRate:    r.grace,
		Principal:    subloan.Component{Tracked: borrowed},
		UpdateIndex:  1,
	}
}

func testBook(borrowed uint64, r testRates, duration uint32) *Book {
	return NewBook(testLoan(1, borrowed, r, duration), nil)
}

type move struct {
	account string
	amount  uint64
}

// fakeFunds records fund movements; a local fake keeps the package free of
// import cycles with testutil.
type fakeFunds struct {
	mu          sync.Mutex
	disbursed   []move
	collected   []move
	refunded    []move
	collectErr  error
	refundErr   error
	disburseErr error
}

func (f *fakeFunds) Disburse(_ context.Context, account string, amount uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disburseErr != nil {
		return f.disburseErr
	}
	f.disbursed = append(f.disbursed, move{account, amount})
	return nil
}

func (f *fakeFunds) Collect(_ context.Context, account string, amount uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collectErr != nil {
		return f.collectErr
	}
	f.collected = append(f.collected, move{account, amount})
	return nil
}

func (f *fakeFunds) Refund(_ context.Context, account string, amount uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunded = append(f.refunded, move{account, amount})
	return nil
}

type fakePolicy struct {
	opened    []string
	closed    []string
	beforeErr error
}

func (p *fakePolicy) BeforeOpen(context.Context, string, uint64) error { return p.beforeErr }

func (p *fakePolicy) LoanOpened(_ context.Context, _, loanRef string) error {
	p.opened = append(p.opened, loanRef)
	return nil
}

func (p *fakePolicy) LoanClosed(_ context.Context, _, loanRef string) error {
	p.closed = append(p.closed, loanRef)
	return nil
}

// opOrder walks the linked list from head and returns the op ids in order.
func opOrder(b *Book) []uint16 {
	var out []uint16
	for cur := b.op(b.Loan.HeadOpID); cur != nil; cur = b.op(cur.NextID) {
		out = append(out, cur.OpID)
	}
	return out
}
