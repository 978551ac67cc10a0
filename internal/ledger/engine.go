package ledger

import (
	"context"

	"installment-subledger/internal/domain/subloan"
)

// DefaultDayOffset shifts the nominal UTC day boundary to the local business
// day (UTC+3). Day index = floor((ts - offset) / 86400), so a negative offset
// moves the boundary earlier.
const DefaultDayOffset int64 = -10_800

const secondsPerDay int64 = 86_400

// Config carries the deterministic knobs of the ledger engine.
type Config struct {
	// Accuracy is the rounding unit for all financial arithmetic. Repayment
	// and discount values must be multiples of it.
	Accuracy uint64
	// DayOffset (seconds, usually negative) positions the accrual day
	// boundary relative to UTC midnight.
	DayOffset int64
	// MaxDurationDays bounds the duration setter and unfreeze extensions.
	MaxDurationDays uint32
	// MaxBatch bounds the number of requests per batch.
	MaxBatch int
}

// DefaultConfig matches the production program parameters.
func DefaultConfig() Config {
	return Config{
		Accuracy:        1,
		DayOffset:       DefaultDayOffset,
		MaxDurationDays: 3650,
		MaxBatch:        32,
	}
}

func (c Config) normalized() Config {
	if c.Accuracy == 0 {
		c.Accuracy = 1
	}
	if c.MaxDurationDays == 0 {
		c.MaxDurationDays = 3650
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 32
	}
	return c
}

// FundMover is the external token-custody collaborator. All methods are
// synchronous; an error aborts (and rolls back) the whole invocation.
type FundMover interface {
	// Disburse pays amount out to the account.
	Disburse(ctx context.Context, account string, amount uint64) error
	// Collect pulls amount in from the account.
	Collect(ctx context.Context, account string, amount uint64) error
	// Refund reverses an earlier Collect.
	Refund(ctx context.Context, account string, amount uint64) error
}

// CreditPolicy is the external borrower-policy collaborator notified about
// loan-level lifecycle changes.
type CreditPolicy interface {
	BeforeOpen(ctx context.Context, borrowerID string, principal uint64) error
	LoanOpened(ctx context.Context, borrowerID, loanRef string) error
	LoanClosed(ctx context.Context, borrowerID, loanRef string) error
}

// Book is the in-memory arena for one sub-loan: the record itself plus its
// operation log addressed by operation id. The linked structure lives in the
// Prev/Next fields of the operations; the map is only the arena.
type Book struct {
	Loan *subloan.SubLoan
	Ops  map[uint16]*subloan.Operation

	// dirty collects op ids whose rows changed and must be persisted.
	dirty map[uint16]bool
}

// NewBook wraps a loaded sub-loan and its operations.
func NewBook(loan *subloan.SubLoan, ops map[uint16]*subloan.Operation) *Book {
	if ops == nil {
		ops = make(map[uint16]*subloan.Operation)
	}
	return &Book{Loan: loan, Ops: ops, dirty: make(map[uint16]bool)}
}

func (b *Book) op(id uint16) *subloan.Operation {
	if id == 0 {
		return nil
	}
	return b.Ops[id]
}

func (b *Book) markDirty(id uint16) {
	if b.dirty == nil {
		b.dirty = make(map[uint16]bool)
	}
	b.dirty[id] = true
}

// DirtyOps returns the operations changed since the book was loaded.
func (b *Book) DirtyOps() []*subloan.Operation {
	out := make([]*subloan.Operation, 0, len(b.dirty))
	for id := range b.dirty {
		if op := b.Ops[id]; op != nil {
			out = append(out, op)
		}
	}
	return out
}

// Clone deep-copies the book so previews can run without touching persisted
// state.
func (b *Book) Clone() *Book {
	loan := *b.Loan
	ops := make(map[uint16]*subloan.Operation, len(b.Ops))
	for id, op := range b.Ops {
		cp := *op
		ops[id] = &cp
	}
	return &Book{Loan: &loan, Ops: ops, dirty: make(map[uint16]bool)}
}

// Engine implements the replay-based sub-ledger computation. It is pure with
// respect to persistence: callers load a Book, invoke the engine and persist
// the result inside their own transaction.
type Engine struct {
	cfg   Config
	funds FundMover
}

// NewEngine builds an engine; funds may be nil when no custody collaborator
// is wired (fund movements are then treated as retained).
func NewEngine(cfg Config, funds FundMover) *Engine {
	return &Engine{cfg: cfg.normalized(), funds: funds}
}

// Config returns the normalized engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// dayIndex converts a timestamp to the accrual day number.
func (e *Engine) dayIndex(ts int64) int64 {
	d := ts - e.cfg.DayOffset
	if d < 0 && d%secondsPerDay != 0 {
		// Operations are validated to positive timestamps, so this only
		// guards synthetic inputs in tests.
		return d/secondsPerDay - 1
	}
	return d / secondsPerDay
}

// dueDay derives the due day from the current (possibly extended) duration.
// Using the mutable duration here is deliberate and preserved behavior: an
// unfreeze extension or duration setter moves the due day even retroactively.
func (e *Engine) dueDay(s *subloan.SubLoan) int64 {
	return e.dayIndex(s.StartAt) + int64(s.DurationDays)
}

// overdue reports whether t lies strictly after the due day.
func (e *Engine) overdue(s *subloan.SubLoan, t int64) bool {
	return e.dayIndex(t) > e.dueDay(s)
}

// effectiveGrace computes the grace flag as of t: the requested window is only
// effective while the sub-loan is not overdue.
func (e *Engine) effectiveGrace(s *subloan.SubLoan, t int64, ignore bool) bool {
	if ignore || !s.GraceRequested {
		return false
	}
	return !e.overdue(s, t)
}
