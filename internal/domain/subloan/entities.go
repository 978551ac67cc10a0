package subloan

import (
	"time"
)

type Status string

const (
	// StatusNonexistent is never persisted; it is the conceptual state before
	// creation and the zero value of the FSM.
	StatusNonexistent Status = "nonexistent"
	StatusOngoing     Status = "ongoing"
	StatusRepaid      Status = "repaid"
	StatusRevoked     Status = "revoked"
)

type OpStatus string

const (
	OpPending   OpStatus = "pending"
	OpApplied   OpStatus = "applied"
	OpDismissed OpStatus = "dismissed"
	OpRevoked   OpStatus = "revoked"
	// OpSkipped is reserved and currently unused.
	OpSkipped OpStatus = "skipped"
)

type Kind string

const (
	KindRepayment  Kind = "repayment"
	KindDiscount   Kind = "discount"
	KindRevocation Kind = "revocation"
	KindFreeze     Kind = "freeze"
	KindUnfreeze   Kind = "unfreeze"

	KindSetPrimaryRate Kind = "set_primary_rate"
	KindSetPenaltyRate Kind = "set_penalty_rate"
	KindSetLateFeeRate Kind = "set_late_fee_rate"
	KindSetGraceRate   Kind = "set_grace_rate"
	KindSetDuration    Kind = "set_duration"
	KindSetGraceFlag   Kind = "set_grace_flag"
)

// ValidKind reports whether k is one of the accepted operation kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindRepayment, KindDiscount, KindRevocation, KindFreeze, KindUnfreeze,
		KindSetPrimaryRate, KindSetPenaltyRate, KindSetLateFeeRate,
		KindSetGraceRate, KindSetDuration, KindSetGraceFlag:
		return true
	}
	return false
}

// RateFactor is the fixed-point scale for all rates: 100% == 1e9.
const RateFactor uint64 = 1_000_000_000

// MaxOpID bounds per-sub-loan operation ids; id 0 means "no operation".
const MaxOpID uint16 = 65535

// Component is one of the four independently amortizing balances of a
// sub-loan. Tracked is the outstanding amount; Repaid and Discounted are the
// monotonic outflow accumulators.
type Component struct {
	Tracked    uint64 `gorm:"not null;default:0" json:"tracked"`
	Repaid     uint64 `gorm:"not null;default:0" json:"repaid"`
	Discounted uint64 `gorm:"not null;default:0" json:"discounted"`
}

// SubLoan is the unit of amortization. Inception fields are immutable after
// creation; everything else is recomputed by replay and must never be edited
// directly by callers.
type SubLoan struct {
	// Engine-assigned sequential id. Siblings of one loan occupy a
	// consecutive id range starting at FirstID().
	ID uint64 `gorm:"primaryKey;autoIncrement:false;column:id" json:"id"`
	// Public identifier shared by all siblings of the loan (32-char hex).
	LoanRef    string `gorm:"size:32;index:idx_subloans_loan_ref" json:"loan_ref"`
	BorrowerID string `gorm:"size:32;index:idx_subloans_borrower" json:"borrower_id"`
	ProgramID  string `gorm:"size:32" json:"program_id"`

	// Inception.
	Borrowed         uint64 `gorm:"not null" json:"borrowed"`
	Addon            uint64 `gorm:"not null;default:0" json:"addon"`
	InitPrimaryRate  uint64 `gorm:"not null" json:"init_primary_rate"`
	InitPenaltyRate  uint64 `gorm:"not null" json:"init_penalty_rate"`
	InitLateFeeRate  uint64 `gorm:"not null" json:"init_late_fee_rate"`
	InitGraceRate    uint64 `gorm:"not null" json:"init_grace_rate"`
	InitDurationDays uint32 `gorm:"not null" json:"init_duration_days"`
	StartAt          int64  `gorm:"not null" json:"start_at"`
	IndexInLoan      uint16 `gorm:"not null" json:"index_in_loan"`
	SiblingCount     uint16 `gorm:"not null" json:"sibling_count"`

	// Replayed state.
	Status         Status `gorm:"type:varchar(16);not null" json:"status"`
	GraceRequested bool   `gorm:"not null;default:false" json:"grace_requested"`
	GraceActive    bool   `gorm:"not null;default:false" json:"grace_active"`
	DurationDays   uint32 `gorm:"not null" json:"duration_days"`
	FrozenAt       int64  `gorm:"not null;default:0" json:"frozen_at"`
	AccruedAt      int64  `gorm:"not null" json:"accrued_at"`
	PrimaryRate    uint64 `gorm:"not null" json:"primary_rate"`
	PenaltyRate    uint64 `gorm:"not null" json:"penalty_rate"`
	LateFeeRate    uint64 `gorm:"not null" json:"late_fee_rate"`
	GraceRate      uint64 `gorm:"not null" json:"grace_rate"`

	Principal Component `gorm:"embedded;embeddedPrefix:principal_" json:"principal"`
	Primary   Component `gorm:"embedded;embeddedPrefix:primary_" json:"primary"`
	Penalty   Component `gorm:"embedded;embeddedPrefix:penalty_" json:"penalty"`
	LateFee   Component `gorm:"embedded;embeddedPrefix:late_fee_" json:"late_fee"`

	// Operation log metadata.
	OpCount           uint16 `gorm:"not null;default:0" json:"op_count"`
	HeadOpID          uint16 `gorm:"not null;default:0" json:"head_op_id"`
	TailOpID          uint16 `gorm:"not null;default:0" json:"tail_op_id"`
	AppliedOpID       uint16 `gorm:"not null;default:0" json:"applied_op_id"`
	EarliestPendingAt int64  `gorm:"not null;default:0" json:"earliest_pending_at"`
	// UpdateIndex increases by one on every persisted mutation and keys the
	// emitted change records.
	UpdateIndex uint64 `gorm:"not null;default:0" json:"update_index"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SubLoan) TableName() string { return "sub_loans" }

// FirstID returns the id of the loan's first sibling.
func (s *SubLoan) FirstID() uint64 { return s.ID - uint64(s.IndexInLoan) }

// TrackedTotal is the sum of all four outstanding balances. The individual
// accumulators are bounded well below 2^64 by the overflow checks in the
// engine, but the sum is still widened defensively by the caller when needed.
func (s *SubLoan) TrackedTotal() uint64 {
	return s.Principal.Tracked + s.Primary.Tracked + s.Penalty.Tracked + s.LateFee.Tracked
}

// RepaidTotal sums the repaid accumulators of all four components.
func (s *SubLoan) RepaidTotal() uint64 {
	return s.Principal.Repaid + s.Primary.Repaid + s.Penalty.Repaid + s.LateFee.Repaid
}

// Operation is one append-only log entry belonging to exactly one sub-loan.
// PrevID/NextID form a doubly linked list strictly ordered by
// (EffectiveAt asc, OpID asc).
type Operation struct {
	ID        uint64   `gorm:"primaryKey;autoIncrement" json:"-"`
	SubLoanID uint64   `gorm:"not null;uniqueIndex:ux_operations_subloan_op,priority:1" json:"sub_loan_id"`
	OpID      uint16   `gorm:"not null;uniqueIndex:ux_operations_subloan_op,priority:2" json:"op_id"`
	Kind      Kind     `gorm:"type:varchar(24);not null" json:"kind"`
	Status    OpStatus `gorm:"type:varchar(12);not null" json:"status"`
	// EffectiveAt is the business timestamp of the operation, not the time it
	// was submitted.
	EffectiveAt int64  `gorm:"not null" json:"effective_at"`
	Value       uint64 `gorm:"not null;default:0" json:"value"`
	// Account is the optional counterparty reference for fund movements.
	Account string `gorm:"size:64" json:"account,omitempty"`
	PrevID  uint16 `gorm:"not null;default:0" json:"prev_id"`
	NextID  uint16 `gorm:"not null;default:0" json:"next_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Operation) TableName() string { return "operations" }

// Voided reports whether the operation reached a terminal status.
func (o *Operation) Voided() bool {
	return o.Status == OpDismissed || o.Status == OpRevoked
}

// ChangeRecord is the bit-exact change notification emitted once per mutated
// sub-loan. The packed fields are 64-char hex renderings of 256-bit values;
// see the ledger package for the exact layout.
type ChangeRecord struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	SubLoanID   uint64 `gorm:"not null;uniqueIndex:ux_changes_subloan_update,priority:1" json:"sub_loan_id"`
	UpdateIndex uint64 `gorm:"not null;uniqueIndex:ux_changes_subloan_update,priority:2" json:"update_index"`

	Tracked    string `gorm:"type:char(64);not null" json:"tracked"`
	Repaid     string `gorm:"type:char(64);not null" json:"repaid"`
	Discounted string `gorm:"type:char(64);not null" json:"discounted"`
	Terms      string `gorm:"type:char(64);not null" json:"terms"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ChangeRecord) TableName() string { return "change_records" }
